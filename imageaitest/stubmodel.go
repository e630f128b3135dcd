package imageaitest

import (
	"context"
	"sync"

	"github.com/mashiike/imageai/model"
)

// Operations recorded by StubModel.
const (
	OpGenerate          = model.OpGenerate
	OpGenerateWithImage = model.OpGenerateWithImage
)

// Call is one recorded StubModel invocation.
type Call struct {
	Op     string
	Prompt string
	Image  *model.Image
}

type step struct {
	resp *model.Response
	err  error
}

// StubModel is a scripted model.Model. Queued results are consumed in
// order; once the queue is empty every call returns the fallback.
type StubModel struct {
	mu       sync.Mutex
	script   []step
	calls    []Call
	fallback *model.Response
}

var _ model.Model = (*StubModel)(nil)

// NewStubModel creates a StubModel whose fallback is a text-only response.
func NewStubModel() *StubModel {
	return &StubModel{fallback: &model.Response{Text: "stub response"}}
}

// RespondWith queues resp.
func (m *StubModel) RespondWith(resp *model.Response) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{resp: resp})
	return m
}

// RespondWithImage queues a response carrying imageData.
func (m *StubModel) RespondWithImage(text, imageData string) *StubModel {
	return m.RespondWith(&model.Response{Text: text, ImageData: imageData})
}

// FailWith queues err.
func (m *StubModel) FailWith(err error) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{err: err})
	return m
}

// Fallback replaces the response returned once the queue is empty.
func (m *StubModel) Fallback(resp *model.Response) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
	return m
}

// Calls returns the recorded calls.
func (m *StubModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Generate implements model.Model.
func (m *StubModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.next(Call{Op: OpGenerate, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateWithImage implements model.Model.
func (m *StubModel) GenerateWithImage(ctx context.Context, prompt string, image *model.Image) (*model.Response, error) {
	var recorded *model.Image
	if image != nil {
		c := *image
		recorded = &c
	}
	return m.next(Call{Op: OpGenerateWithImage, Prompt: prompt, Image: recorded})
}

func (m *StubModel) next(call Call) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if len(m.script) == 0 {
		c := *m.fallback
		return &c, nil
	}
	s := m.script[0]
	m.script = m.script[1:]
	if s.err != nil {
		return nil, s.err
	}
	c := *s.resp
	return &c, nil
}
