// Package imageaitest provides testing utilities for the image-ai endpoints.
// It offers httptest-like servers wired with a scripted model.
package imageaitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mashiike/imageai"
	"github.com/mashiike/imageai/host"
	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/transport"
)

// StubProvider is the provider name the test server registers its model under.
const StubProvider = "stub"

// TestServer wraps httptest.Server serving the image-ai endpoints with JWT
// authentication, an in-memory host document as asset store and an asset
// file server.
type TestServer struct {
	*httptest.Server

	// Model is the model behind both agents
	Model model.Model

	// Document resolves asset IDs for enhance requests
	Document *host.MemoryDocument

	// Authenticator verifies bearer tokens; Token mints them
	Authenticator *imageai.JWTAuthenticator

	// Service is the underlying image service
	Service *imageai.Service

	mu    sync.Mutex
	files map[string][]byte
}

// NewServer creates a new test server for m.
//
// Example usage:
//
//	stub := imageaitest.NewStubModel().RespondWithImage("done", "aW1n")
//	server := imageaitest.NewServer(t, stub)
//	defer server.Close()
//
//	client := server.Client()
//	resp, err := client.Generate(ctx, server.Token(t), "a red bicycle", nil)
func NewServer(tb testing.TB, m model.Model) *TestServer {
	tb.Helper()

	registry := model.NewRegistry()
	registry.Register(StubProvider, func(ctx context.Context, cfg model.Config) (model.Model, error) {
		return m, nil
	})
	factory := imageai.NewFactory(imageai.FactoryConfig{Provider: StubProvider, Registry: registry})

	s := &TestServer{
		Model:         m,
		Document:      host.NewMemoryDocument(),
		Authenticator: imageai.NewJWTAuthenticator([]byte("imageaitest-secret")),
		files:         make(map[string][]byte),
	}
	s.Service = imageai.NewService(factory, s.Document)

	srv := &imageai.Server{
		Service:       s.Service,
		Authenticator: s.Authenticator,
	}
	srv.HandleFunc("/assets/", s.serveAsset)
	s.Server = httptest.NewServer(srv)
	tb.Cleanup(s.Server.Close)
	return s
}

// URL returns the base URL of the test server.
func (s *TestServer) URL() string {
	return s.Server.URL
}

// Token mints a valid bearer token with optional extra claims.
func (s *TestServer) Token(tb testing.TB, claims ...jwt.MapClaims) string {
	tb.Helper()
	merged := jwt.MapClaims{"sub": "imageaitest"}
	for _, c := range claims {
		for k, v := range c {
			merged[k] = v
		}
	}
	token, err := s.Authenticator.Sign(merged, time.Hour)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// AddAsset serves data at /assets/<name> and registers it in Document under
// id. It returns the asset URL.
func (s *TestServer) AddAsset(id, name string, data []byte) string {
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
	u := s.URL() + "/assets/" + name
	s.Document.AddAsset(&host.Asset{ID: id, URL: u, Name: name})
	return u
}

func (s *TestServer) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/assets/"):]
	s.mu.Lock()
	data, ok := s.files[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// Client creates a new transport.Client configured to communicate with this test server.
func (s *TestServer) Client(opts ...transport.ClientOption) *transport.Client {
	opts = append([]transport.ClientOption{transport.WithHTTPClient(s.Server.Client())}, opts...)
	return transport.NewClient(s.URL(), opts...)
}

// ClientWithHeaders creates a transport.Client that automatically adds specified HTTP headers to all requests.
func (s *TestServer) ClientWithHeaders(headers http.Header, opts ...transport.ClientOption) *transport.Client {
	headerTransport := &headerAddingTransport{
		base:    s.Server.Client().Transport,
		headers: headers,
	}
	httpClient := &http.Client{Transport: headerTransport}
	opts = append(opts, transport.WithHTTPClient(httpClient))

	return transport.NewClient(s.URL(), opts...)
}

// headerAddingTransport is a custom http.RoundTripper that automatically adds headers to requests
type headerAddingTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	newReq := req.Clone(req.Context())

	for key, values := range t.headers {
		newReq.Header.Del(key)
		for _, value := range values {
			newReq.Header.Add(key, value)
		}
	}

	return t.base.RoundTrip(newReq)
}
