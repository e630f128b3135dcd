package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mashiike/imageai"
	"github.com/mashiike/imageai/chat"
	"github.com/mashiike/imageai/host"
	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/transport"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /mode enhance|generate  switch mode
  /select <file>          upload an image and select it (enhance mode)
  /attach <file>...       attach reference images (generate mode)
  /remove <n>             drop attachment n
  /accept                 place the last returned image on the selection
  /decline                discard the last returned image
  /history                show the messages of the current mode
  /help                   show this help
  /quit                   leave
Any other line is sent as a prompt.`

func newChatCmd(a *app) *cobra.Command {
	var (
		serverURL string
		token     string
		assetDir  string
		mode      string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive image-ai session",
		Long: `Start an interactive session over a local document. Requests go to an
in-process service, or to a running server with --server and --token.
Accepted images are written to --asset-dir, or to S3 when ASSET_BACKEND=s3.

` + chatHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := chat.ParseMode(mode)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(assetDir, 0o755); err != nil {
				return fmt.Errorf("failed to create asset dir: %w", err)
			}

			docOpts, err := a.documentOptions(ctx)
			if err != nil {
				return err
			}
			doc := host.NewMemoryDocument(append(docOpts, host.WithAssetDir(assetDir))...)

			var service transport.ImageService
			if serverURL != "" {
				service = transport.NewClient(serverURL, transport.WithClientLogger(a.logger)).WithToken(token)
			} else {
				service = imageai.NewService(a.factory(), doc,
					imageai.WithFetcher(a.localFetcher()),
					imageai.WithLogger(a.logger),
				)
			}

			session := chat.NewSession(service, doc,
				chat.WithMode(m),
				chat.WithLogger(a.logger),
				chat.WithAcceptor(chat.NewAcceptor(doc,
					chat.WithFetcher(a.localFetcher()),
					chat.WithAcceptorLogger(a.logger),
				)),
			)
			defer session.Close()

			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), session, doc)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of an image-ai server")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for --server")
	cmd.Flags().StringVar(&assetDir, "asset-dir", ".", "directory accepted images are written to")
	cmd.Flags().StringVar(&mode, "mode", string(chat.ModeEnhance), "initial mode: enhance or generate")
	return cmd
}

type chatREPL struct {
	session *chat.Session
	doc     *host.MemoryDocument
	out     io.Writer
	images  int
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, session *chat.Session, doc *host.MemoryDocument) error {
	r := &chatREPL{session: session, doc: doc, out: out}
	fmt.Fprintf(out, "imageai chat (%s mode). Type /help for commands.\n", session.Mode())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s> ", session.Mode())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *chatREPL) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line)
	}
	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/mode":
		if len(args) != 1 {
			return false, errors.New("usage: /mode enhance|generate")
		}
		m, err := chat.ParseMode(args[0])
		if err != nil {
			return false, err
		}
		return false, r.session.SetMode(m)
	case "/select":
		if len(args) != 1 {
			return false, errors.New("usage: /select <file>")
		}
		return false, r.selectImage(ctx, args[0])
	case "/attach":
		if len(args) == 0 {
			return false, errors.New("usage: /attach <file>...")
		}
		return false, r.attach(ctx, args)
	case "/remove":
		if len(args) != 1 {
			return false, errors.New("usage: /remove <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, err
		}
		return false, r.session.RemoveImage(n - 1)
	case "/accept", "/decline":
		msg := r.lastPending()
		if msg == nil {
			return false, chat.ErrNoImage
		}
		if fields[0] == "/decline" {
			if err := r.session.Decline(msg.ID); err != nil {
				return false, err
			}
			fmt.Fprintln(r.out, "image declined")
			return false, nil
		}
		return false, r.accept(ctx, msg.ID)
	case "/history":
		for _, msg := range r.session.Messages(r.session.Mode()) {
			fmt.Fprintf(r.out, "[%s] %s: %s", msg.Timestamp.Format("15:04:05"), msg.Role, msg.Content)
			if msg.HasImage() {
				fmt.Fprintf(r.out, " (image %s)", statusLabel(msg.ImageStatus))
			}
			fmt.Fprintln(r.out)
		}
	default:
		return false, fmt.Errorf("unknown command %s, type /help", fields[0])
	}
	return false, nil
}

func (r *chatREPL) send(ctx context.Context, text string) error {
	r.session.SetInput(text)
	reply, err := r.session.Send(ctx)
	if reply != nil {
		fmt.Fprintf(r.out, "assistant: %s\n", reply.Content)
		if reply.HasImage() {
			fmt.Fprintln(r.out, "image received, /accept or /decline")
		}
	}
	return err
}

func (r *chatREPL) selectImage(ctx context.Context, p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	name := filepath.Base(p)
	asset, err := r.doc.CreateAsset(ctx, host.File{
		Name:     name,
		MimeType: imagecodec.MimeTypeFromPath(name),
		Data:     data,
	})
	if err != nil {
		return err
	}
	r.images++
	el := r.doc.AddElement(fmt.Sprintf("image-%d", r.images), host.ElementTypeImage, asset)
	r.doc.Select(el)
	fmt.Fprintf(r.out, "selected %s\n", name)
	return nil
}

func (r *chatREPL) attach(ctx context.Context, paths []string) error {
	attachments := make([]chat.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		attachments = append(attachments, chat.Attachment{Name: filepath.Base(p), Data: data})
	}
	if err := r.session.SelectImages(ctx, attachments...); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d image(s) attached\n", len(r.session.SelectedImages()))
	return nil
}

func (r *chatREPL) accept(ctx context.Context, id string) error {
	if err := r.session.Accept(ctx, id); err != nil {
		return err
	}
	el, err := r.doc.SelectedElement(ctx)
	if err != nil || el == nil {
		fmt.Fprintln(r.out, "image accepted")
		return err
	}
	asset, err := el.Asset(ctx)
	if err != nil || asset == nil {
		fmt.Fprintln(r.out, "image accepted")
		return err
	}
	fmt.Fprintf(r.out, "image accepted: %s\n", asset.URL)
	return nil
}

func (r *chatREPL) lastPending() *chat.Message {
	msgs := r.session.Messages(r.session.Mode())
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ImageStatus == chat.ImageStatusPending {
			return &msgs[i]
		}
	}
	return nil
}

func statusLabel(s chat.ImageStatus) string {
	if s == chat.ImageStatusNone {
		return "none"
	}
	return string(s)
}
