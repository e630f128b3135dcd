package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Songmu/flextime"
	"github.com/mashiike/imageai"
	"github.com/mashiike/imageai/host"
	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/transport"
	"github.com/spf13/cobra"
)

func newEnhanceCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "enhance <image> <prompt>",
		Short: "Enhance a local image file",
		Long: `Enhance a local PNG, JPEG, WEBP, HEIC or HEIF image following the prompt.
The file goes through the same validation and download path as the
/image-ai/enhance endpoint.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			asset, err := localAsset(args[0])
			if err != nil {
				return err
			}
			doc := host.NewMemoryDocument(host.WithMemoryLogger(a.logger))
			doc.AddAsset(asset)

			service := imageai.NewService(a.factory(), doc,
				imageai.WithFetcher(a.localFetcher()),
				imageai.WithLogger(a.logger),
			)
			resp, err := service.Enhance(ctx, &transport.EnhanceRequest{
				Message:       strings.Join(args[1:], " "),
				SelectedImage: asset.ID,
			})
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), resp, out, "enhanced-image")
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: enhanced-image-<unixmillis>.png)")
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		out    string
		images []string
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate an image from a prompt",
		Long: `Generate an image from a prompt. With --image the first reference image
guides the generation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			refs := make([]model.Image, 0, len(images))
			for _, p := range images {
				data, err := os.ReadFile(p)
				if err != nil {
					return fmt.Errorf("failed to read reference image: %w", err)
				}
				refs = append(refs, model.Image{
					Data:     base64.StdEncoding.EncodeToString(data),
					MimeType: imagecodec.MimeTypeFromPath(p),
				})
			}

			service := imageai.NewService(a.factory(), nil, imageai.WithLogger(a.logger))
			resp, err := service.Generate(ctx, &transport.GenerateRequest{
				Message: strings.Join(args, " "),
				Images:  refs,
			})
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), resp, out, "generated-image")
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: generated-image-<unixmillis>.png)")
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "reference image file (repeatable)")
	return cmd
}

// localAsset describes a local file as a host asset addressed by a file:// URL.
func localAsset(p string) (*host.Asset, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	name := filepath.Base(abs)
	return &host.Asset{
		ID:       "local-" + name,
		Name:     name,
		MimeType: imagecodec.MimeTypeFromPath(name),
		URL:      (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
	}, nil
}

// writeResult prints the response text and saves the image, if any.
func writeResult(w io.Writer, resp *transport.Response, out, prefix string) error {
	fmt.Fprintln(w, resp.Response)
	if resp.ImageData == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.ImageData)
	if err != nil {
		return fmt.Errorf("failed to decode image data: %w", err)
	}
	if out == "" {
		out = fmt.Sprintf("%s-%d.png", prefix, flextime.Now().UnixMilli())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	fmt.Fprintf(w, "image saved to %s\n", out)
	return nil
}
