package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/mashiike/imageai"
	"github.com/mashiike/imageai/awsadp"
	"github.com/mashiike/imageai/config"
	"github.com/mashiike/imageai/host"
	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/webflow"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

type rootOption func(*app)

// withRegistry replaces the default provider registry.
func withRegistry(registry *model.Registry) rootOption {
	return func(a *app) {
		a.registry = registry
	}
}

// app carries what every subcommand shares. It is filled in by the root
// PersistentPreRunE.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *model.Registry
}

func newRootCmd(opts ...rootOption) *cobra.Command {
	root, _ := newRoot(opts...)
	return root
}

func newRoot(opts ...rootOption) (*cobra.Command, *app) {
	a := &app{}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "imageai",
		Short: "Enhance and generate images with generative AI providers",
		Long: `imageai bridges design tools and image-capable AI providers.

Providers are selected with the AI environment variable (openai, gemini or
bedrock) and authenticated with OPENAI_API_KEY, GEMINI_API_KEY or the AWS
credential chain.

Quick Start:
  imageai serve                                  # run the HTTP API
  imageai generate "a red bicycle" --out bike.png
  imageai enhance photo.jpg "make it brighter" --out bright.png
  imageai chat                                   # interactive session`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			if a.registry == nil {
				a.registry = imageai.NewDefaultRegistry()
			}
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(a),
		newEnhanceCmd(a),
		newGenerateCmd(a),
		newChatCmd(a),
	)
	return root, a
}

func (a *app) factory() *imageai.Factory {
	return imageai.NewFactory(imageai.FactoryConfig{
		Provider: a.cfg.Provider,
		Model:    a.cfg.ModelConfig(),
		Registry: a.registry,
		Logger:   a.logger,
	})
}

// fetcher downloads http(s) URLs only. The server uses it.
func (a *app) fetcher() *imagecodec.Fetcher {
	return imagecodec.NewFetcher(
		imagecodec.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		imagecodec.WithLogger(a.logger),
	)
}

// localFetcher also reads file:// URLs of local assets. Only local commands
// use it.
func (a *app) localFetcher() *imagecodec.Fetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return imagecodec.NewFetcher(
		imagecodec.WithHTTPClient(&http.Client{Transport: tr, Timeout: 60 * time.Second}),
		imagecodec.WithLogger(a.logger),
	)
}

func (a *app) s3AssetStore(ctx context.Context) (*awsadp.S3AssetStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsadp.NewS3AssetStore(awsadp.S3AssetStoreConfig{
		Client:        s3.NewFromConfig(awsCfg),
		Bucket:        a.cfg.AssetBucket,
		Prefix:        a.cfg.AssetPrefix,
		Expires:       a.cfg.AssetURLTTL,
		PublicBaseURL: a.cfg.AssetPublicURL,
		Logger:        a.logger,
	})
}

// assetResolver returns the backend the server resolves selectedImage with.
func (a *app) assetResolver(ctx context.Context) (imageai.AssetResolver, error) {
	if a.cfg.AssetBackend == config.AssetBackendS3 {
		return a.s3AssetStore(ctx)
	}
	return webflow.NewClient(
		webflow.WithBaseURL(a.cfg.WebflowAPIURL),
		webflow.WithLogger(a.logger),
	), nil
}

// documentOptions wires the optional AWS backends into a local document.
func (a *app) documentOptions(ctx context.Context) ([]host.MemoryOption, error) {
	opts := []host.MemoryOption{host.WithMemoryLogger(a.logger)}
	if a.cfg.AssetBackend == config.AssetBackendS3 {
		store, err := a.s3AssetStore(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, host.WithAssetCreator(store))
	}
	if a.cfg.NotifyQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		notifier, err := awsadp.NewSQSNotifier(ctx, awsadp.SQSNotifierConfig{
			Client:   sqs.NewFromConfig(awsCfg),
			QueueURL: a.cfg.NotifyQueueURL,
			Source:   "imageai-chat",
			Logger:   a.logger,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, host.WithNotifier(notifier))
	}
	return opts, nil
}
