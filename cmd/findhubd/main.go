// Command findhubd runs the lost-and-found catalog service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/findhub"
	"github.com/hupe1980/findhub/blobstore"
	miniomirror "github.com/hupe1980/findhub/blobstore/minio"
	s3mirror "github.com/hupe1980/findhub/blobstore/s3"
	"github.com/hupe1980/findhub/config"
	"github.com/hupe1980/findhub/extract"
	"github.com/hupe1980/findhub/server"
)

func main() {
	app := &cli.App{
		Name:  "findhubd",
		Usage: "Hybrid retrieval service for lost-and-found items",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API",
				Action: serveCommand,
			},
			{
				Name:   "check",
				Usage:  "Verify the vector index and metadata store agree",
				Action: checkCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func openCatalog(ctx context.Context, cfg *config.Config, logger *findhub.Logger) (*findhub.Catalog, error) {
	opts := []findhub.Option{
		findhub.WithDimension(cfg.Dimension),
		findhub.WithAlpha(cfg.Alpha),
		findhub.WithRecallLimit(cfg.RecallLimit),
		findhub.WithLogger(logger),
	}

	mirror, err := newMirror(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		opts = append(opts, findhub.WithMirror(mirror))
	}

	return findhub.Open(ctx, cfg.DataDir, opts...)
}

func newMirror(ctx context.Context, cfg *config.Config) (blobstore.Mirror, error) {
	switch cfg.MirrorBackend {
	case config.MirrorNone:
		return nil, nil
	case config.MirrorMinio:
		client, err := minio.New(cfg.MirrorEndpoint, &minio.Options{
			Creds: credentials.NewStaticV4(cfg.MirrorAccess, cfg.MirrorSecret, ""),
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return miniomirror.NewMirror(client, cfg.MirrorBucket, cfg.MirrorPrefix), nil
	case config.MirrorS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3mirror.NewMirror(awss3.NewFromConfig(awsCfg), cfg.MirrorBucket, cfg.MirrorPrefix), nil
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := &findhub.Logger{Logger: slog.Default()}

	catalog, err := openCatalog(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer catalog.Close()

	extractor := extract.NewHTTPClient(cfg.ExtractorBaseURL, cfg.Dimension, func(o *extract.HTTPClientOptions) {
		o.APIKey = cfg.ExtractorAPIKey
		o.RequestsPerSecond = cfg.ExtractorRPS
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(&server.Deps{
			Catalog:  catalog,
			Embedder: extractor,
			Tagger:   extractor,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func checkCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	catalog, err := openCatalog(c.Context, cfg, &findhub.Logger{Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer catalog.Close()

	report := catalog.Reconcile()

	fmt.Printf("index vectors:    %d\n", report.IndexCount)
	fmt.Printf("metadata records: %d\n", report.RecordCount)

	if !report.Consistent() {
		return fmt.Errorf("stores disagree: index is %d ahead", report.Drift())
	}

	fmt.Println("stores agree")

	return nil
}
