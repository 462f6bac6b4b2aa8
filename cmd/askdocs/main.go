package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/askdocs/askdocs/internal/agent"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/extract"
	"github.com/askdocs/askdocs/internal/index"
	"github.com/askdocs/askdocs/internal/llm"
	"github.com/askdocs/askdocs/internal/llm/openai"
	"github.com/askdocs/askdocs/internal/observability"
	"github.com/askdocs/askdocs/internal/pipeline"
	"github.com/askdocs/askdocs/internal/server"
	"github.com/askdocs/askdocs/internal/store"
	"github.com/askdocs/askdocs/internal/vector"
)

const version = "0.1.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "askdocs",
		Short: "Ask questions about your uploaded PDF documents",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/askdocs.yaml", "Config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers (all OpenAI-compatible):")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-8s %s\n", name, url)
			}
			fmt.Println()
			fmt.Println("Configure in askdocs.yaml or via environment:")
			fmt.Println("  ASKDOCS_LLM_PROVIDER=ollama")
			fmt.Println("  ASKDOCS_LLM_MODEL=qwen3:latest")
			fmt.Println("  ASKDOCS_LLM_EMBED_MODEL=nomic-embed-text")
		},
	}

	rootCmd.AddCommand(serveCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx := context.Background()
	tracer, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "askdocs",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	docStore, err := store.New(afero.NewOsFs(), cfg.Storage.DocumentsDir, cfg.Storage.TextDir, logger)
	if err != nil {
		return err
	}
	// Clean start: the index never outlives the process, so text
	// units left by a previous run would feed a corpus the user can
	// no longer see or manage.
	if err := docStore.ClearText(); err != nil {
		return err
	}

	var repoFactory vector.Factory
	switch cfg.Vector.Backend {
	case "qdrant":
		repoFactory = vector.QdrantFactory(cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
	default:
		repoFactory = vector.MemoryFactory
	}

	runner := extract.NewRunner(docStore, extract.NewPDF(docStore), cfg.Storage.KeepSources, logger)
	chunker := index.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	builder := index.NewBuilder(provider, chunker, repoFactory, logger)
	controller := pipeline.New(docStore, runner, builder, provider, agent.Options{
		TopK:         cfg.Retrieval.TopK,
		MaxToolCalls: cfg.Retrieval.MaxToolCalls,
	}, logger)

	srv := server.New(&server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, controller, docStore, logger)

	shutdown := server.NewShutdownHandler(&server.ShutdownConfig{
		Timeout: cfg.Server.ShutdownTimeout,
		Signals: server.DefaultShutdownConfig().Signals,
	}, logger)
	shutdown.RegisterHook("http-server", 10, srv.Stop)
	shutdown.RegisterHook("tracing", 80, tracer.Shutdown)
	shutdown.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		shutdown.Shutdown()
		shutdown.Wait()
		return err
	case <-shutdown.ShutdownCh():
		shutdown.Wait()
		return nil
	}
}

// buildProvider registers the OpenAI-compatible presets and creates
// the configured provider, wrapped with retry/timeout.
func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	factory := llm.NewFactory()
	for name, defaultURL := range llm.KnownProviders {
		url := defaultURL
		factory.Register(name, func(pc llm.ProviderConfig) (llm.Provider, error) {
			base := pc.BaseURL
			if base == "" {
				base = url
			}
			return openai.New(pc.APIKey, pc.Model, base, pc.EmbedModel), nil
		})
	}

	return factory.Create(llm.ProviderConfig{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		EmbedModel: cfg.EmbedModel,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
