package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"deckforge/handler"
	"deckforge/internal/config"
	"deckforge/internal/integrations/llm"
	"deckforge/internal/integrations/paramstore"
	"deckforge/internal/repository"
	"deckforge/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if !cfg.KeyConfigured() {
		slog.Warn("no LLM API key configured, generate requests will fail until one is set")
	}

	// ---- Optional AWS wiring ----
	var keys llm.KeySource = llm.StaticKey(cfg.APIKey)
	var recorder usecase.Recorder = repository.NopRecorder{}
	if cfg.NeedsAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		if cfg.ParamPrefix != "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				slog.Error("failed to create SSM client", "err", err)
				os.Exit(1)
			}
			keys, err = llm.NewParamKeySource(ssmClient, cfg.ParamPrefix)
			if err != nil {
				slog.Error("failed to create key source", "err", err)
				os.Exit(1)
			}
		}
		if cfg.HistoryTable != "" {
			recorder, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.HistoryTable)
			if err != nil {
				slog.Error("failed to create audit recorder", "err", err)
				os.Exit(1)
			}
		}
	}

	// ---- Clients ----
	llmClient, err := llm.NewClient(cfg.APIURL, cfg.Model, keys)
	if err != nil {
		slog.Error("failed to create LLM client", "err", err)
		os.Exit(1)
	}

	// ---- Service and handler ----
	svc, err := usecase.NewGenerateService(llmClient, recorder, cfg.Model, cfg.KeyConfigured(), logger)
	if err != nil {
		slog.Error("failed to create generate service", "err", err)
		os.Exit(1)
	}
	h, err := handler.New(svc, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// A generate request holds the connection through two sequential
		// upstream calls of up to 120s each.
		WriteTimeout: 5 * time.Minute,
	}
	slog.Info("deckforge listening",
		"port", cfg.Port, "model", cfg.Model, "format", llmClient.Format().String())
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
