package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/es-reviewer/internal/ai"
	"github.com/spigell/es-reviewer/internal/ai/gemini"
	"github.com/spigell/es-reviewer/internal/ai/openai"
	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/evaluator"
	"github.com/spigell/es-reviewer/internal/ledger"
	"github.com/spigell/es-reviewer/internal/prompt"
	"github.com/spigell/es-reviewer/internal/secrets"
)

// loadCatalog returns the configured catalog and warns about profiles whose
// weights drifted away from 100.
func loadCatalog(config *Config, logger *zap.Logger) (*companies.Catalog, error) {
	catalog, err := companies.LoadFile(config.Review.CompaniesFile)
	if err != nil {
		return nil, err
	}

	for _, d := range catalog.Drift(companies.DriftTolerance) {
		logger.Warn("company weights drift", zap.String("company", d.ID), zap.Int("sum", d.Sum))
	}

	logger.Debug("company catalog loaded",
		zap.Int("count", len(catalog.Profiles())),
		zap.String("file", config.Review.CompaniesFile),
	)

	return catalog, nil
}

func newTransport(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Transport, string, error) {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := ai.RetryPolicy{MaxRetries: uint64(retries)}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", "openai":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		client, err := openai.New(openai.Config{
			APIKey:  apiKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Retry:   policy,
		})
		if err != nil {
			return nil, "", err
		}

		logger.Debug("transport ready",
			zap.String("provider", client.Provider()),
			zap.String("model", client.Model()),
			zap.String("api_key", secrets.Redact(apiKey)),
		)
		return client, client.Model(), nil
	case "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		transport, err := gemini.New(ctx, gemini.Config{
			APIKey: apiKey,
			Model:  cfg.Gemini.Model,
			Retry:  policy,
		})
		if err != nil {
			return nil, "", err
		}

		logger.Debug("transport ready",
			zap.String("provider", transport.Provider()),
			zap.String("model", transport.Model()),
			zap.String("api_key", secrets.Redact(apiKey)),
		)
		return transport, transport.Model(), nil
	default:
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newEvaluator(ctx context.Context, config *Config, catalog *companies.Catalog, logger *zap.Logger) (*evaluator.Evaluator, error) {
	transport, model, err := newTransport(ctx, config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building ai transport: %w", err)
	}

	cfg := config.AI
	return evaluator.New(transport, catalog, prompt.NewBuilder(catalog), evaluator.Options{
		Model:                model,
		Timeout:              cfg.Timeout,
		MaxOutputTokens:      cfg.MaxOutputTokens,
		Temperature:          cfg.Temperature,
		Verbosity:            cfg.Verbosity,
		ReasoningEffort:      cfg.ReasoningEffort,
		Structured:           cfg.StructuredOutput,
		PromptCacheKey:       cfg.PromptCacheKey,
		PromptCacheRetention: cfg.PromptCacheRetention,
		MaxLogLength:         cfg.MaxLogLength,
		EvidenceLimit:        cfg.EvidenceLength,
	}, logger)
}

// newLedger returns nil when no path is configured.
func newLedger(path string) (*ledger.Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	return ledger.New(path)
}
