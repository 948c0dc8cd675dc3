package stage

import (
	"fmt"

	"github.com/rs/zerolog"

	"wardrobe/internal/infra"
	"wardrobe/internal/providers/edit"
	"wardrobe/internal/providers/genai"
	"wardrobe/internal/providers/openai"
	"wardrobe/internal/providers/removebg"
	"wardrobe/internal/storage"
)

// FromConfig builds both stages. A stage whose key is missing becomes a Noop
// and a warning is logged.
func FromConfig(cfg *infra.Config, scratch *storage.FileStore, logger zerolog.Logger) (enhancer, remover Stage, err error) {
	enhancer = Noop{StageName: NameEnhancer}
	if cfg.EnhancerAPIKey == "" {
		logger.Warn().Str("provider", cfg.EnhancerProvider).Msg("ENHANCER_API_KEY not set, AI enhancement disabled")
	} else {
		editor, err := newEditor(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		enhancer = NewEnhancer(editor, scratch, cfg.AdapterTimeout, logger)
	}

	remover = Noop{StageName: NameRemover}
	if cfg.RemoverAPIKey == "" {
		logger.Warn().Msg("REMOVER_API_KEY not set, background removal disabled")
	} else {
		client := removebg.NewClient(removebg.Options{
			APIKey:         cfg.RemoverAPIKey,
			BaseURL:        cfg.RemoverBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.AdapterTimeout,
		})
		remover = NewRemover(client, cfg.AdapterTimeout, logger)
	}
	return enhancer, remover, nil
}

func newEditor(cfg *infra.Config, logger zerolog.Logger) (edit.Editor, error) {
	switch cfg.EnhancerProvider {
	case "", "openai":
		return openai.NewClient(openai.Options{
			APIKey:         cfg.EnhancerAPIKey,
			BaseURL:        cfg.EnhancerBaseURL,
			Model:          cfg.EnhancerModel,
			Logger:         &logger,
			RequestTimeout: cfg.AdapterTimeout,
		}), nil
	case "gemini":
		return genai.NewClient(genai.Options{
			APIKey:         cfg.EnhancerAPIKey,
			BaseURL:        cfg.EnhancerBaseURL,
			Model:          cfg.EnhancerModel,
			Logger:         &logger,
			RequestTimeout: cfg.AdapterTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("stage: unsupported enhancer provider %q", cfg.EnhancerProvider)
	}
}
