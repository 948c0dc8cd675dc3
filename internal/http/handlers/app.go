package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"wardrobe/internal/pipeline"
	"wardrobe/internal/wardrobe"
)

// PoolStats exposes worker pool occupancy for the health endpoint.
type PoolStats interface {
	Stats() pipeline.Stats
}

// App carries the dependencies shared by every handler.
type App struct {
	Service        *wardrobe.Service
	Pool           PoolStats
	Logger         zerolog.Logger
	MaxUploadBytes int64

	validate *validator.Validate
}

func NewApp(svc *wardrobe.Service, pool PoolStats, logger zerolog.Logger, maxUploadBytes int64) *App {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &App{
		Service:        svc,
		Pool:           pool,
		Logger:         logger.With().Str("component", "http").Logger(),
		MaxUploadBytes: maxUploadBytes,
		validate:       v,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
