package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"wardrobe/internal/http/handlers"
	"wardrobe/internal/middleware"
)

// RouterConfig holds the settings the middleware chain needs.
type RouterConfig struct {
	TokenSecret      string
	TokenIssuer      string
	CORSOrigins      []string
	UploadRatePerMin int
	Logger           zerolog.Logger
}

func NewRouter(app *handlers.App, cfg RouterConfig) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(cfg.Logger),
		chimw.Recoverer,
		middleware.CORS(cfg.CORSOrigins),
	)

	r.Get("/healthz", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)

	uploadLimit := middleware.RateLimit(cfg.UploadRatePerMin, time.Minute, middleware.ByUser)

	r.Route("/clothes", func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.TokenSecret, cfg.TokenIssuer))

		r.Get("/", app.ClothesList)
		r.Post("/add", app.ClothesAdd)
		r.Get("/status/{id}", app.ClothesStatus)
		r.Patch("/update/{id}", app.ClothesUpdate)
		r.Delete("/{id}", app.ClothesDelete)

		r.Group(func(r chi.Router) {
			r.Use(uploadLimit)
			r.Post("/upload", app.ClothesUpload)
			r.Post("/upload/batch", app.ClothesUploadBatch)
			r.Post("/upload/batch-advanced", app.ClothesUploadAdvanced)
			r.Post("/{id}/reprocess", app.ClothesReprocess)
		})
	})

	return r
}
