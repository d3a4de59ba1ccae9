package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/rentchain-properties/api/controllers"
	"github.com/angelmondragon/rentchain-properties/api/middleware"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	"github.com/angelmondragon/rentchain-properties/internal/search"
	"github.com/angelmondragon/rentchain-properties/pkg/config"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/redis"
)

// Searcher runs criteria searches; *search.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, c search.Criteria, page search.Page) ([]models.Property, error)
}

// Deps carries everything the router hands to middleware and controllers. Redis, Storage
// and Gatherer may be nil.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *redis.Client
	Storage    controllers.Pinger
	Properties properties.Service
	Search     Searcher
	Rooms      rooms.Service
	Gatherer   prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": d.DB}
	if d.Redis != nil {
		readiness["redis"] = d.Redis
	}
	if d.Storage != nil {
		readiness["storage"] = d.Storage
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, readiness, logg))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticated := middleware.Auth(cfg.JWT, logg)
	idempotent := passThrough
	ledgerWrites := passThrough
	if d.Redis != nil {
		idempotent = middleware.Idempotency(d.Redis, logg)
		ledgerWrites = middleware.RateLimit(
			middleware.NewRateLimitPolicy("ledger-write", cfg.HTTP.LedgerWriteWindow, cfg.HTTP.LedgerWriteLimit),
			d.Redis,
			logg,
		)
	}
	maxUpload := cfg.GCS.MaxUploadBytes()

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/properties", func(r chi.Router) {
			r.Get("/search", controllers.SearchProperties(d.Search, d.Properties, logg))
			r.With(authenticated).Get("/mine", controllers.ListMyProperties(d.Properties, logg))
			r.With(authenticated, ledgerWrites, idempotent).Post("/", controllers.CreateProperty(d.Properties, logg))

			r.Route("/{propertyId}", func(r chi.Router) {
				r.Get("/", controllers.GetProperty(d.Properties, logg))
				r.Get("/rooms", controllers.ListRooms(d.Rooms, logg))

				r.Group(func(r chi.Router) {
					r.Use(authenticated)
					r.With(ledgerWrites, idempotent).Put("/", controllers.UpdateProperty(d.Properties, logg))
					r.With(ledgerWrites).Delete("/", controllers.DelistProperty(d.Properties, logg))
					r.With(idempotent).Post("/rooms", controllers.CreateRoom(d.Rooms, logg))
				})
			})
		})

		r.Route("/rooms/{roomId}", func(r chi.Router) {
			r.Get("/", controllers.GetRoom(d.Rooms, logg))
			r.Get("/images", controllers.ListImages(d.Rooms, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Patch("/", controllers.UpdateRoom(d.Rooms, logg))
				r.Delete("/", controllers.DeleteRoom(d.Rooms, logg))
				r.With(idempotent).Post("/images", controllers.UploadImage(d.Rooms, maxUpload, logg))
			})
		})

		r.Route("/images/{imageId}", func(r chi.Router) {
			r.Get("/", controllers.GetImage(d.Rooms, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Put("/order", controllers.ReorderImage(d.Rooms, logg))
				r.Delete("/", controllers.DeleteImage(d.Rooms, logg))
			})
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }
