package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freshroute/freshroute-backend/api/controllers"
	"github.com/freshroute/freshroute-backend/api/middleware"
	"github.com/freshroute/freshroute-backend/internal/containers"
	"github.com/freshroute/freshroute-backend/internal/crowd"
	"github.com/freshroute/freshroute-backend/internal/picktasks"
	"github.com/freshroute/freshroute-backend/pkg/config"
	"github.com/freshroute/freshroute-backend/pkg/db"
	"github.com/freshroute/freshroute-backend/pkg/logger"
	"github.com/freshroute/freshroute-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	Shelves        controllers.ShelfRegistry
	Crowd          crowd.Service
	Containers     containers.Service
	PickTasks      picktasks.Service
	MetricsHandler http.Handler
}

// NewRouter assembles the warehouse API.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	r.Get("/ping", controllers.PublicPing())

	if p.MetricsHandler != nil {
		r.Handle("/metrics", p.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/shelves", func(r chi.Router) {
			r.Post("/", controllers.ShelfCreate(p.Shelves, p.Logger))
			r.Get("/", controllers.ShelfList(p.Shelves, p.Logger))
			r.Get("/non-crowded", controllers.ShelfNonCrowded(p.Crowd, p.Logger))
			r.Route("/{shelfId}", func(r chi.Router) {
				r.Get("/crowd", controllers.ShelfCrowd(p.Crowd, p.Logger))
				r.Post("/crowd/bump", controllers.ShelfCrowdBump(p.Crowd, p.Logger))
			})
		})

		r.Route("/containers", func(r chi.Router) {
			r.Post("/", controllers.ContainerIntake(p.Containers, p.Logger))
			r.Get("/", controllers.ContainerList(p.Containers, p.Logger))
			r.Route("/{containerId}", func(r chi.Router) {
				r.Get("/", controllers.ContainerGet(p.Containers, p.Logger))
				r.Post("/advance", controllers.ContainerAdvance(p.Containers, p.Logger))
			})
		})

		r.Route("/pick-tasks", func(r chi.Router) {
			r.Post("/", controllers.PickTaskCreate(p.PickTasks, p.Logger))
			r.Get("/", controllers.PickTaskList(p.PickTasks, p.Logger))
			r.Route("/{taskId}", func(r chi.Router) {
				r.Get("/", controllers.PickTaskGet(p.PickTasks, p.Logger))
				r.Post("/claim", controllers.PickTaskClaim(p.PickTasks, p.Logger))
				r.Post("/complete", controllers.PickTaskComplete(p.PickTasks, p.Logger))
				r.Post("/cancel", controllers.PickTaskCancel(p.PickTasks, p.Logger))
			})
		})
	})

	return r
}
