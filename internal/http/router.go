package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/visitops/backend/internal/config"
	"github.com/visitops/backend/internal/db"
	"github.com/visitops/backend/internal/http/handlers"
	"github.com/visitops/backend/internal/http/middleware"
	"github.com/visitops/backend/internal/metrics"
	"github.com/visitops/backend/internal/routing"
	"github.com/visitops/backend/internal/solver"

	_ "github.com/visitops/backend/docs"
)

func Router(cfg config.Config, store *db.Store, adapter solver.Adapter, optimizer routing.Optimizer, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:            store,
		Solver:           adapter,
		Optimizer:        optimizer,
		Validator:        validator.New(),
		Logger:           logger,
		AdminKey:         cfg.AdminKey,
		EmergencyReserve: cfg.EmergencyReserve,
		SolveTimeout:     cfg.SolverTimeLimit,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/technicians", h.TechniciansList)
		api.GET("/clients", h.ClientsList)
		api.GET("/visits", h.VisitsList)
		api.GET("/agenda/routes", h.RoutesList)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/technicians", h.TechniciansImport)
		admin.POST("/clients", h.ClientsImport)
		admin.POST("/agenda/generate", h.AgendaGenerate)
		admin.POST("/agenda/routes", h.RoutesBuild)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
