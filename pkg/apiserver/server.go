package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/apiserver/handlers"
	"github.com/jobtrack/jobtrack/pkg/apiserver/middleware"
	"github.com/jobtrack/jobtrack/pkg/auth"
	"github.com/jobtrack/jobtrack/pkg/config"
	"github.com/jobtrack/jobtrack/pkg/eventbus"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/store"
)

type Server struct {
	router  *gin.Engine
	service *allocation.Service
	users   store.UserRepository
	tokens  *auth.TokenManager
	bus     *eventbus.Bus
	cfg     *config.Config
	logger  *zap.Logger
}

func NewServer(service *allocation.Service, users store.UserRepository, bus *eventbus.Bus, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		users:   users,
		tokens:  auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer),
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		handlers.RegisterJSONFieldNames(v)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(s.cfg.Server.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(s.users, s.tokens, s.logger)
	r.POST("/api/auth/login", authHandler.Login)

	api := r.Group("/api")
	api.Use(middleware.Auth(s.tokens, s.users, s.logger))
	{
		api.GET("/auth/me", authHandler.Me)

		view := middleware.RequirePermission(model.PermViewProjects)
		manageProjects := middleware.RequirePermission(model.PermManageProjects)
		manageAllocations := middleware.RequirePermission(model.PermManageAllocations)
		managePersonnel := middleware.RequirePermission(model.PermManagePersonnel)

		projectHandler := handlers.NewProjectHandler(s.service, s.logger)
		api.GET("/projects", view, projectHandler.List)
		api.POST("/projects", manageProjects, projectHandler.Create)
		api.DELETE("/projects/:joNumber", manageProjects, projectHandler.Cancel)

		detail := api.Group("/project-detail")
		detailHandler := handlers.NewProjectDetailHandler(s.service, s.bus, s.logger)
		detail.GET("/jo/:joNumber", view, detailHandler.Get)
		detail.GET("/jo/:joNumber/events", view, detailHandler.Events)
		detail.GET("/jo/:joNumber/export", view, detailHandler.Export)
		detail.GET("/items/:joNumber", view, detailHandler.AvailableItems)
		detail.GET("/personnel", view, detailHandler.PersonnelOptions)
		detail.GET("/locations", view, detailHandler.Locations)

		detail.POST("/project-days", manageProjects, detailHandler.CreateDay)
		detail.PUT("/project-days/:id", manageProjects, detailHandler.UpdateDay)
		detail.DELETE("/project-days/:id", manageProjects, detailHandler.DeleteDay)

		detail.POST("/project-items", manageAllocations, detailHandler.AddItems)
		detail.PUT("/project-items/:id", manageAllocations, detailHandler.UpdateItem)
		detail.DELETE("/project-items/:id", manageAllocations, detailHandler.DeleteItem)

		detail.POST("/personnel", managePersonnel, detailHandler.AddPersonnel)
		detail.DELETE("/personnel/:joNumber/:dayId/:personnelId/:roleId", managePersonnel, detailHandler.RemovePersonnel)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Tokens() *auth.TokenManager {
	return s.tokens
}
