package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/apiserver/middleware"
	"github.com/jobtrack/jobtrack/pkg/model"
)

type ProjectHandler struct {
	service *allocation.Service
	logger  *zap.Logger
}

func NewProjectHandler(service *allocation.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{service: service, logger: logger}
}

type projectCreateRequest struct {
	JONumber string `json:"jo_number" binding:"required,max=100"`
	Name     string `json:"name" binding:"required,max=255"`
	Status   string `json:"status" binding:"omitempty,oneof=upcoming ongoing completed"`
}

func (h *ProjectHandler) List(c *gin.Context) {
	status := model.ProjectStatus(strings.TrimSpace(c.Query("status")))
	projects, err := h.service.ListProjects(c.Request.Context(), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	respond(c, http.StatusOK, "", projects)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req projectCreateRequest
	if !bindJSON(c, &req) {
		return
	}

	project, err := h.service.CreateProject(c.Request.Context(), allocation.ProjectInput{
		JONumber: req.JONumber,
		Name:     req.Name,
		Status:   model.ProjectStatus(req.Status),
	}, middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Project created", project)
}

func (h *ProjectHandler) Cancel(c *gin.Context) {
	project, err := h.service.CancelProject(c.Request.Context(), c.Param("joNumber"), middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Project cancelled", project)
}
