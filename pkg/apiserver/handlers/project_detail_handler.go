package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/allocation"
	"github.com/jobtrack/jobtrack/pkg/apiserver/middleware"
	"github.com/jobtrack/jobtrack/pkg/apperr"
	"github.com/jobtrack/jobtrack/pkg/eventbus"
	"github.com/jobtrack/jobtrack/pkg/model"
	"github.com/jobtrack/jobtrack/pkg/report"
)

const heartbeatInterval = 25 * time.Second

type ProjectDetailHandler struct {
	service *allocation.Service
	bus     *eventbus.Bus
	logger  *zap.Logger
}

func NewProjectDetailHandler(service *allocation.Service, bus *eventbus.Bus, logger *zap.Logger) *ProjectDetailHandler {
	return &ProjectDetailHandler{service: service, bus: bus, logger: logger}
}

type createDayRequest struct {
	ProjectID   uint   `json:"project_id" binding:"required"`
	ProjectDate string `json:"project_date" binding:"required"`
	LocationID  *uint  `json:"location_id"`
}

type updateDayRequest struct {
	ProjectDate string `json:"project_date" binding:"required"`
	LocationID  *uint  `json:"location_id"`
}

type itemAssignmentRequest struct {
	ItemID            string `json:"item_id" binding:"required"`
	AllocatedQuantity int    `json:"allocated_quantity" binding:"required,gt=0,lte=1000000"`
	Status            string `json:"status" binding:"omitempty,oneof=allocated deployed returned"`
}

type addItemsRequest struct {
	JONumber        string                  `json:"joNumber" binding:"required"`
	ProjectDayIDs   []uint                  `json:"project_day_ids" binding:"required,min=1,unique,dive,gt=0"`
	ItemAssignments []itemAssignmentRequest `json:"item_assignments" binding:"required,min=1,dive"`
}

type updateItemRequest struct {
	AllocatedQuantity *int    `json:"allocated_quantity" binding:"omitempty,gte=0,lte=1000000"`
	DamagedQuantity   *int    `json:"damaged_quantity" binding:"omitempty,gte=0,lte=1000000"`
	LostQuantity      *int    `json:"lost_quantity" binding:"omitempty,gte=0,lte=1000000"`
	ReturnedQuantity  *int    `json:"returned_quantity" binding:"omitempty,gte=0,lte=1000000"`
	Status            *string `json:"status" binding:"omitempty,oneof=allocated deployed returned"`
}

type personnelAssignmentRequest struct {
	PersonnelID uint `json:"personnel_id" binding:"required"`
	RoleID      uint `json:"role_id" binding:"required"`
}

type addPersonnelRequest struct {
	JONumber             string                       `json:"joNumber" binding:"required"`
	ProjectDayIDs        []uint                       `json:"project_day_ids" binding:"required,min=1,unique,dive,gt=0"`
	PersonnelAssignments []personnelAssignmentRequest `json:"personnel_assignments" binding:"required,min=1,dive"`
}

func (h *ProjectDetailHandler) Get(c *gin.Context) {
	detail, err := h.service.GetProjectDetail(c.Request.Context(), c.Param("joNumber"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", detail)
}

func (h *ProjectDetailHandler) AvailableItems(c *gin.Context) {
	items, err := h.service.ListAvailableItems(c.Request.Context(), c.Param("joNumber"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", items)
}

func (h *ProjectDetailHandler) PersonnelOptions(c *gin.Context) {
	options, err := h.service.ListPersonnelAndRoles(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", options)
}

func (h *ProjectDetailHandler) Locations(c *gin.Context) {
	locations, err := h.service.ListActiveLocations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "", locations)
}

func (h *ProjectDetailHandler) CreateDay(c *gin.Context) {
	var req createDayRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := allocation.ParseDate(req.ProjectDate)
	if err != nil {
		respondError(c, h.logger, apperr.Validation("%s", err.Error()))
		return
	}

	day, err := h.service.AddProjectDay(c.Request.Context(), req.ProjectID,
		allocation.DayInput{Date: date, LocationID: req.LocationID}, middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Project day added", day)
}

func (h *ProjectDetailHandler) UpdateDay(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req updateDayRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := allocation.ParseDate(req.ProjectDate)
	if err != nil {
		respondError(c, h.logger, apperr.Validation("%s", err.Error()))
		return
	}

	day, err := h.service.UpdateProjectDay(c.Request.Context(), id,
		allocation.DayInput{Date: date, LocationID: req.LocationID}, middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Project day updated", day)
}

func (h *ProjectDetailHandler) DeleteDay(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteProjectDay(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Project day deleted", nil)
}

func (h *ProjectDetailHandler) AddItems(c *gin.Context) {
	var req addItemsRequest
	if !bindJSON(c, &req) {
		return
	}

	in := allocation.AddItemsInput{
		JONumber:      req.JONumber,
		ProjectDayIDs: req.ProjectDayIDs,
		Assignments:   make([]allocation.ItemAssignment, 0, len(req.ItemAssignments)),
	}
	for _, a := range req.ItemAssignments {
		in.Assignments = append(in.Assignments, allocation.ItemAssignment{
			ItemID:            a.ItemID,
			AllocatedQuantity: a.AllocatedQuantity,
			Status:            model.ProjectItemStatus(a.Status),
		})
	}

	results, err := h.service.AddProjectItems(c.Request.Context(), in, middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Items processed", results)
}

func (h *ProjectDetailHandler) UpdateItem(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req updateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	update := allocation.ItemUpdate{
		AllocatedQuantity: req.AllocatedQuantity,
		DamagedQuantity:   req.DamagedQuantity,
		LostQuantity:      req.LostQuantity,
		ReturnedQuantity:  req.ReturnedQuantity,
	}
	if req.Status != nil {
		status := model.ProjectItemStatus(*req.Status)
		update.Status = &status
	}

	item, err := h.service.UpdateProjectItem(c.Request.Context(), id, update, middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Project item updated", item)
}

func (h *ProjectDetailHandler) DeleteItem(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteProjectItem(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Project item removed", nil)
}

func (h *ProjectDetailHandler) AddPersonnel(c *gin.Context) {
	var req addPersonnelRequest
	if !bindJSON(c, &req) {
		return
	}

	in := allocation.AddPersonnelInput{
		JONumber:      req.JONumber,
		ProjectDayIDs: req.ProjectDayIDs,
		Assignments:   make([]allocation.PersonnelAssignment, 0, len(req.PersonnelAssignments)),
	}
	for _, a := range req.PersonnelAssignments {
		in.Assignments = append(in.Assignments, allocation.PersonnelAssignment{PersonnelID: a.PersonnelID, RoleID: a.RoleID})
	}

	results, err := h.service.AddPersonnel(c.Request.Context(), in, middleware.ActorID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Personnel processed", results)
}

func (h *ProjectDetailHandler) RemovePersonnel(c *gin.Context) {
	dayID, ok := uintParam(c, "dayId")
	if !ok {
		return
	}
	personnelID, ok := uintParam(c, "personnelId")
	if !ok {
		return
	}
	roleID, ok := uintParam(c, "roleId")
	if !ok {
		return
	}

	key := model.ProjectPersonnelKey{ProjectDayID: dayID, PersonnelID: personnelID, RoleID: roleID}
	if err := h.service.RemovePersonnel(c.Request.Context(), c.Param("joNumber"), key, middleware.ActorID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Personnel removed", nil)
}

// Events streams change notifications for one job order so open detail
// views know when to refetch.
func (h *ProjectDetailHandler) Events(c *gin.Context) {
	if !h.bus.Enabled() {
		c.JSON(http.StatusServiceUnavailable, envelope{Message: "Live updates are not enabled"})
		return
	}

	ctx := c.Request.Context()
	project, err := h.service.GetProject(ctx, c.Param("joNumber"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	changes := h.bus.ProjectChanges(ctx, project.JONumber)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"jo_number": project.JONumber})
	c.Stream(func(w io.Writer) bool {
		select {
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent(eventbus.EventProjectChanged, change)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *ProjectDetailHandler) Export(c *gin.Context) {
	detail, err := h.service.GetProjectDetail(c.Request.Context(), c.Param("joNumber"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	f, err := report.Build(detail)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", report.ContentType)
	c.Header("Content-Disposition", "attachment; filename="+report.Filename(detail.Project.JONumber))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("failed to write export", zap.String("jo_number", detail.Project.JONumber), zap.Error(err))
	}
}
