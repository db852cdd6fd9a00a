package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/service/patient"
	"github.com/lifeline/donation-api/pkg/httputil"
)

type Handler struct {
	svc *patient.Service
}

func NewHandler(svc *patient.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes expects a group restricted to hospitals.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/stats", h.Stats)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	p, err := h.svc.Create(c.Request.Context(), actor.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) ListPatients(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	status := c.Query("status")
	switch model.PatientStatus(status) {
	case "", model.PatientStatusPending, model.PatientStatusFulfilled, model.PatientStatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("status must be pending, fulfilled or cancelled"))
		return
	}

	page, err := h.svc.List(c.Request.Context(), actor.UserID, status, httputil.GetParams(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(page))
}

func (h *Handler) Stats(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

func (h *Handler) GetPatient(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), actor.UserID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	p, err := h.svc.Update(c.Request.Context(), actor.UserID, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor.UserID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}
