package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/service/appointment"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterDonorRoutes expects a group restricted to donors.
func (h *Handler) RegisterDonorRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.Schedule)
		appointments.GET("", h.ListForDonor)
		appointments.PUT("/:id/cancel", h.Cancel)
		appointments.PUT("/:id/reschedule", h.Reschedule)
	}
}

// RegisterHospitalRoutes expects a group restricted to hospitals.
func (h *Handler) RegisterHospitalRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListForHospital)
		appointments.PUT("/:id/status", h.UpdateStatus)
		appointments.PUT("/:id/complete", h.Complete)
		appointments.PUT("/:id/cancel", h.Cancel)
		appointments.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Schedule(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.svc.Schedule(c.Request.Context(), actor.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewWarningResponse(res.Appointment, res.Warnings))
}

func (h *Handler) ListForDonor(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	appts, err := h.svc.ListForDonor(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appts))
}

func (h *Handler) ListForHospital(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	appts, err := h.svc.ListForHospital(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appts))
}

// Cancel serves both sides; the actor's role decides the ownership check.
func (h *Handler) Cancel(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.CancelAppointmentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.RespondBindError(c, err)
			return
		}
	}

	res, err := h.svc.Cancel(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewWarningResponse(res.Appointment, res.Warnings))
}

func (h *Handler) Reschedule(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	appt, err := h.svc.Reschedule(c.Request.Context(), actor.UserID, id, req.AppointmentDate)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.AppointmentStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	appt, err := h.svc.UpdateStatus(c.Request.Context(), actor.UserID, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) Complete(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	appt, err := h.svc.Complete(c.Request.Context(), actor.UserID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appt))
}

func (h *Handler) Delete(c *gin.Context) {
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
