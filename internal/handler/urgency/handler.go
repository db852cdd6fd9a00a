package urgency

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/service/response"
	"github.com/lifeline/donation-api/internal/service/urgency"
)

type Handler struct {
	urgency   *urgency.Service
	responses *response.Service
}

func NewHandler(urgencySvc *urgency.Service, responseSvc *response.Service) *Handler {
	return &Handler{urgency: urgencySvc, responses: responseSvc}
}

// RegisterHospitalRoutes expects a group restricted to hospitals.
func (h *Handler) RegisterHospitalRoutes(r *gin.RouterGroup) {
	requests := r.Group("/urgency-requests")
	{
		requests.POST("", h.Create)
		requests.GET("", h.ListForHospital)
		requests.GET("/:id/donors", h.RequestDonors)
		requests.PUT("/:id/deactivate", h.Deactivate)
		requests.PUT("/:id/fulfill", h.Fulfill)
	}
	r.GET("/urgency-responses", h.ListResponses)
	r.GET("/nearby-donors", h.NearbyDonors)
}

// RegisterDonorRoutes expects a group restricted to donors.
func (h *Handler) RegisterDonorRoutes(r *gin.RouterGroup) {
	requests := r.Group("/urgency-requests")
	{
		requests.GET("", h.ListForDonor)
		requests.GET("/count", h.CountForDonor)
		requests.POST("/:id/accept", h.Accept)
		requests.POST("/:id/reject", h.Reject)
	}
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.CreateUrgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.urgency.Create(c.Request.Context(), actor.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewWarningResponse(res, res.Warnings))
}

func (h *Handler) ListForHospital(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	requests, err := h.urgency.ListForHospital(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(requests))
}

func (h *Handler) RequestDonors(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	res, err := h.urgency.RequestDonors(c.Request.Context(), actor.UserID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) NearbyDonors(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var q model.NearbyDonorsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.urgency.NearbyDonors(c.Request.Context(), actor.UserID, q)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) Deactivate(c *gin.Context) {
	h.close(c, h.urgency.Deactivate)
}

func (h *Handler) Fulfill(c *gin.Context) {
	h.close(c, h.urgency.Fulfill)
}

type closeFunc func(ctx context.Context, hospitalUserID, requestID uuid.UUID) (*model.UrgencyRequest, error)

func (h *Handler) close(c *gin.Context, fn closeFunc) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	request, err := fn(c.Request.Context(), actor.UserID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(request))
}

func (h *Handler) ListResponses(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	responses, err := h.urgency.ListResponses(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(responses))
}

func (h *Handler) ListForDonor(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	requests, err := h.urgency.ListForDonor(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(requests))
}

func (h *Handler) CountForDonor(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	n, err := h.urgency.CountForDonor(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"count": n}))
}

func (h *Handler) Accept(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.AcceptUrgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.responses.Accept(c.Request.Context(), actor.UserID, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewWarningResponse(res, res.Warnings))
}

func (h *Handler) Reject(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req model.RejectUrgencyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handler.RespondBindError(c, err)
			return
		}
	}

	resp, err := h.responses.Reject(c.Request.Context(), actor.UserID, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}
