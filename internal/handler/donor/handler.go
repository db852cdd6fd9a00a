package donor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/service/donor"
)

type Handler struct {
	svc *donor.Service
}

func NewHandler(svc *donor.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes expects a group restricted to donors.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)

	eligibility := r.Group("/eligibility")
	{
		eligibility.PUT("", h.UpdateEligibility)
		eligibility.GET("/questions", h.Questions)
		eligibility.POST("/check", h.CheckEligibility)
		eligibility.GET("/history", h.History)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	profile, err := h.svc.GetProfile(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.DonorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.svc.UpdateProfile(c.Request.Context(), actor.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewWarningResponse(res.Profile, res.Warnings))
}

func (h *Handler) UpdateEligibility(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.EligibilityUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.svc.UpdateEligibility(c.Request.Context(), actor.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) Questions(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(donor.Questions(c.Query("sex"))))
}

func (h *Handler) CheckEligibility(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.EligibilityCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	res, err := h.svc.CheckEligibility(c.Request.Context(), actor.UserID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(res))
}

func (h *Handler) History(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	entries, err := h.svc.EligibilityHistory(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}
