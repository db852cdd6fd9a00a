package hospital

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/service/hospital"
)

type Handler struct {
	svc *hospital.Service
}

func NewHandler(svc *hospital.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes expects a group restricted to hospitals.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)
	r.PUT("/urgency-level", h.UpdateUrgencyLevel)
	r.GET("/inventory", h.GetInventory)
	r.PUT("/inventory", h.UpdateInventory)
}

// RegisterMapRoutes expects any authenticated group.
func (h *Handler) RegisterMapRoutes(r *gin.RouterGroup) {
	r.GET("/hospitals/map", h.Map)
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
	var req model.HospitalProfileRequest
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

func (h *Handler) UpdateUrgencyLevel(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var req model.UrgencyLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	if err := h.svc.UpdateUrgencyLevel(c.Request.Context(), actor.UserID, req.Level); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) GetInventory(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	inv, err := h.svc.GetInventory(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) UpdateInventory(c *gin.Context) {
	actor, ok := handler.MustActor(c)
	if !ok {
		return
	}
	var units map[string]int
	if err := c.ShouldBindJSON(&units); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	inv, err := h.svc.UpdateInventory(c.Request.Context(), actor.UserID, units)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(inv))
}

func (h *Handler) Map(c *gin.Context) {
	entries, err := h.svc.Map(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}
