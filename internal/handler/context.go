package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

// Keys the auth middleware stores the verified caller under.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// CurrentActor returns the caller set by the auth middleware.
func CurrentActor(c *gin.Context) (model.Actor, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return model.Actor{}, false
	}
	userID, ok := id.(uuid.UUID)
	if !ok {
		return model.Actor{}, false
	}
	role, _ := c.Get(ContextRole)
	r, _ := role.(model.Role)
	return model.Actor{UserID: userID, Role: r}, true
}

// MustActor is CurrentActor for routes already behind Authenticate; it
// writes a 401 and returns false when the caller is missing.
func MustActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := CurrentActor(c)
	if !ok {
		RespondError(c, apperrors.Unauthorized(nil))
		return model.Actor{}, false
	}
	return actor, true
}

// ParamUUID parses a path parameter, writing a 400 on failure.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, apperrors.NewValidation("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}
