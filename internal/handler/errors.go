package handler

import (
	"errors"
	"net/http"

	"orderflow/internal/middleware"
	"orderflow/internal/model"
	"orderflow/internal/service"
	"orderflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type errorKind struct {
	target error
	status int
	kind   string
}

// order matters: the first match wins
var errorKinds = []errorKind{
	{service.ErrValidation, http.StatusBadRequest, "validation"},
	{service.ErrPermission, http.StatusForbidden, "permission"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrStateConflict, http.StatusConflict, "state_conflict"},
	{service.ErrStock, http.StatusUnprocessableEntity, "stock"},
	{service.ErrIncomplete, http.StatusUnprocessableEntity, "incomplete"},
	{service.ErrTransient, http.StatusServiceUnavailable, "transient"},
}

// statusFor maps a service error onto an HTTP status and category
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	_ = c.Error(err)
	c.JSON(status, response.Failure(status, kind, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Failure(http.StatusBadRequest, "validation", msg))
}

// actorOrAbort fetches the caller stored by middleware.Authenticate
func actorOrAbort(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}
