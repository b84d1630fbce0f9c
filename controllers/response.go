// controllers/response.go
package controllers

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/utils"
)

// respondError maps service error kinds onto HTTP responses. Unknown errors
// are logged and reported as a generic 500 so internals never leak to
// clients.
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	message := "Something went wrong, please try again"

	switch utils.KindOf(err) {
	case utils.ErrKindDuplicateSource:
		// Already recorded; repeated submissions are successful no-ops
		return c.JSON(http.StatusOK, models.Response{
			Status:  http.StatusOK,
			Message: "Commission already recorded for this source",
		})
	case utils.ErrKindInvalidInput:
		status = http.StatusBadRequest
		message = err.Error()
	case utils.ErrKindInsufficientBalance:
		status = http.StatusBadRequest
		message = err.Error()
	case utils.ErrKindNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case utils.ErrKindInvalidTransition:
		status = http.StatusConflict
		message = err.Error()
	case utils.ErrKindTransientStore:
		status = http.StatusServiceUnavailable
		message = "Service temporarily unavailable, please retry"
		log.Printf("Transient store error: %v", err)
	default:
		log.Printf("Internal error: %v", err)
	}

	return c.JSON(status, models.Response{
		Status:  status,
		Message: message,
	})
}

// parseObjectID reads a path or body hex ID.
func parseObjectID(raw, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, utils.NewAppErrorf(utils.ErrKindInvalidInput, "invalid %s: %q", field, raw)
	}
	return id, nil
}

// callerID returns the authenticated user's ObjectID from the JWT claims
// stored by the middleware.
func callerID(c echo.Context) (primitive.ObjectID, error) {
	raw, ok := c.Get("userId").(string)
	if !ok || raw == "" {
		return primitive.NilObjectID, utils.NewAppError(utils.ErrKindInvalidInput, "missing authenticated user")
	}
	return parseObjectID(raw, "user id")
}
