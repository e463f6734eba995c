package controllers

import (
	"barpos-backend/services"
	"barpos-backend/utils"

	"github.com/gin-gonic/gin"
)

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var ErrNoPermission = &CustomError{"You do not have permission"}

// respondServiceError maps a domain error onto the response envelope. State
// conflict reasons reach the cashier verbatim; transient store failures are
// replaced by a retry prompt.
func respondServiceError(c *gin.Context, err error) {
	utils.RespondError(c, services.HTTPStatus(err), services.PublicError(err))
}
