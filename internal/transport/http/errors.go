package http

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stayware/bookingcore/internal/pkg/errors"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a coded domain error onto an HTTP status and a JSON
// body. Unknown errors become 500 with the detail withheld.
func writeError(c *gin.Context, err error) {
	var coded *errors.Error
	if !stderrors.As(err, &coded) {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL",
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch coded.Kind {
	case errors.KindCapacityExceeded, errors.KindSlotUnavailable:
		status = http.StatusConflict
	case errors.KindHoldNotFound, errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindHoldExpired:
		status = http.StatusGone
	case errors.KindInvalidDateRange, errors.KindInvalidInput:
		status = http.StatusBadRequest
	case errors.KindCouponInvalid:
		status = http.StatusUnprocessableEntity
	case errors.KindTransactionAborted:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, errorResponse{Code: coded.Code, Message: coded.Message})
}
