package response

import (
	"errors"

	"boxoffice/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError replies with the status mapped from err's code. Typed errors carry
// their code and offending seats so clients can guide re-selection.
func RespondError(c *gin.Context, message string, err error) {
	code := apperrors.HTTPStatus(err)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		detail := ErrorDetail{Code: string(appErr.Code), Message: appErr.Message, Seats: appErr.Seats}
		if appErr.Code == apperrors.CodeStorageUnavailable {
			detail.Message = "backing store unavailable, retry later"
		}
		RespondJSON(c, "error", code, message, nil, detail)
		return
	}

	RespondJSON(c, "error", code, message, nil, ErrorDetail{Code: "INTERNAL", Message: "internal error"})
}
