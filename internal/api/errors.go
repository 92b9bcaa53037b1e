package api

import (
	"business-directory/internal/common/errors"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Code      errors.ErrorCode  `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable"`
}

// render shapes err for clients. Auth and availability failures get a
// generic message; their details only go to the log.
func render(err error) (int, errorBody) {
	status := errors.HTTPStatus(err)
	body := errorBody{
		Code:      errors.CodeOf(err),
		Retryable: errors.IsRetryable(err),
	}

	se, ok := errors.AsStandard(err)
	switch {
	case body.Code == errors.ErrCodeUnauthenticated:
		body.Message = "Please log in to continue"
	case status == 503:
		body.Message = "Service temporarily unavailable, please try again"
	case !ok || status >= 500:
		body.Code = errors.ErrCodeInternal
		body.Message = "Internal server error"
	default:
		body.Message = se.Message
		body.Fields = se.Fields
	}
	return status, body
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := render(err)
	if status >= 500 {
		s.logger.Error("request error", map[string]interface{}{
			"route": c.FullPath(),
			"error": err,
		})
	} else if status == 401 {
		s.logger.Debug("unauthenticated request", map[string]interface{}{
			"route": c.FullPath(),
			"error": err,
		})
	}
	c.JSON(status, gin.H{"error": body})
}

func (s *Server) abort(c *gin.Context, err error) {
	s.fail(c, err)
	c.Abort()
}
