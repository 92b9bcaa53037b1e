package api

import (
	"strconv"
	"strings"
	"time"

	"business-directory/internal/common/auth"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/metrics"
	"business-directory/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"

	sessionKey = "directory.session"
)

// observe logs each request and feeds the HTTP metrics. Routes are labelled
// by their pattern so ids never reach metric labels.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"durationMs": elapsed.Milliseconds(),
		}
		if status >= 500 {
			s.logger.Error("request failed", fields)
		} else {
			s.logger.Debug("request served", fields)
		}
	}
}

// session attaches the visitor session. Clients keep the id from the
// response header and send it back; one is minted when absent.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(SessionHeader, id)
		c.Set(sessionKey, models.Session{ID: id})
		c.Next()
	}
}

// authenticate resolves a bearer token when one is sent. A bad token is
// rejected outright; no token leaves the session anonymous and lets the
// service decide.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || s.authn == nil {
			c.Next()
			return
		}

		token, err := auth.BearerToken(header)
		if err != nil {
			s.abort(c, err)
			return
		}
		principal, err := s.authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.abort(c, err)
			return
		}

		sess := sessionOf(c)
		sess.Principal = principal
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionOf(c)
		switch {
		case !sess.Authenticated():
			s.abort(c, errors.NewUnauthenticatedError("admin route"))
		case !sess.IsAdmin():
			s.abort(c, errors.NewForbiddenError("admin access only"))
		default:
			c.Next()
		}
	}
}

func sessionOf(c *gin.Context) models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(models.Session); ok {
			return sess
		}
	}
	return models.Session{}
}
