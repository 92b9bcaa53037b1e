package api

import (
	"crypto/subtle"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"business-directory/internal/common/database"
	"business-directory/internal/common/errors"
	"business-directory/internal/directory/contactgate"
	"business-directory/internal/media"
	"business-directory/internal/models"

	"github.com/gin-gonic/gin"
)

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleRatings(c *gin.Context) {
	summary, err := s.dir.Ratings(c.Request.Context(), c.Param("businessId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRate(c *gin.Context) {
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.NewFieldError("rating", "must be a number between 1 and 5"))
		return
	}
	l, err := s.dir.RateListing(c.Request.Context(), sessionOf(c), c.Param("businessId"), req.Rating, req.Comment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"averageRating": l.AverageRating,
		"totalRatings":  l.TotalRatings,
		"ratings":       l.Ratings,
	})
}

func (s *Server) handleUnrate(c *gin.Context) {
	l, err := s.dir.RemoveRating(c.Request.Context(), sessionOf(c), c.Param("businessId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"averageRating": l.AverageRating,
		"totalRatings":  l.TotalRatings,
		"ratings":       l.Ratings,
	})
}

func (s *Server) handleReveal(c *gin.Context) {
	res, err := s.dir.RevealContact(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleLead(c *gin.Context) {
	var form contactgate.LeadForm
	if err := c.ShouldBindJSON(&form); err != nil {
		s.fail(c, errors.NewFieldError("body", "must be a JSON lead form"))
		return
	}
	res, err := s.dir.SubmitLead(c.Request.Context(), sessionOf(c), c.Param("id"), form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCancelContact(c *gin.Context) {
	state, err := s.dir.CancelContact(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"businessId": c.Param("id"), "state": state})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin issues a token for one of the configured users.
func (s *Server) handleLogin(c *gin.Context) {
	if s.issuer == nil {
		s.fail(c, errors.NewNotFoundError("Route", c.FullPath()))
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, errors.NewValidationError(map[string]string{
			"email":    "is required",
			"password": "is required",
		}))
		return
	}

	for _, u := range s.users {
		if !strings.EqualFold(u.Email, strings.TrimSpace(req.Email)) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(u.Password), []byte(req.Password)) != 1 {
			break
		}

		p := models.Principal{UserID: u.ID, Name: u.Name, Email: u.Email, Role: models.RoleCustomer}
		if strings.EqualFold(u.Role, string(models.RoleAdmin)) {
			p.Role = models.RoleAdmin
		}
		token, expires, err := s.issuer.Issue(p)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.logger.Info("user logged in", map[string]interface{}{"userId": u.ID})
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"expiresAt": expires.UTC().Format(time.RFC3339),
			"user":      p,
		})
		return
	}

	s.fail(c, errors.NewUnauthenticatedError("invalid credentials"))
}

func (s *Server) handleMedia(c *gin.Context) {
	if s.media == nil {
		s.fail(c, errors.NewNotFoundError("Image", c.Param("ref")))
		return
	}
	obj, err := s.media.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		if stderrors.Is(err, media.ErrNotFound) {
			s.fail(c, errors.NewNotFoundError("Image", c.Param("ref")))
			return
		}
		s.fail(c, errors.NewUnavailableError("media", err))
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

func (s *Server) handleHealth(c *gin.Context) {
	status, healthy := database.CheckAll(c.Request.Context(), 2*time.Second, s.health...)
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "dependencies": status})
}
