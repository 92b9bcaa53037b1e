package api

import (
	"io"
	"net/http"
	"strings"

	"business-directory/internal/common/errors"
	"business-directory/internal/directory/filter"
	"business-directory/internal/directory/service"
	"business-directory/internal/media"
	"business-directory/internal/models"

	"github.com/gin-gonic/gin"
)

func bindCriteria(c *gin.Context) (filter.Criteria, error) {
	var crit filter.Criteria
	if err := c.ShouldBindQuery(&crit); err != nil {
		return crit, errors.NewFieldError("query", err.Error())
	}
	return crit, nil
}

// GET /api/business
func (s *Server) handleList(c *gin.Context) {
	crit, err := bindCriteria(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.dir.Query(c.Request.Context(), sessionOf(c), service.Public(), crit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Listings)
}

// GET /api/business/facets
func (s *Server) handleFacets(c *gin.Context) {
	res, err := s.dir.Query(c.Request.Context(), sessionOf(c), service.Public(), filter.Criteria{})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cities":     res.Cities,
		"categories": res.Categories,
		"counts":     res.Counts,
	})
}

// GET /api/business/search
func (s *Server) handleSearch(c *gin.Context) {
	crit, err := bindCriteria(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	listings, err := s.dir.Search(c.Request.Context(), sessionOf(c), crit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

func (s *Server) handleAdminList(scope service.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		crit, err := bindCriteria(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		res, err := s.dir.Query(c.Request.Context(), sessionOf(c), scope, crit)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) handleGet(c *gin.Context) {
	l, err := s.dir.Get(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) handleMyListing(c *gin.Context) {
	l, err := s.dir.MyListing(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) handleCreate(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	l, err := s.dir.Create(c.Request.Context(), sessionOf(c), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (s *Server) handleUpdate(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	l, err := s.dir.Update(c.Request.Context(), sessionOf(c), c.Param("id"), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) handleDelete(c *gin.Context) {
	l, err := s.dir.Delete(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Business deleted", "id": l.ID})
}

// bindPayload accepts JSON (image as a data URL or stored reference) or a
// multipart form with the image as a file part.
func bindPayload(c *gin.Context) (models.ListingPayload, error) {
	var p models.ListingPayload

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&p); err != nil {
			return p, errors.NewFieldError("body", "must be a JSON listing")
		}
		return p, nil
	}

	p = models.ListingPayload{
		Name:        c.PostForm("businessName"),
		Category:    models.Category(c.PostForm("category")),
		Description: c.PostForm("description"),
		Email:       c.PostForm("email"),
		Phone:       c.PostForm("phone"),
		Address:     c.PostForm("address"),
		City:        c.PostForm("city"),
		Image:       c.PostForm("image"),
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return p, nil
		}
		return p, errors.NewFieldError("image", "could not read upload")
	}
	if fh.Size > media.MaxImageBytes {
		return p, media.AsValidation(media.ErrTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return p, errors.NewFieldError("image", "could not read upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, media.MaxImageBytes+1))
	if err != nil {
		return p, errors.NewFieldError("image", "could not read upload")
	}
	p.ImageData = data
	p.ImageName = fh.Filename
	return p, nil
}
