package service

import (
	"business-directory/internal/common/errors"
	"business-directory/internal/models"
)

type operation string

const (
	opListPublic operation = "list_public"
	opListAdmin  operation = "list_admin"
	opListOwned  operation = "list_owned"
	opMyListing  operation = "my_listing"
	opCreate     operation = "create"
	opUpdate     operation = "update"
	opDelete     operation = "delete"
	opRate       operation = "rate"
	opUnrate     operation = "unrate"
	opSeePhone   operation = "see_phone"
)

// subject is what an operation acts on, as far as authorization cares.
type subject struct {
	ownerID *string
}

func ownedBy(id string) subject { return subject{ownerID: &id} }

type capability struct {
	authenticated bool
	allow         func(s models.Session, sub subject) bool
}

func anyone(models.Session, subject) bool { return true }

func adminOnly(s models.Session, _ subject) bool { return s.IsAdmin() }

func ownerOrAdmin(s models.Session, sub subject) bool {
	if s.IsAdmin() {
		return true
	}
	return sub.ownerID != nil && *sub.ownerID == s.UserID()
}

// capabilities is the single source of truth for who may do what.
var capabilities = map[operation]capability{
	opListPublic: {allow: anyone},
	opListAdmin:  {authenticated: true, allow: adminOnly},
	opListOwned:  {authenticated: true, allow: ownerOrAdmin},
	opMyListing:  {authenticated: true, allow: anyone},
	opCreate:     {authenticated: true, allow: anyone},
	opUpdate:     {authenticated: true, allow: ownerOrAdmin},
	opDelete:     {authenticated: true, allow: ownerOrAdmin},
	opRate:       {authenticated: true, allow: anyone},
	opUnrate:     {authenticated: true, allow: anyone},
	opSeePhone:   {authenticated: true, allow: ownerOrAdmin},
}

func authorize(op operation, s models.Session, sub subject) error {
	c, ok := capabilities[op]
	if !ok {
		return errors.NewForbiddenError("operation " + string(op) + " is not permitted")
	}
	if c.authenticated && !s.Authenticated() {
		return errors.NewUnauthenticatedError("login required")
	}
	if !c.allow(s, sub) {
		return errors.NewForbiddenError("not allowed to " + string(op) + " this listing")
	}
	return nil
}

// can is authorize without the error, for view shaping.
func can(op operation, s models.Session, sub subject) bool {
	return authorize(op, s, sub) == nil
}
