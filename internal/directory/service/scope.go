package service

import (
	"fmt"

	"business-directory/internal/models"
)

type ScopeKind int

const (
	ScopePublic ScopeKind = iota
	ScopeAdminAll
	ScopeAdminOnly
	ScopeUserOnly
	ScopeOwnedBy
)

// Scope selects which slice of the directory a List call sees.
type Scope struct {
	Kind    ScopeKind
	OwnerID string
}

func Public() Scope { return Scope{Kind: ScopePublic} }
func AdminAll() Scope { return Scope{Kind: ScopeAdminAll} }
func AdminAdminOnly() Scope { return Scope{Kind: ScopeAdminOnly} }
func AdminUserOnly() Scope { return Scope{Kind: ScopeUserOnly} }
func OwnedBy(userID string) Scope { return Scope{Kind: ScopeOwnedBy, OwnerID: userID} }

func (s Scope) String() string {
	switch s.Kind {
	case ScopePublic:
		return "public"
	case ScopeAdminAll:
		return "admin_all"
	case ScopeAdminOnly:
		return "admin_admin_only"
	case ScopeUserOnly:
		return "admin_user_only"
	case ScopeOwnedBy:
		return "owned_by"
	default:
		return fmt.Sprintf("scope(%d)", int(s.Kind))
	}
}

func (s Scope) operation() (operation, subject) {
	switch s.Kind {
	case ScopeAdminAll, ScopeAdminOnly, ScopeUserOnly:
		return opListAdmin, subject{}
	case ScopeOwnedBy:
		return opListOwned, ownedBy(s.OwnerID)
	default:
		return opListPublic, subject{}
	}
}

func (s Scope) admits(l *models.Listing) bool {
	switch s.Kind {
	case ScopeAdminOnly:
		return l.IsAdminListing
	case ScopeUserOnly:
		return !l.IsAdminListing
	case ScopeOwnedBy:
		return l.OwnedBy(s.OwnerID)
	default:
		return true
	}
}
