package resources

import (
	"fmt"

	"github.com/ggoodman/webadmin-go/identity"
)

// SecurityRequirement is the access level a Method demands of its caller.
type SecurityRequirement int

const (
	// RequireNone admits any caller, authenticated or not ("ANY").
	RequireNone SecurityRequirement = iota
	// RequireAuth admits authenticated callers.
	RequireAuth
	// RequireAdmin admits authenticated callers with admin permissions.
	RequireAdmin
)

func (r SecurityRequirement) String() string {
	switch r {
	case RequireNone:
		return "ANY"
	case RequireAuth:
		return "REQUIRE_AUTH"
	case RequireAdmin:
		return "REQUIRE_ADMIN"
	default:
		return fmt.Sprintf("SecurityRequirement(%d)", int(r))
	}
}

func (r SecurityRequirement) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Principal is the caller on whose behalf an action runs.
// *sessions.Session implements it.
type Principal interface {
	IsAuthenticated() bool
	Identity() identity.Identity
}

// AdminChecker decides admin permissions. *admins.Store implements it.
type AdminChecker interface {
	HasAdminPermissions(id identity.Identity) bool
}

// Anonymous is the Principal of callers that have not authenticated.
var Anonymous Principal = anonymous{}

type anonymous struct{}

func (anonymous) IsAuthenticated() bool       { return false }
func (anonymous) Identity() identity.Identity { return identity.Unknown }

// Authenticated returns a Principal for a caller already known to be id,
// for transports that authenticate out of band (bearer tokens).
func Authenticated(id identity.Identity) Principal {
	if id.IsUnknown() {
		return Anonymous
	}
	return authenticated(id)
}

type authenticated identity.Identity

func (authenticated) IsAuthenticated() bool         { return true }
func (a authenticated) Identity() identity.Identity { return identity.Identity(a) }

func permitted(req SecurityRequirement, p Principal, admins AdminChecker) bool {
	switch req {
	case RequireNone:
		return true
	case RequireAuth:
		return p.IsAuthenticated()
	case RequireAdmin:
		return p.IsAuthenticated() && admins != nil && admins.HasAdminPermissions(p.Identity())
	default:
		return false
	}
}
