package auth

import (
	"net/http"

	"github.com/tesoroschoco/marketplace-api/internal/users"
)

// Requirement describes what a route demands from the caller's profile.
type Requirement struct {
	// Roles lists the acceptable roles; empty means any authenticated user.
	Roles []string
	// RequireApproved additionally demands seller approval (admins pass).
	RequireApproved bool
}

// Denial is a capability-check failure with its wire representation.
type Denial struct {
	Status  int
	Code    string
	Message string
}

// Check evaluates one profile against one requirement. A nil result means
// allowed. Suspension always wins over everything else.
func Check(p *users.UserProfile, req Requirement) *Denial {
	if p.Suspended {
		return &Denial{
			Status:  http.StatusForbidden,
			Code:    "ACCOUNT_SUSPENDED",
			Message: "account is suspended",
		}
	}
	if len(req.Roles) > 0 {
		ok := false
		for _, role := range req.Roles {
			if p.Role == role {
				ok = true
				break
			}
		}
		if !ok {
			// A pending vendor hitting a seller route gets the more useful
			// answer: the account exists but is not approved yet.
			if p.Role == users.RolePendingVendor && contains(req.Roles, users.RoleSeller) {
				return &Denial{
					Status:  http.StatusForbidden,
					Code:    "NOT_APPROVED",
					Message: "seller account pending approval",
				}
			}
			return &Denial{
				Status:  http.StatusForbidden,
				Code:    "FORBIDDEN",
				Message: "insufficient permissions",
			}
		}
	}
	if req.RequireApproved && p.Role != users.RoleAdmin && !p.IsApproved {
		return &Denial{
			Status:  http.StatusForbidden,
			Code:    "NOT_APPROVED",
			Message: "seller account pending approval",
		}
	}
	return nil
}

func contains(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
