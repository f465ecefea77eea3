package auth

import "github.com/charlesng35/talenthub/internal/models"

// Principal is the authenticated caller attached to every request.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// PrincipalFromClaims extracts the principal from validated claims.
func PrincipalFromClaims(claims *Claims) Principal {
	if claims == nil {
		return Principal{}
	}
	return Principal{ID: claims.UserID, Role: claims.Role}
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// IsEmployer reports whether the principal holds the employer role.
func (p Principal) IsEmployer() bool { return p.Role == models.RoleEmployer }

// IsApplicant reports whether the principal holds the applicant role.
func (p Principal) IsApplicant() bool { return p.Role == models.RoleApplicant }

// HasRole reports whether the principal holds any of the given roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// RecipientID returns the principal id so a Principal can address notifications.
func (p Principal) RecipientID() string { return p.ID }
