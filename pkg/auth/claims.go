package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims issued to back-office staff and integrations.
type Claims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID `json:"user_id"`
	BranchID uuid.UUID `json:"branch_id"`
	Roles    []string  `json:"roles"`
}

// HasRole checks if the claims include the specified role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

const (
	RoleAdmin       = "admin"
	RoleLoanOfficer = "loan_officer"
	RoleTeller      = "teller"
	RoleAuditor     = "auditor"
	// RoleIntegration is held by payment-channel callbacks such as the M-Pesa bridge.
	RoleIntegration = "integration"
)
