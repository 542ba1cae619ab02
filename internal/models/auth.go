package models

import (
	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

// Principal is the authorization snapshot of an authenticated user. It is
// resolved once at login and carried in the session token; role changes
// take effect on the next login, not retroactively.
type Principal struct {
	Name       string      `json:"name"`
	SiteAdmin  bool        `json:"site_admin"`
	TutorYears map[int]bool `json:"tutor_years"`
	AdminYears map[int]bool `json:"admin_years"`
}

// IsTutorFor reports whether the principal may act as a tutor in the year.
// Site admins are tutors for every year.
func (p *Principal) IsTutorFor(year int) bool {
	return p.SiteAdmin || p.TutorYears[year]
}

// IsAdminFor reports whether the principal may administrate the year.
func (p *Principal) IsAdminFor(year int) bool {
	return p.SiteAdmin || p.AdminYears[year]
}

// EnsureTutorFor returns ErrForbidden unless IsTutorFor holds.
func (p *Principal) EnsureTutorFor(year int) error {
	if p.IsTutorFor(year) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not a tutor for the requested year")
}

// EnsureAdminFor returns ErrForbidden unless IsAdminFor holds.
func (p *Principal) EnsureAdminFor(year int) error {
	if p.IsAdminFor(year) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not an admin for the requested year")
}

// EnsureSiteAdmin returns ErrForbidden unless the principal is a site admin.
func (p *Principal) EnsureSiteAdmin() error {
	if p.SiteAdmin {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "site admin privileges required")
}

// JWTClaims embed the principal snapshot into the session token.
type JWTClaims struct {
	Principal Principal `json:"principal"`
	jwt.RegisteredClaims
}

// LoginRequest is the login payload plus caller metadata.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"-"`
}

// LoginResponse returns the issued session token and the resolved roles.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	Principal Principal `json:"principal"`
}
