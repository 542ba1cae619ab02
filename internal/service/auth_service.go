package service

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/identity"
)

type authTutorRepository interface {
	FindByUsername(ctx context.Context, username string) ([]models.Tutor, error)
}

type authWhitelistRepository interface {
	ListForYears(ctx context.Context, years []int) ([]models.IPWhitelistEntry, error)
}

// AuthConfig defines configuration for the login flow.
type AuthConfig struct {
	Secret           string
	Expiration       time.Duration
	Issuer           string
	SiteAdmins       []string
	WhitelistEnabled bool
}

// AuthService resolves principals and issues session tokens. Credentials
// are verified against an external identity source; the database only
// knows about roles.
type AuthService struct {
	tutors    authTutorRepository
	whitelist authWhitelistRepository
	verifier  identity.Verifier
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig

	siteAdmins map[string]bool
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(tutors authTutorRepository, whitelist authWhitelistRepository, verifier identity.Verifier, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	siteAdmins := make(map[string]bool, len(config.SiteAdmins))
	for _, name := range config.SiteAdmins {
		siteAdmins[name] = true
	}
	return &AuthService{
		tutors:     tutors,
		whitelist:  whitelist,
		verifier:   verifier,
		validator:  validate,
		logger:     logger,
		config:     config,
		siteAdmins: siteAdmins,
	}
}

// ResolvePrincipal folds a username's tutor memberships and the static
// site admin list into an authorization snapshot. A username with no
// membership and no site admin entry is unknown, regardless of whether
// the identity source would accept its password.
func (s *AuthService) ResolvePrincipal(ctx context.Context, username string) (*models.Principal, error) {
	memberships, err := s.tutors.FindByUsername(ctx, username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve roles")
	}

	principal := &models.Principal{
		Name:       username,
		SiteAdmin:  s.siteAdmins[username],
		TutorYears: map[int]bool{},
		AdminYears: map[int]bool{},
	}
	for _, membership := range memberships {
		principal.TutorYears[membership.Year] = true
		if membership.IsAdmin {
			principal.AdminYears[membership.Year] = true
		}
	}

	if !principal.SiteAdmin && len(principal.TutorYears) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnknownUser, "")
	}

	return principal, nil
}

// Login authenticates a user and returns an issued session token. The
// order matters: unknown users fail before the password is ever checked,
// and the device gate runs before credential verification so a stolen
// password is useless off-site.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	principal, err := s.ResolvePrincipal(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if err := s.checkDeviceGate(ctx, principal, req.IP); err != nil {
		return nil, err
	}

	ok, err := s.verifier.Verify(req.Username, req.Password)
	if err != nil {
		s.logger.Warn("identity source failure", zap.String("username", req.Username), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "identity source unavailable")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	token, err := s.issueToken(*principal)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	s.logger.Info("login",
		zap.String("username", principal.Name),
		zap.Bool("site_admin", principal.SiteAdmin),
		zap.Int("tutor_years", len(principal.TutorYears)),
	)

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.config.Expiration.Seconds()),
		Principal: *principal,
	}, nil
}

// checkDeviceGate enforces the per-year IP whitelist. Site admins bypass
// the gate; everyone else needs a matching range in at least one of the
// years they tutor. An empty candidate set denies.
func (s *AuthService) checkDeviceGate(ctx context.Context, principal *models.Principal, rawIP string) error {
	if !s.config.WhitelistEnabled || principal.SiteAdmin {
		return nil
	}

	addr, err := netip.ParseAddr(rawIP)
	if err != nil {
		return appErrors.Clone(appErrors.ErrNotWhitelisted, "")
	}

	years := make([]int, 0, len(principal.TutorYears))
	for year := range principal.TutorYears {
		years = append(years, year)
	}

	entries, err := s.whitelist.ListForYears(ctx, years)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load whitelist")
	}

	if !models.IPAllowed(addr, entries) {
		s.logger.Warn("login rejected by device gate", zap.String("username", principal.Name), zap.String("ip", rawIP))
		return appErrors.Clone(appErrors.ErrNotWhitelisted, "")
	}

	return nil
}

func (s *AuthService) issueToken(principal models.Principal) (string, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		Principal: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.Name,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a session token, returning the
// principal snapshot embedded at login time.
func (s *AuthService) ValidateToken(tokenString string) (*models.Principal, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}

	principal := claims.Principal
	if principal.TutorYears == nil {
		principal.TutorYears = map[int]bool{}
	}
	if principal.AdminYears == nil {
		principal.AdminYears = map[int]bool{}
	}
	return &principal, nil
}
