package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hwlab/labtrack-api/internal/models"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

type mockAuthTutorRepo struct {
	memberships map[string][]models.Tutor
	err         error
}

func (m *mockAuthTutorRepo) FindByUsername(ctx context.Context, username string) ([]models.Tutor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.memberships[username], nil
}

type mockAuthWhitelistRepo struct {
	entries    []models.IPWhitelistEntry
	lastYears  []int
	listCalled bool
}

func (m *mockAuthWhitelistRepo) ListForYears(ctx context.Context, years []int) ([]models.IPWhitelistEntry, error) {
	m.listCalled = true
	m.lastYears = years
	return m.entries, nil
}

type mockVerifier struct {
	password string
	err      error
	called   bool
}

func (m *mockVerifier) Verify(username, password string) (bool, error) {
	m.called = true
	if m.err != nil {
		return false, m.err
	}
	return password == m.password, nil
}

func newAuthService(tutors *mockAuthTutorRepo, whitelist *mockAuthWhitelistRepo, verifier *mockVerifier, cfg AuthConfig) *AuthService {
	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	if cfg.Expiration == 0 {
		cfg.Expiration = time.Hour
	}
	cfg.Issuer = "labtrack"
	return NewAuthService(tutors, whitelist, verifier, nil, zap.NewNop(), cfg)
}

func TestAuthServiceResolvePrincipal(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {
			{Username: "alice", Year: 2024, IsAdmin: false},
			{Username: "alice", Year: 2025, IsAdmin: true},
		},
	}}
	svc := newAuthService(tutors, &mockAuthWhitelistRepo{}, &mockVerifier{}, AuthConfig{})

	principal, err := svc.ResolvePrincipal(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Name)
	assert.False(t, principal.SiteAdmin)
	assert.Equal(t, map[int]bool{2024: true, 2025: true}, principal.TutorYears)
	assert.Equal(t, map[int]bool{2025: true}, principal.AdminYears)
}

func TestAuthServiceResolvePrincipalUnknownUser(t *testing.T) {
	svc := newAuthService(&mockAuthTutorRepo{}, &mockAuthWhitelistRepo{}, &mockVerifier{}, AuthConfig{})

	_, err := svc.ResolvePrincipal(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnknownUser))
}

func TestAuthServiceResolvePrincipalSiteAdminWithoutMemberships(t *testing.T) {
	svc := newAuthService(&mockAuthTutorRepo{}, &mockAuthWhitelistRepo{}, &mockVerifier{}, AuthConfig{
		SiteAdmins: []string{"root"},
	})

	principal, err := svc.ResolvePrincipal(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, principal.SiteAdmin)
	assert.Empty(t, principal.TutorYears)
}

func TestAuthServiceLoginUnknownUserSkipsPasswordCheck(t *testing.T) {
	verifier := &mockVerifier{password: "secret"}
	svc := newAuthService(&mockAuthTutorRepo{}, &mockAuthWhitelistRepo{}, verifier, AuthConfig{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "secret", IP: "10.0.0.1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnknownUser))
	assert.False(t, verifier.called)
}

func TestAuthServiceLoginBadPassword(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025}},
	}}
	svc := newAuthService(tutors, &mockAuthWhitelistRepo{}, &mockVerifier{password: "secret"}, AuthConfig{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong", IP: "10.0.0.1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginSuccessRoundTripsToken(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025, IsAdmin: true}},
	}}
	svc := newAuthService(tutors, &mockAuthWhitelistRepo{}, &mockVerifier{password: "secret"}, AuthConfig{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	principal, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.Name)
	assert.True(t, principal.IsAdminFor(2025))
}

func TestAuthServiceLoginDeviceGateDenies(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025}},
	}}
	whitelist := &mockAuthWhitelistRepo{entries: []models.IPWhitelistEntry{
		{IPNet: "10.1.0.0/16", Year: 2025},
	}}
	verifier := &mockVerifier{password: "secret"}
	svc := newAuthService(tutors, whitelist, verifier, AuthConfig{WhitelistEnabled: true})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret", IP: "172.16.0.1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotWhitelisted))
	assert.Equal(t, []int{2025}, whitelist.lastYears)
	// The gate runs before credential verification.
	assert.False(t, verifier.called)
}

func TestAuthServiceLoginDeviceGateAllows(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025}},
	}}
	whitelist := &mockAuthWhitelistRepo{entries: []models.IPWhitelistEntry{
		{IPNet: "10.1.0.0/16", Year: 2025},
	}}
	svc := newAuthService(tutors, whitelist, &mockVerifier{password: "secret"}, AuthConfig{WhitelistEnabled: true})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret", IP: "10.1.44.2"})
	require.NoError(t, err)
}

func TestAuthServiceLoginSiteAdminBypassesDeviceGate(t *testing.T) {
	whitelist := &mockAuthWhitelistRepo{}
	svc := newAuthService(&mockAuthTutorRepo{}, whitelist, &mockVerifier{password: "secret"}, AuthConfig{
		SiteAdmins:       []string{"root"},
		WhitelistEnabled: true,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "root", Password: "secret", IP: "not-an-ip"})
	require.NoError(t, err)
	assert.False(t, whitelist.listCalled)
}

func TestAuthServiceLoginUnparsableIPDenied(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025}},
	}}
	svc := newAuthService(tutors, &mockAuthWhitelistRepo{}, &mockVerifier{password: "secret"}, AuthConfig{WhitelistEnabled: true})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret", IP: "garbage"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotWhitelisted))
}

func TestAuthServiceLoginValidationError(t *testing.T) {
	svc := newAuthService(&mockAuthTutorRepo{}, &mockAuthWhitelistRepo{}, &mockVerifier{}, AuthConfig{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "", Password: ""})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginIdentitySourceFailure(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025}},
	}}
	verifier := &mockVerifier{err: errors.New("htpasswd unreadable")}
	svc := newAuthService(tutors, &mockAuthWhitelistRepo{}, verifier, AuthConfig{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret", IP: "10.0.0.1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&mockAuthTutorRepo{}, &mockAuthWhitelistRepo{}, &mockVerifier{}, AuthConfig{})

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceValidateTokenWrongSecret(t *testing.T) {
	tutors := &mockAuthTutorRepo{memberships: map[string][]models.Tutor{
		"alice": {{Username: "alice", Year: 2025}},
	}}
	issuer := newAuthService(tutors, &mockAuthWhitelistRepo{}, &mockVerifier{password: "secret"}, AuthConfig{Secret: "secret-a"})
	resp, err := issuer.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret", IP: "10.0.0.1"})
	require.NoError(t, err)

	other := newAuthService(tutors, &mockAuthWhitelistRepo{}, &mockVerifier{}, AuthConfig{Secret: "secret-b"})
	_, err = other.ValidateToken(resp.Token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
