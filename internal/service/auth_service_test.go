package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"forum/internal/auth"
	"forum/internal/models"
	"forum/internal/repository"
	"forum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type authFixture struct {
	db     *gorm.DB
	svc    *AuthService
	events *recordingPublisher
	tokens *auth.JWTManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	tokens, err := auth.NewJWTManager("test-secret-that-is-long-enough-123", "forum-api", 5*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	events := &recordingPublisher{}
	svc := NewAuthService(
		repository.NewUserRepository(db),
		repository.NewPasswordResetRepository(db),
		NewUserFactory(),
		tokens,
		events,
		24*time.Hour,
	)
	return &authFixture{db: db, svc: svc, events: events, tokens: tokens}
}

func TestAuthService_RegisterTwiceFails(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.False(t, u.IsVerified)
	require.NotNil(t, u.Profile)
	assert.NotZero(t, u.Profile.ID)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "a@X.com", Password: "pw1234"})
	assertValidationError(t, err)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234", FirstName: "Ann"})
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, "a@x.com", "pw1234")
	require.NoError(t, err)
	assert.Equal(t, "Ann", res.FirstName)
	assert.NotEmpty(t, res.Access)
	assert.NotEmpty(t, res.Refresh)

	claims, err := f.tokens.Verify(res.Access, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, res.ID, claims.UserID)

	var stored models.User
	require.NoError(t, f.db.First(&stored, res.ID).Error)
	assert.NotNil(t, stored.LastLogin)

	_, err = f.svc.Login(ctx, "a@x.com", "wrong-pass")
	assertCode(t, err, models.CodeUnauthorized)
	_, err = f.svc.Login(ctx, "nobody@x.com", "pw1234")
	assertCode(t, err, models.CodeUnauthorized)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", res.ID).Update("is_active", false).Error)
	_, err = f.svc.Login(ctx, "a@x.com", "pw1234")
	assertCode(t, err, models.CodeUnauthorized)
}

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"})
	require.NoError(t, err)
	res, err := f.svc.Login(ctx, "a@x.com", "pw1234")
	require.NoError(t, err)

	access, err := f.svc.Refresh(ctx, res.Refresh)
	require.NoError(t, err)
	_, err = f.tokens.Verify(access, auth.TokenTypeAccess)
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, res.Access)
	assertCode(t, err, models.CodeUnauthorized)
	_, err = f.svc.Refresh(ctx, "garbage")
	assertCode(t, err, models.CodeUnauthorized)
	_, err = f.svc.Refresh(ctx, "")
	assertValidationError(t, err)
}

func TestAuthService_PasswordResetUnknownEmailSucceedsSilently(t *testing.T) {
	f := newAuthFixture(t)
	err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequestInput{Email: "ghost@x.com"})
	require.NoError(t, err)
	assert.Empty(t, f.events.Events())
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234", FirstName: "Ann"})
	require.NoError(t, err)

	in := PasswordResetRequestInput{Email: "a@x.com", IPAddress: "127.0.0.1", UserAgent: "test"}
	require.NoError(t, f.svc.RequestPasswordReset(ctx, in))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, in))

	events := f.events.Events()
	require.Len(t, events, 2)
	first := events[0].(PasswordResetRequested)
	second := events[1].(PasswordResetRequested)
	assert.Equal(t, u.ID, first.UserID)
	assert.Equal(t, "Ann", first.FirstName)
	assert.Equal(t, first.Token, second.Token, "a live token is reused")

	require.NoError(t, f.svc.ValidateResetToken(ctx, first.Token))
	assertCode(t, f.svc.ValidateResetToken(ctx, "unknown"), models.CodeNotFound)

	err = f.svc.ConfirmPasswordReset(ctx, ConfirmPasswordResetInput{Token: first.Token, Password: "1"})
	assertValidationError(t, err)

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, ConfirmPasswordResetInput{Token: first.Token, Password: "brand-new-pw"}))
	_, err = f.svc.Login(ctx, "a@x.com", "brand-new-pw")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "a@x.com", "pw1234")
	assertCode(t, err, models.CodeUnauthorized)

	assertCode(t, f.svc.ValidateResetToken(ctx, first.Token), models.CodeNotFound)
}

func TestAuthService_ExpiredResetTokenIsRemoved(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, PasswordResetRequestInput{Email: "a@x.com"}))
	token := f.events.Events()[0].(PasswordResetRequested).Token

	f.svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	assertCode(t, f.svc.ValidateResetToken(ctx, token), models.CodeNotFound)

	var remaining int64
	require.NoError(t, f.db.Model(&models.PasswordResetToken{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestAuthService_PublishFailureIsSwallowed(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "pw1234"})
	require.NoError(t, err)

	f.events.err = errors.New("queue down")
	assert.NoError(t, f.svc.RequestPasswordReset(ctx, PasswordResetRequestInput{Email: "a@x.com"}))
	assert.Len(t, f.events.Events(), 1)
}
