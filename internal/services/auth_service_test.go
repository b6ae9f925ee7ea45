package services

import (
	"testing"
	"time"

	"github.com/brightpages/storytime-backend/internal/config"
	"github.com/brightpages/storytime-backend/internal/dto"
	"github.com/brightpages/storytime-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func authFixture(t *testing.T) (*AuthService, *gorm.DB) {
	db := openServicesTestDB(t,
		&models.User{}, &models.RefreshToken{}, &models.UserLimits{},
		&models.PremiumProfile{}, &models.Story{})
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
	}
	return NewAuthService(db, cfg), db
}

func TestRegister_And_Login(t *testing.T) {
	svc, _ := authFixture(t)

	resp, err := svc.Register(&dto.RegisterRequest{Email: "kid@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "kid@example.com", resp.User.Email)

	_, err = svc.Register(&dto.RegisterRequest{Email: "kid@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrEmailTaken)

	login, err := svc.Login(&dto.LoginRequest{Email: "kid@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = svc.Login(&dto.LoginRequest{Email: "kid@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_WeakPasswordRejected(t *testing.T) {
	svc, _ := authFixture(t)
	_, err := svc.Register(&dto.RegisterRequest{Email: "kid@example.com", Password: "short"})
	require.Error(t, err)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, _ := authFixture(t)

	reg, err := svc.Register(&dto.RegisterRequest{Email: "kid@example.com", Password: "password123"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(&dto.RefreshRequest{RefreshToken: reg.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, reg.RefreshToken, rotated.RefreshToken)

	// The old token is single-use.
	_, err = svc.Refresh(&dto.RefreshRequest{RefreshToken: reg.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, _ := authFixture(t)

	reg, err := svc.Register(&dto.RegisterRequest{Email: "kid@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(&dto.LogoutRequest{RefreshToken: reg.RefreshToken}))
	_, err = svc.Refresh(&dto.RefreshRequest{RefreshToken: reg.RefreshToken})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeleteAccount_CascadesUserData(t *testing.T) {
	svc, db := authFixture(t)

	reg, err := svc.Register(&dto.RegisterRequest{Email: "kid@example.com", Password: "password123"})
	require.NoError(t, err)
	userID := reg.User.ID

	require.NoError(t, db.Create(&models.UserLimits{UserID: userID, LastResetDate: "2026-08-24"}).Error)
	require.NoError(t, db.Create(&models.Story{UserID: userID, Title: "T", Content: "C"}).Error)

	require.ErrorIs(t, svc.DeleteAccount(userID, "wrong"), ErrInvalidCredentials)
	require.NoError(t, svc.DeleteAccount(userID, "password123"))

	var stories int64
	require.NoError(t, db.Model(&models.Story{}).Where("user_id = ?", userID).Count(&stories).Error)
	assert.Zero(t, stories)

	var limitRows int64
	require.NoError(t, db.Model(&models.UserLimits{}).Where("user_id = ?", userID).Count(&limitRows).Error)
	assert.Zero(t, limitRows)

	_, err = svc.Login(&dto.LoginRequest{Email: "kid@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
