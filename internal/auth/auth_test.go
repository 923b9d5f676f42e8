package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-carsharing/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return service
}

func TestNewService(t *testing.T) {
	service, err := NewService("secret", 0)
	assert.NoError(t, err)
	assert.NotNil(t, service)
	assert.Equal(t, []byte("secret"), service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	_, err = NewService("", time.Hour)
	assert.Error(t, err)
}

func TestService_HashPassword(t *testing.T) {
	service := newTestService(t)

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestService_CheckPassword(t *testing.T) {
	service := newTestService(t)

	password := "testpassword123"
	hash, _ := service.HashPassword(password)

	assert.True(t, service.CheckPassword(password, hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service := newTestService(t)
	operator := &models.Operator{Username: "dispatch", Role: models.RoleOperator}

	token, err := service.GenerateToken(operator)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, operator.Username, claims.Username)
	assert.Equal(t, operator.Role, claims.Role)

	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)
}

func TestService_ValidateTokenRejections(t *testing.T) {
	service := newTestService(t)

	sign := func(claims jwt.MapClaims, secret string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name     string
		token    string
		expected error
	}{
		{"expired", sign(jwt.MapClaims{"username": "a", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}, "test-secret"), ErrExpiredToken},
		{"other secret", sign(jwt.MapClaims{"username": "a", "role": "admin", "exp": future}, "other"), ErrInvalidToken},
		{"unknown role", sign(jwt.MapClaims{"username": "a", "role": "root", "exp": future}, "test-secret"), ErrInvalidToken},
		{"missing username", sign(jwt.MapClaims{"role": "admin", "exp": future}, "test-secret"), ErrInvalidToken},
		{"missing expiry", sign(jwt.MapClaims{"username": "a", "role": "admin"}, "test-secret"), ErrInvalidToken},
		{"other algorithm", func() string {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"username": "a", "role": "admin", "exp": future}).SignedString([]byte("test-secret"))
			require.NoError(t, err)
			return token
		}(), ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ValidateToken(tt.token)
			assert.Equal(t, tt.expected, err)
		})
	}
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := newTestService(t)

	extracted, err := service.ExtractTokenFromHeader("Bearer valid-token")
	assert.NoError(t, err)
	assert.Equal(t, "valid-token", extracted)

	for _, header := range []string{"", "InvalidFormat", "Bearer ", "Basic abc"} {
		_, err = service.ExtractTokenFromHeader(header)
		assert.Equal(t, ErrInvalidToken, err, "header %q", header)
	}
}

func TestService_ValidatePassword(t *testing.T) {
	service := newTestService(t)

	assert.NoError(t, service.ValidatePassword("validpassword123"))

	err := service.ValidatePassword("short")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestService_ValidateUsername(t *testing.T) {
	service := newTestService(t)

	assert.NoError(t, service.ValidateUsername("dispatch"))

	err := service.ValidateUsername("ab")
	assert.Contains(t, err.Error(), "at least 3 characters")

	err = service.ValidateUsername(strings.Repeat("a", 51))
	assert.Contains(t, err.Error(), "less than 50 characters")

	assert.Error(t, service.ValidateUsername("ops:admin"))
	assert.Error(t, service.ValidateUsername("ops,admin"))
}

func TestService_TokenExpiration(t *testing.T) {
	service := newTestService(t)

	token, _ := service.GenerateToken(&models.Operator{Username: "dispatch", Role: models.RoleViewer})
	claims, err := service.ValidateToken(token)
	require.NoError(t, err)

	now := time.Now().Unix()
	assert.Greater(t, claims.Exp, now)
	assert.LessOrEqual(t, claims.Exp, now+int64(service.tokenExp.Seconds())+1)
}
