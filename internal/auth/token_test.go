package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/deskflow/helpdesk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)

	raw, issued, err := tm.GenerateToken("user-1", domain.UserRoleModerator)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, issued.ExpiresAt.Sub(issued.IssuedAt))

	parsed, err := tm.ParseToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.SubjectID)
	assert.Equal(t, domain.UserRoleModerator, parsed.Role)
	assert.WithinDuration(t, issued.ExpiresAt, parsed.ExpiresAt, time.Second)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	raw, _, err := NewTokenManager("one", 10).GenerateToken("user-1", domain.UserRoleUser)
	require.NoError(t, err)

	_, err = NewTokenManager("two", 10).ParseToken(raw)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, _, err := tm.GenerateToken("user-1", domain.UserRoleUser)
	require.NoError(t, err)

	_, err = tm.ParseToken(raw)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		_, err := BearerToken(header)
		assert.Error(t, err, header)
	}
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("hunter22", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "hunter22"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}

func TestClampCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, ClampCost(0))
	assert.Equal(t, bcrypt.DefaultCost, ClampCost(-3))
	assert.Equal(t, bcrypt.MinCost, ClampCost(2))
	assert.Equal(t, 12, ClampCost(12))
	assert.Equal(t, bcrypt.MaxCost, ClampCost(99))
}

func TestHashPasswordRaisesLowCost(t *testing.T) {
	hashed, err := HashPassword("hunter22", 1)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestDashboardPath(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", DashboardPath(domain.UserRoleAdmin))
	assert.Equal(t, "/user/dashboard", DashboardPath(domain.UserRoleModerator))
	assert.Equal(t, "/user/dashboard", DashboardPath(domain.UserRoleUser))
}
