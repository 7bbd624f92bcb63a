package auth

import (
	"strings"
	"testing"
	"time"

	"blog-lab/domain"
	"blog-lab/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MyVeryS3cure-Passphrase!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "writer", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "writer", "ComplexPass123!"}, true},
		{"Username too short", RegisterRequest{"test@example.com", "ab", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "writer", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "writer", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "writer", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "writer", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", "writer", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("unit-test-secret", time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateToken(userID, domain.RoleL1Approver)
	req.NoError(err)

	identity, err := manager.ValidateToken(token)
	req.NoError(err)
	req.Equal(userID, identity.UserID)
	req.Equal(domain.RoleL1Approver, identity.Role)
}

func TestTokenValidation_Failures(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("unit-test-secret", time.Hour)

	_, err := manager.ValidateToken("not-a-token")
	req.ErrorIs(err, errors.ErrUnauthenticated)

	// Signed with a different secret.
	other := NewTokenManager("another-secret", time.Hour)
	token, err := other.GenerateToken(uuid.New(), domain.RoleUser)
	req.NoError(err)
	_, err = manager.ValidateToken(token)
	req.ErrorIs(err, errors.ErrUnauthenticated)

	// Expired token.
	expired := NewTokenManager("unit-test-secret", -time.Minute)
	token, err = expired.GenerateToken(uuid.New(), domain.RoleUser)
	req.NoError(err)
	_, err = manager.ValidateToken(token)
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
