package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserFactory_NewUser(t *testing.T) {
	t.Parallel()
	f := NewUserFactory()

	u, err := f.NewUser(NewUserInput{Email: " Ann@Example.COM ", Password: "pw1234", FirstName: "<b>Ann</b>"})
	require.NoError(t, err)
	assert.Equal(t, "Ann@example.com", u.Email)
	assert.Equal(t, "Ann", u.FirstName)
	assert.NotEqual(t, "pw1234", u.Password)
	assert.True(t, u.CheckPassword("pw1234"))
	assert.True(t, u.IsActive)
	assert.False(t, u.IsVerified)
	assert.False(t, u.IsSuperuser)
	assert.NotNil(t, u.Profile)
}

func TestUserFactory_Rejects(t *testing.T) {
	t.Parallel()
	f := NewUserFactory()

	tests := []struct {
		name string
		in   NewUserInput
	}{
		{"missing email", NewUserInput{Password: "pw1234"}},
		{"malformed email", NewUserInput{Email: "nope", Password: "pw1234"}},
		{"missing password", NewUserInput{Email: "a@x.com"}},
		{"short password", NewUserInput{Email: "a@x.com", Password: "pw1"}},
		{"bad username", NewUserInput{Email: "a@x.com", Password: "pw1234", Username: "a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.NewUser(tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestUserFactory_NewSuperuser(t *testing.T) {
	t.Parallel()
	u, err := NewUserFactory().NewSuperuser(NewUserInput{Email: "root@x.com", Password: "rootpass"})
	require.NoError(t, err)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsAdmin())
}
