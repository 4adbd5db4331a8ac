//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			request: RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "password123"},
		},
		{
			name:    "valid with workspace",
			request: RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "password123", Workspace: "Glow Co"},
		},
		{
			name:    "missing name",
			request: RegisterRequest{Email: "ana@example.com", Password: "password123"},
			wantErr: true,
		},
		{
			name:    "bad email",
			request: RegisterRequest{Name: "Ana", Email: "not-an-email", Password: "password123"},
			wantErr: true,
		},
		{
			name:    "short password",
			request: RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "short"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Email: "a@b.co", Password: "x"}).Validate())
	assert.Error(t, (&LoginRequest{Email: "a@b.co"}).Validate())
	assert.Error(t, (&LoginRequest{Password: "x"}).Validate())
}

func TestUpdatePasswordRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UpdatePasswordRequest{CurrentPassword: "oldpassword", NewPassword: "newpassword"}).Validate())

	err := (&UpdatePasswordRequest{CurrentPassword: "samepassword", NewPassword: "samepassword"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nefield")

	assert.Error(t, (&UpdatePasswordRequest{CurrentPassword: "oldpassword", NewPassword: "short"}).Validate())
}

func TestUser_JSONOmitsSecrets(t *testing.T) {
	u := User{
		ID:        uuid.New(),
		Name:      "Ana",
		Email:     "ana@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	data, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "password_hash")
	assert.NotContains(t, fields, "workspace")
	assert.Equal(t, "ana@example.com", fields["email"])
}
