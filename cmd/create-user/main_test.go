package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailflow/backend/internal/auth"
	"mailflow/backend/internal/auth/jwt"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/storage/memory"
)

func TestCreateUser(t *testing.T) {
	store := memory.NewStore()
	svc := auth.NewService(store, jwt.NewManager("create-user-test-secret-0123456789ab", "mailflow", 0, 0), nil, zap.NewNop())

	var out bytes.Buffer
	require.NoError(t, createUser(svc, "Boss@Example.com", "password123", domain.RoleOwner, &out))
	assert.Contains(t, out.String(), "boss@example.com")

	user, err := store.GetUserByEmail("boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, user.Role)

	assert.Error(t, createUser(svc, "x@example.com", "password123", "root", &out))
	assert.ErrorIs(t, createUser(svc, "boss@example.com", "password123", domain.RoleManager, &out), domain.ErrUserEmailExists)
}
