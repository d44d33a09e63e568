package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/opinion-manager/apperror"
	"github.com/user/opinion-manager/store/memstore"
)

func register(t *testing.T, svc *Service, username, email string) string {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterRequest{
		Username: username, Email: email, Password: "Secret123", FirstName: "Ada", LastName: "Lovelace",
	})
	require.NoError(t, err)
	return u.ID
}

func TestRegisterHashesPassword(t *testing.T) {
	st := memstore.New()
	svc := NewService(st, bcrypt.MinCost)

	id := register(t, svc, "ada", "Ada@Example.com")

	u, err := st.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, u.Active)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "Secret123", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secret123")))
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	svc := NewService(memstore.New(), bcrypt.MinCost)
	register(t, svc, "ada", "ada@example.com")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "ada", Email: "other@example.com", Password: "Secret123", FirstName: "A", LastName: "B",
	})
	assert.True(t, apperror.IsConflictError(err))

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "grace", Email: "ada@example.com", Password: "Secret123", FirstName: "A", LastName: "B",
	})
	assert.True(t, apperror.IsConflictError(err))
}

func TestUpdateKeepsPasswordUnlessGiven(t *testing.T) {
	st := memstore.New()
	svc := NewService(st, bcrypt.MinCost)
	id := register(t, svc, "ada", "ada@example.com")
	ctx := context.Background()

	before, err := st.GetUser(ctx, id)
	require.NoError(t, err)

	u, err := svc.Update(ctx, id, UpdateUserRequest{Username: "countess", FirstName: "Augusta", LastName: "King"})
	require.NoError(t, err)
	assert.Equal(t, "countess", u.Username)
	assert.Equal(t, "King", u.LastName)
	assert.Equal(t, before.PasswordHash, u.PasswordHash)

	pw := "NewSecret456"
	u, err = svc.Update(ctx, id, UpdateUserRequest{Username: "countess", Password: &pw, FirstName: "Augusta", LastName: "King"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pw)))
}

func TestDeactivate(t *testing.T) {
	st := memstore.New()
	svc := NewService(st, bcrypt.MinCost)
	id := register(t, svc, "ada", "ada@example.com")

	require.NoError(t, svc.Deactivate(context.Background(), id))
	u, err := svc.Profile(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, u.Active)

	_, err = svc.Profile(context.Background(), "5f1d7f3e9d1b2c3a4e5f6a7b")
	assert.True(t, apperror.IsNotFound(err))
}
