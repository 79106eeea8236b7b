package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tirestore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func strPtr(v string) *string { return &v }

func TestCreateNormalizesEmailAndDefaultsRole(t *testing.T) {
	_, repo := newTestService(t)
	user, err := repo.Create(context.Background(), CreateUserDTO{Email: "  Buyer@Example.COM ", PasswordHash: "h", FullName: " Buyer "})
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", user.Email)
	require.Equal(t, enums.UserRoleCustomer, user.Role)

	found, err := repo.FindByEmail(context.Background(), "BUYER@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
}

func TestUpdateProfile(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: "p@example.com", PasswordHash: "h", FullName: "P"})
	require.NoError(t, err)

	dto, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{
		FullName: strPtr("  Pim Srisuk "),
		Phone:    strPtr("0812345678"),
		Address:  strPtr("99 Sukhumvit, Bangkok"),
	})
	require.NoError(t, err)
	require.Equal(t, "Pim Srisuk", dto.FullName)
	require.NotNil(t, dto.Phone)
	require.Equal(t, "0812345678", *dto.Phone)

	dto, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Phone: strPtr("  ")})
	require.NoError(t, err)
	require.Nil(t, dto.Phone)

	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{FullName: strPtr(" ")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateProfile(ctx, uuid.New(), UpdateProfileInput{FullName: strPtr("x")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPromoteAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	_, err := repo.Create(ctx, CreateUserDTO{Email: "owner@example.com", PasswordHash: "h", FullName: "Owner"})
	require.NoError(t, err)

	changed, err := svc.PromoteAdmin(ctx, "Owner@Example.com")
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = svc.PromoteAdmin(ctx, "owner@example.com")
	require.NoError(t, err)
	require.False(t, changed, "second promotion is a no-op")

	changed, err = svc.PromoteAdmin(ctx, "missing@example.com")
	require.NoError(t, err)
	require.False(t, changed)
}
