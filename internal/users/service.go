package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tirestore-backend/pkg/db"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

const (
	maxNameLength    = 120
	maxPhoneLength   = 32
	maxAddressLength = 500
)

// UpdateProfileInput holds optional profile edits.
type UpdateProfileInput struct {
	FullName *string
	Phone    *string
	Address  *string
}

// Service manages the signed-in customer's profile.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error)
	PromoteAdmin(ctx context.Context, email string) (bool, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*UserDTO, error) {
	updates := map[string]any{}
	problems := map[string]string{}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		switch {
		case name == "":
			problems["full_name"] = "required"
		case len(name) > maxNameLength:
			problems["full_name"] = "too long"
		default:
			updates["full_name"] = name
		}
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if len(phone) > maxPhoneLength {
			problems["phone"] = "too long"
		} else {
			updates["phone"] = nullable(phone)
		}
	}
	if input.Address != nil {
		address := strings.TrimSpace(*input.Address)
		if len(address) > maxAddressLength {
			problems["address"] = "too long"
		} else {
			updates["address"] = nullable(address)
		}
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid profile").WithDetails(problems)
	}

	if err := s.repo.UpdateProfile(ctx, userID, updates); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
	}
	return s.GetProfile(ctx, userID)
}

// PromoteAdmin grants the admin role to an existing account. It reports whether
// a change was made.
func (s *service) PromoteAdmin(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	changed, err := s.repo.SetRole(ctx, email, enums.UserRoleAdmin)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote admin")
	}
	return changed, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
