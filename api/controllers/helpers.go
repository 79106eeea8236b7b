package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tirestore-backend/api/middleware"
	"github.com/angelmondragon/tirestore-backend/api/validators"
	"github.com/angelmondragon/tirestore-backend/internal/cart"
	"github.com/angelmondragon/tirestore-backend/internal/orders"
	"github.com/angelmondragon/tirestore-backend/internal/users"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/pagination"
)

const (
	defaultPageLimit = 20
	maxPage          = 10000
)

func requireUser(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

// cartOwner prefers the signed-in account over the anonymous session.
func cartOwner(r *http.Request) (cart.Owner, error) {
	if id, ok := middleware.UserUUIDFromContext(r.Context()); ok {
		return cart.ForUser(id), nil
	}
	if sessionID := middleware.CartSessionFromContext(r.Context()); sessionID != "" {
		return cart.ForSession(sessionID), nil
	}
	return cart.Owner{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session missing")
}

func pageFromQuery(r *http.Request, defaultLimit int) (pagination.Page, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, maxPage)
	if err != nil {
		return pagination.Page{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.Page{Page: page, Limit: limit}, nil
}

type profileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
}

// adminActor resolves the acting admin for audit fields such as the ledger's recorded_by.
func adminActor(r *http.Request, profiles profileReader) (orders.Actor, error) {
	userID, err := requireUser(r)
	if err != nil {
		return orders.Actor{}, err
	}
	actor := orders.Actor{UserID: userID}
	if profiles == nil {
		return actor, nil
	}
	profile, err := profiles.GetProfile(r.Context(), userID)
	if err != nil {
		return orders.Actor{}, err
	}
	actor.Email = profile.Email
	return actor, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
