package service

import (
	"errors"

	"itembook/internal/database"
	"itembook/internal/models"
)

func requestNotFound(id string) error {
	return &models.NotFoundError{Resource: "booking request", ID: id}
}

// translateWrite maps conditional-write sentinels onto the domain taxonomy.
func translateWrite(err error, id, target string) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return requestNotFound(id)
	case errors.Is(err, database.ErrNotPending):
		return &models.InvalidTransitionError{
			To:      target,
			Message: "booking request is no longer pending",
		}
	}
	return err
}

func requireActor(actor models.Actor) error {
	if actor.UserID == "" {
		return models.NewAuthorizationError("authentication required")
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return models.NewAuthorizationError("admin role required")
	}
	return nil
}
