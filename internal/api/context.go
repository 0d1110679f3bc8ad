package api

import (
	"context"
	"net/http"

	"itembook/internal/auth"
	"itembook/internal/models"
)

type tokenErrKey struct{}

func withTokenError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, tokenErrKey{}, err)
}

func tokenErrorFrom(ctx context.Context) error {
	err, _ := ctx.Value(tokenErrKey{}).(error)
	return err
}

// actorOf returns the request's actor. Routes behind requireAuth always have one.
func actorOf(r *http.Request) models.Actor {
	actor, _ := auth.ActorFrom(r.Context())
	return actor
}

func optionalActor(r *http.Request) *models.Actor {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		return nil
	}
	return &actor
}
