package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"ps-rental-backend/internal/auth"
	"ps-rental-backend/internal/lifecycle"
	"ps-rental-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	ctrl    *lifecycle.Controller
	tokens  *auth.Tokens
	webpush *webpush.Options

	// menuCache is the response cache fed by the caching middleware;
	// write handlers invalidate it.
	menuCache *cache.Cache

	// staleAfter is the liveness threshold applied when deriving a unit's
	// displayed power state.
	staleAfter time.Duration

	now func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, ctrl *lifecycle.Controller, tokens *auth.Tokens, webpushOptions *webpush.Options, menuCache *cache.Cache, staleAfter time.Duration) *Handler {
	return &Handler{
		store:      s,
		ctrl:       ctrl,
		tokens:     tokens,
		webpush:    webpushOptions,
		menuCache:  menuCache,
		staleAfter: staleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}
