// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rodada/rodada/internal/logging"
	"github.com/rodada/rodada/internal/models"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// LocalOwner is the owner of every request when authentication is off.
const LocalOwner = "local"

// Middleware resolves the owner of each request.
type Middleware struct {
	verifier *JWTVerifier
	authMode string
}

// NewMiddleware creates the middleware. verifier may be nil for auth mode
// "none".
func NewMiddleware(verifier *JWTVerifier, authMode string) *Middleware {
	return &Middleware{verifier: verifier, authMode: authMode}
}

// Authenticate rejects requests without a valid bearer token and stores
// the owner in the request context. Browsers cannot set headers on
// websocket upgrades, so the token may also come as ?access_token=.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authMode == "none" {
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), LocalOwner)))
			return
		}

		token := bearerToken(r)
		if token == "" {
			unauthorized(w, r, "Missing bearer token")
			return
		}
		owner, err := m.verifier.Verify(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected token")
			unauthorized(w, r, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="rodada"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(&models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Error: &models.APIError{Code: "UNAUTHORIZED", Message: message},
	})
}

// WithOwner returns ctx carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}

// OwnerFromContext returns the authenticated owner, or "".
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}
