// Rodada - Cycling Event Publishing and Route Capture
// Copyright 2026 The Rodada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rodada/rodada

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	good, err := v.GenerateToken("ana", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := v.GenerateToken("ana", -time.Minute)
	other, _ := NewJWTVerifier("ffffffffffffffffffffffffffffffff")
	foreign, _ := other.GenerateToken("ana", time.Hour)
	usernameOnly, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Username: "bruno",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	anonymous, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{}).SignedString([]byte(testSecret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{Username: "ana"}).SignedString([]byte(testSecret))

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"valid", good, "ana", false},
		{"username fallback", usernameOnly, "bruno", false},
		{"expired", expired, "", true},
		{"foreign secret", foreign, "", true},
		{"no owner", anonymous, "", true},
		{"other algorithm", wrongAlg, "", true},
		{"garbage", "not.a.token", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("owner = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := NewJWTVerifier(""); err == nil {
		t.Error("empty secret accepted")
	}
}

func TestMiddleware(t *testing.T) {
	v, _ := NewJWTVerifier(testSecret)
	token, _ := v.GenerateToken("ana", time.Hour)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		mode   string
		header string
		query  string
		status int
		owner  string
	}{
		{"bearer header", "jwt", "Bearer " + token, "", http.StatusNoContent, "ana"},
		{"query token", "jwt", "", "?access_token=" + token, http.StatusNoContent, "ana"},
		{"missing", "jwt", "", "", http.StatusUnauthorized, ""},
		{"basic scheme", "jwt", "Basic YW5hOmFuYQ==", "", http.StatusUnauthorized, ""},
		{"bad token", "jwt", "Bearer nope", "", http.StatusUnauthorized, ""},
		{"auth off", "none", "", "", http.StatusNoContent, LocalOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			h := NewMiddleware(v, tt.mode).Authenticate(next)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if seen != tt.owner {
				t.Errorf("owner = %q, want %q", seen, tt.owner)
			}
			if tt.status == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}
