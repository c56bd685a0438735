// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabriel-samfira/techdesk/params"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the verified claims stored by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

func NewMiddleware(issuer *TokenIssuer, log *slog.Logger) *Middleware {
	return &Middleware{
		issuer: issuer,
		log:    log.With("component", "auth"),
	}
}

// Middleware rejects requests that do not carry a valid bearer token.
type Middleware struct {
	issuer *TokenIssuer
	log    *slog.Logger
}

func (m *Middleware) reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(params.APIErrorResponse{Error: msg}); err != nil {
		m.log.Error("failed to encode response", "error", err)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Wrap protects a single handler. A missing token yields 401, an invalid or
// expired one 403.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			m.reject(w, http.StatusUnauthorized, "Access token required")
			return
		}

		claims, err := m.issuer.Verify(token)
		if err != nil {
			m.log.Debug("rejected token", "path", r.URL.Path, "remote", r.RemoteAddr)
			m.reject(w, http.StatusForbidden, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WrapFunc is Wrap for plain handler functions.
func (m *Middleware) WrapFunc(next http.HandlerFunc) http.Handler {
	return m.Wrap(next)
}
