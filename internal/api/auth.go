// Package api implements HTTP handlers and helpers for the Doceria service.
package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	UserID  string
	IsAdmin bool
}

// getPrincipal extracts the user identity from the request.
// - If Authorization: Bearer is present, uses the configured verifier
//   (dev/hmac/jwks); the is_admin claim wins.
// - Else falls back to X-User-Id / X-Admin headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			// The is_admin claim may be stale relative to the profiles table;
			// prefer the stored flag when a profile exists.
			isAdmin := pr.IsAdmin
			if prof, err := s.Store.GetProfile(r.Context(), pr.UserID); err == nil {
				isAdmin = prof.IsAdmin
			}
			return Principal{UserID: pr.UserID, IsAdmin: isAdmin}
		}
	}
	userID := r.Header.Get("X-User-Id")
	admin := r.Header.Get("X-Admin") == "true"
	return Principal{UserID: userID, IsAdmin: admin}
}

// requireAdmin writes a 403 and returns false unless p is an admin.
func requireAdmin(w http.ResponseWriter, r *http.Request, p Principal) bool {
	if !p.IsAdmin {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return false
	}
	return true
}

// requireUser writes a 401 and returns false unless p carries a user id.
func requireUser(w http.ResponseWriter, r *http.Request, p Principal) bool {
	if p.UserID == "" {
		writeProblem(w, 401, "Unauthorized", "authentication required", r.URL.Path)
		return false
	}
	return true
}
