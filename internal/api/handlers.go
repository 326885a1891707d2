package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"arena/internal/store"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	hubQueryTimeout         = 2 * time.Second
	storeQueryTimeout       = 5 * time.Second
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), hubQueryTimeout)
	defer cancel()

	roster, err := h.hub.Roster(ctx)
	if err != nil {
		writeError(w, "Arena unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]interface{}{
		"players":     roster,
		"playerCount": len(roster),
		"maxPlayers":  h.hub.MaxPlayers(),
	})
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	top, err := h.store.TopPlayers(ctx, limit)
	if err != nil {
		log.Printf("❌ Leaderboard query failed: %v", err)
		writeError(w, "Leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []store.Totals{}
	}
	writeJSON(w, top)
}

func (h *routerHandlers) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, chi.URLParam(r, "userID"))
}

func (h *routerHandlers) handleGetMyStats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, SessionFromContext(r.Context()).UserID)
}

func (h *routerHandlers) writeStats(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	totals, err := h.store.GetStats(ctx, userID)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		writeError(w, "User not found", http.StatusNotFound)
	case err != nil:
		log.Printf("❌ Stats query for %s failed: %v", userID, err)
		writeError(w, "Stats unavailable", http.StatusInternalServerError)
	default:
		writeJSON(w, totals)
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates an account, or signs in when the name already exists
// and the password matches.
func (h *routerHandlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, h.store.FindOrCreateUser)
}

func (h *routerHandlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.signIn(w, r, h.store.Authenticate)
}

func (h *routerHandlers) signIn(w http.ResponseWriter, r *http.Request, lookup func(context.Context, string, string) (store.User, error)) {
	var req credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		writeError(w, "Password is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	user, err := lookup(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, store.ErrInvalidUsername):
		writeError(w, "Invalid username", http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrInvalidCredentials), errors.Is(err, store.ErrUserNotFound):
		writeError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	case err != nil:
		log.Printf("❌ Sign-in for %q failed: %v", req.Username, err)
		writeError(w, "Sign-in unavailable", http.StatusInternalServerError)
		return
	}

	sessionID := h.sessions.CreateSession(user.ID, user.Username)
	h.sessions.SetSessionCookie(w, sessionID)
	writeJSON(w, user)
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
