package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/roomsync-dev/roomsync/internal/auth"
	"github.com/roomsync-dev/roomsync/internal/store"
)

// RequireAuth validates the Authorization bearer token and populates
// AuthContext with the caller's user and household.
func RequireAuth(tokens *auth.TokenManager, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "No authentication token provided")
				return
			}

			userID, err := tokens.Verify(token)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			user, err := users.GetByID(userID)
			if err != nil || user == nil {
				unauthorized(w, "User not found")
				return
			}

			ac := auth.AuthContext{
				UserID:      user.ID,
				HouseholdID: user.HouseholdID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireHousehold rejects callers that are not affiliated with a household.
// It must run inside RequireAuth.
func RequireHousehold(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.HouseholdID(r.Context()) == 0 {
			writeMessage(w, http.StatusForbidden, "User does not belong to a household")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusUnauthorized, message)
}

// writeMessage mirrors the handlers' `{"message": ...}` error body.
func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
