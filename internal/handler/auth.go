package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/roomsync-dev/roomsync/internal/auth"
	"github.com/roomsync-dev/roomsync/internal/membership"
	"github.com/roomsync-dev/roomsync/internal/model"
	"github.com/roomsync-dev/roomsync/internal/store"
)

type AuthHandler struct {
	users      *store.UserStore
	membership *membership.Service
	tokens     *auth.TokenManager
	logger     *slog.Logger
}

func NewAuthHandler(users *store.UserStore, ms *membership.Service, tokens *auth.TokenManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		membership: ms,
		tokens:     tokens,
		logger:     logger,
	}
}

type userBody struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	HouseholdID *int64 `json:"householdId"`
}

type householdBody struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
}

func toUserBody(u *model.User) userBody {
	return userBody{ID: u.ID, Name: u.Name, Email: u.Email, HouseholdID: u.HouseholdID}
}

func toHouseholdBody(h *model.Household) householdBody {
	return householdBody{ID: h.ID, Name: h.Name, RoomCode: h.RoomCode}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error during registration")
		return
	}
	if existing != nil {
		writeMessage(w, http.StatusBadRequest, "User already exists with this email")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	user, err := h.users.Create(req.Email, req.Name, string(hash))
	if err != nil {
		// Two concurrent registrations can both pass the existence check;
		// the unique index on email decides.
		if store.IsUniqueViolation(err) {
			writeMessage(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		h.logger.Error("create user", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  toUserBody(user),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	// Same response for unknown email and wrong password.
	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error during login")
		return
	}
	if user == nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  toUserBody(user),
	})
}

// Me returns the authenticated caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("me lookup", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserBody(user)})
}

func (h *AuthHandler) CreateHousehold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		UserID int64  `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	household, err := h.membership.CreateHousehold(r.Context(), req.UserID, req.Name)
	if err != nil {
		h.logger.Warn("create household", "user_id", req.UserID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"household": toHouseholdBody(household),
	})
}

func (h *AuthHandler) JoinHousehold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomCode string `json:"roomCode"`
		UserID   int64  `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	household, err := h.membership.JoinHousehold(r.Context(), req.UserID, req.RoomCode)
	if err != nil {
		h.logger.Warn("join household", "user_id", req.UserID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"household": toHouseholdBody(household),
	})
}
