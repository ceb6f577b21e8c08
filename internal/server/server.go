package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/roomsync-dev/roomsync/internal/auth"
	"github.com/roomsync-dev/roomsync/internal/handler"
	"github.com/roomsync-dev/roomsync/internal/membership"
	"github.com/roomsync-dev/roomsync/internal/middleware"
	"github.com/roomsync-dev/roomsync/internal/store"
)

type Server struct {
	db     *sql.DB
	authH  *handler.AuthHandler
	taskH  *handler.TaskHandler
	billH  *handler.BillHandler
	tokens *auth.TokenManager
	users  *store.UserStore
	logger *slog.Logger
}

func New(db *sql.DB, jwtSecret string, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	householdStore := store.NewHouseholdStore(db)
	taskStore := store.NewTaskStore(db)
	billStore := store.NewBillStore(db)

	tokens := auth.NewTokenManager(jwtSecret)
	membershipSvc := membership.NewService(userStore, householdStore, logger.With("component", "membership"))

	return &Server{
		db:     db,
		authH:  handler.NewAuthHandler(userStore, membershipSvc, tokens, logger.With("component", "auth")),
		taskH:  handler.NewTaskHandler(taskStore, logger.With("component", "task")),
		billH:  handler.NewBillHandler(billStore, householdStore, logger.With("component", "bill")),
		tokens: tokens,
		users:  userStore,
		logger: logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /api/auth/register", s.authH.Register)
	mux.HandleFunc("POST /api/auth/login", s.authH.Login)
	mux.HandleFunc("POST /api/auth/create-household", s.authH.CreateHousehold)
	mux.HandleFunc("POST /api/auth/join-household", s.authH.JoinHousehold)

	requireAuth := middleware.RequireAuth(s.tokens, s.users)

	mux.Handle("GET /api/auth/me", requireAuth(http.HandlerFunc(s.authH.Me)))

	// Routes scoped to the caller's household
	household := http.NewServeMux()
	household.HandleFunc("GET /api/tasks", s.taskH.List)
	household.HandleFunc("POST /api/tasks", s.taskH.Create)
	household.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	household.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)

	household.HandleFunc("GET /api/bills", s.billH.List)
	household.HandleFunc("POST /api/bills", s.billH.Create)
	household.HandleFunc("DELETE /api/bills/{id}", s.billH.Delete)

	mux.Handle("/api/tasks", requireAuth(middleware.RequireHousehold(household)))
	mux.Handle("/api/tasks/", requireAuth(middleware.RequireHousehold(household)))
	mux.Handle("/api/bills", requireAuth(middleware.RequireHousehold(household)))
	mux.Handle("/api/bills/", requireAuth(middleware.RequireHousehold(household)))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.CORS(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
