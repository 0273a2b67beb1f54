package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/http/middleware"
	"github.com/prodemyx/prodemyx-api/internal/http/response"
	"github.com/prodemyx/prodemyx-api/internal/service"
)

const guestRegisteredMessage = "Registration received. If this email is new, login details are on their way."

type AuthHandler struct {
	Accounts   service.AccountService
	JWTSecret  string
	GuestLimit func(http.Handler) http.Handler
}

func NewAuthHandler(accounts service.AccountService, jwtSecret string, guestLimit func(http.Handler) http.Handler) *AuthHandler {
	if guestLimit == nil {
		guestLimit = func(next http.Handler) http.Handler { return next }
	}
	return &AuthHandler{Accounts: accounts, JWTSecret: jwtSecret, GuestLimit: guestLimit}
}

// Routes are mounted under /api.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.GuestLimit).Post("/auth/register-guest", h.registerGuest)
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.With(middleware.RequireJWT(h.JWTSecret)).Get("/me", h.me)
	return r
}

// registerGuest answers identically for new and existing emails.
func (h *AuthHandler) registerGuest(w http.ResponseWriter, r *http.Request) {
	var in domain.RegisterGuestReq
	if !decode(w, r, &in) {
		return
	}
	if err := h.Accounts.RegisterGuest(r.Context(), in); err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": guestRegisteredMessage,
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in domain.RegisterReq
	if !decode(w, r, &in) {
		return
	}
	account, err := h.Accounts.Register(r.Context(), in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, account)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginReq
	if !decode(w, r, &in) {
		return
	}
	tok, err := h.Accounts.Login(r.Context(), in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tok)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	account, err := h.Accounts.Me(r.Context(), claims.Sub)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, account)
}
