package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/http/middleware"
	"github.com/prodemyx/prodemyx-api/internal/http/response"
	"github.com/prodemyx/prodemyx-api/internal/service"
	"github.com/prodemyx/prodemyx-api/pkg/auth"
)

type StudentHandler struct {
	Accounts  service.AccountService
	JWTSecret string
}

func NewStudentHandler(accounts service.AccountService, jwtSecret string) *StudentHandler {
	return &StudentHandler{Accounts: accounts, JWTSecret: jwtSecret}
}

func (h *StudentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireJWT(h.JWTSecret))
	r.Use(middleware.RequireCapability(auth.CapViewOwnEnrollments))
	r.Get("/enrolled-courses", h.enrolledCourses)
	return r
}

func (h *StudentHandler) enrolledCourses(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	courses, err := h.Accounts.EnrolledCourses(r.Context(), claims.Sub)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	if courses == nil {
		courses = []domain.EnrolledCourse{}
	}
	response.WriteJSON(w, http.StatusOK, courses)
}
