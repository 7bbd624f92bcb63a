package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"blog-lab/errors"
	"blog-lab/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type AuthHandler struct {
	auth services.IAuthService
}

func NewAuthHandler(auth services.IAuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	return r
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}

	token, err := h.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, tokenResponse{Token: string(token)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, tokenResponse{Token: string(token)})
}
