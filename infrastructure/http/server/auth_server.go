package server

import (
	"chat-relay/errors"
	"chat-relay/services"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AuthServer exposes account creation and login over JSON.
type AuthServer struct {
	log         *slog.Logger
	authService services.IAuthService
}

func NewAuthServer(log *slog.Logger, authService services.IAuthService) *AuthServer {
	return &AuthServer{log: log, authService: authService}
}

func (s *AuthServer) Register(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusCreated, s.authService.Register)
}

func (s *AuthServer) Login(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, http.StatusOK, s.authService.Login)
}

func (s *AuthServer) handle(w http.ResponseWriter, r *http.Request, success int,
	fn func(email, password string) (services.Account, error)) {
	var body credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	account, err := fn(body.Email, body.Password)
	if err != nil {
		status := mapToHTTPStatus(err)
		if status == http.StatusInternalServerError {
			s.log.Error("Account request failed", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, success, accountResponse{UserID: account.UserID, Token: string(account.Token)})
}

func mapToHTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidEmail), stderrors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
