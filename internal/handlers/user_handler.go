package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"classroom/internal/service"
)

// UserHandler serves profile and directory requests
type UserHandler struct {
	users  *service.UserService
	logger *zap.SugaredLogger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Profile returns the authenticated user
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	writeSuccess(w, http.StatusOK, "", map[string]any{"user": newUserView(user)})
}

// GetUser returns an active user by id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to get user", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"user": newUserView(user)})
}

type updateUserRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	ProfilePicture *string `json:"profile_picture"`
	ClassSubject   *string `json:"class_subject"`
}

// UpdateUser changes the caller's own profile fields
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	actor := GetUserFromContext(r.Context())
	user, err := h.users.UpdateProfile(r.Context(), actor, chi.URLParam(r, "id"), service.UpdateUserInput{
		Name:           req.Name,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
		ClassSubject:   req.ClassSubject,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to update user", err)
		return
	}
	writeSuccess(w, http.StatusOK, "User updated successfully", map[string]any{"user": newUserView(user)})
}

// DeleteUser deactivates the caller's own account and ends its sessions
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := GetUserFromContext(r.Context())
	if err := h.users.Deactivate(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		respondWithError(w, h.logger, "failed to delete user", err)
		return
	}
	writeSuccess(w, http.StatusOK, "User deleted successfully", nil)
}

type preferencesRequest struct {
	Role         string `json:"role"`
	ClassSubject string `json:"class_subject"`
}

// Preferences records the role and subject chosen after first sign-in
func (h *UserHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.Role == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	actor := GetUserFromContext(r.Context())
	user, err := h.users.SetPreferences(r.Context(), actor, req.Role, req.ClassSubject)
	if err != nil {
		respondWithError(w, h.logger, "failed to update preferences", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Preferences updated successfully", map[string]any{"user": newUserView(user)})
}

// Students lists active students
func (h *UserHandler) Students(w http.ResponseWriter, r *http.Request) {
	students, err := h.users.ListStudents(r.Context())
	if err != nil {
		respondWithError(w, h.logger, "failed to list students", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"students": newUserViews(students)})
}

// Teachers lists active teachers
func (h *UserHandler) Teachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.users.ListTeachers(r.Context())
	if err != nil {
		respondWithError(w, h.logger, "failed to list teachers", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"teachers": newUserViews(teachers)})
}
