package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/tennis-tournament/middleware"
	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(us services.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	user, err := h.userService.GetUser(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, user)
}

// UpdateCredentials lets users change their own username, name and password.
func (h *UserHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSelf(w, r, false)
	if !ok {
		return
	}

	var input services.UpdateCredentialsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.userService.UpdateCredentials(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, user)
}

func (h *UserHandler) RequestRegistration(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSelf(w, r, false)
	if !ok {
		return
	}
	h.transition(w, r, userID, h.userService.RequestRegistration)
}

func (h *UserHandler) QuitTournament(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSelf(w, r, true)
	if !ok {
		return
	}
	h.transition(w, r, userID, h.userService.QuitTournament)
}

func (h *UserHandler) AcceptRegistration(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.transition(w, r, userID, h.userService.AcceptRegistration)
}

func (h *UserHandler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.transition(w, r, userID, h.userService.RejectRegistration)
}

func (h *UserHandler) transition(w http.ResponseWriter, r *http.Request, userID int, op func(context.Context, int) (*models.User, error)) {
	user, err := op(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, user)
}

// ListUsers returns all users, optionally narrowed by one of the role,
// status or registered query parameters.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		users []models.User
		err   error
	)

	switch {
	case query.Get("role") != "":
		role, parseErr := models.ParseUserRole(query.Get("role"))
		if parseErr != nil {
			badRequestResponse(w, r, parseErr)
			return
		}
		users, err = h.userService.ListUsersByRole(r.Context(), role)
	case query.Get("status") != "":
		status, parseErr := models.ParseRegistrationStatus(query.Get("status"))
		if parseErr != nil {
			badRequestResponse(w, r, parseErr)
			return
		}
		users, err = h.userService.ListUsersByStatus(r.Context(), status)
	case query.Get("registered") != "":
		registered, parseErr := strconv.ParseBool(query.Get("registered"))
		if parseErr != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid registered parameter: %q", query.Get("registered")))
			return
		}
		users, err = h.userService.ListRegisteredPlayers(r.Context(), registered)
	default:
		users, err = h.userService.ListUsers(r.Context())
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *UserHandler) FilterUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter models.UserFilter

	if query.Has("name") {
		name := query.Get("name")
		filter.Name = &name
	}
	if query.Has("username") {
		username := query.Get("username")
		filter.Username = &username
	}
	if raw := query.Get("competing"); raw != "" {
		competing, err := strconv.ParseBool(raw)
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("invalid competing parameter: %q", raw))
			return
		}
		filter.IsCompeting = &competing
	}

	users, err := h.userService.FilterUsers(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input services.UserInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.userService.AddUser(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondUser(w, r, http.StatusCreated, user)
}

func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UserInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.userService.DeleteUser(r.Context(), userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireSelf resolves the {id} parameter and checks it belongs to the
// caller. Administrators pass when allowAdmin is set.
func requireSelf(w http.ResponseWriter, r *http.Request, allowAdmin bool) (int, bool) {
	requestedID, err := getIDFromURL(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, false
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return 0, false
	}
	if currentUserID == requestedID {
		return requestedID, true
	}

	if allowAdmin {
		if role, err := middleware.GetUserRoleFromContext(r.Context()); err == nil && role == models.RoleAdmin {
			return requestedID, true
		}
	}
	mapServiceErrorToHTTP(w, r, services.ErrForbiddenOperation)
	return 0, false
}

func respondUser(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	if err := writeJSON(w, status, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
