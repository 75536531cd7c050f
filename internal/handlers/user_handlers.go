package handlers

import (
	"net/http"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/repository"
)

type UserHandlers struct {
	users repository.UserRepository
}

func NewUserHandlers(users repository.UserRepository) *UserHandlers {
	return &UserHandlers{users: users}
}

func (h *UserHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, CurrentUser(r))
}

func (h *UserHandlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.UpdateMe(r.Context(), CurrentUser(r).ID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

// DeleteMe deactivates the account rather than removing the row; reads scope
// on the active flag, so the account simply disappears from the API.
func (h *UserHandlers) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Deactivate(r.Context(), CurrentUser(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateUser exists so POST /users answers with guidance instead of a 404.
// Accounts are only created through signup.
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperr.NewValidation("this route is not defined; please use /signup instead"))
}
