package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/eventboard/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (application.User, error)
	GetUser(ctx context.Context, id int64) (application.User, error)
	ListUsers(ctx context.Context, principal application.Principal, includeAdmins bool) ([]application.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, id int64) error
	ChangePassword(ctx context.Context, params application.ChangePasswordParams) error
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// List handles GET /user. Administrators are only listed for administrators
// that ask for them with includeAdmins=true.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	includeAdmins, err := queryBool(r, "includeAdmins")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	users, err := h.service.ListUsers(r.Context(), principal, includeAdmins)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTOs(users))
}

// Create handles POST /user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "user_id", user.ID).InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createdUserResponse{UserID: user.ID})
}

// Get handles GET /user/{userId}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

// Update handles PATCH /user/{userId}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req userPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "user_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode user patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    id,
		Patch:     req.toPatch(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "user_id", id).InfoContext(r.Context(), "user updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

// Delete handles DELETE /user/{userId}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteUser(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "user_id", id).InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ChangePassword handles PATCH /user/{userId}/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "ChangePassword", "user_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode password request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	err := h.service.ChangePassword(r.Context(), application.ChangePasswordParams{
		Principal:       principal,
		UserID:          id,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "ChangePassword", "user_id", id).InfoContext(r.Context(), "password changed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type userRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	IsAdmin   bool   `json:"isAdmin"`
}

func (r userRequest) toInput() application.UserInput {
	return application.UserInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Password:  r.Password,
		IsAdmin:   r.IsAdmin,
	}
}

type userPatchRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	IsAdmin   *bool   `json:"isAdmin"`
}

func (r userPatchRequest) toPatch() application.UserPatch {
	return application.UserPatch{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		IsAdmin:   r.IsAdmin,
	}
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type createdUserResponse struct {
	UserID int64 `json:"userId"`
}

type userDTO struct {
	UserID    int64  `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"isAdmin"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
	}
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	return out
}
