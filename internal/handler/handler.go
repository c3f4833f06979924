package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nisimpson/commentable/internal/auth"
	"github.com/nisimpson/commentable/internal/service"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Handler serves the commentable endpoints.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

type listResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Authenticate handles POST /auth.
func (h *Handler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var in service.AuthInput
	if !h.decode(w, r, &in) {
		return
	}

	user, err := h.svc.Authenticate(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ListComments handles GET /commentables/{id}/comments. The auth token is
// optional and read from the Authorization header or the auth_token query
// parameter.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("auth_token")
	}

	nodes, err := h.svc.ListThread(r.Context(), chi.URLParam(r, "id"), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Data: nodes})
}

// AddComment handles POST /commentables/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var in service.AddCommentInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Scope = chi.URLParam(r, "id")
	in.AuthToken = tokenOf(r, in.AuthToken)

	comment, err := h.svc.AddComment(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// EditComment handles PUT /commentables/{id}/comments.
func (h *Handler) EditComment(w http.ResponseWriter, r *http.Request) {
	var in service.EditCommentInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Scope = chi.URLParam(r, "id")
	in.AuthToken = tokenOf(r, in.AuthToken)

	comment, err := h.svc.EditComment(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comment)
}

// DeleteComment handles DELETE /commentables/{id}/comments. The body is the
// erased comment, or null when the comment was deleted outright.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	var in service.DeleteCommentInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Scope = chi.URLParam(r, "id")
	in.AuthToken = tokenOf(r, in.AuthToken)

	erased, err := h.svc.DeleteComment(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, erased)
}

// AddReaction handles POST /commentables/{id}/reactions.
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	var in service.ReactionInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Scope = chi.URLParam(r, "id")
	in.AuthToken = tokenOf(r, in.AuthToken)

	reaction, err := h.svc.AddReaction(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, reaction)
}

// DeleteReaction handles DELETE /commentables/{id}/reactions.
func (h *Handler) DeleteReaction(w http.ResponseWriter, r *http.Request) {
	var in service.ReactionInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Scope = chi.URLParam(r, "id")
	in.AuthToken = tokenOf(r, in.AuthToken)

	if err := h.svc.DeleteReaction(r.Context(), in); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// tokenOf prefers the auth token of the body and falls back to a bearer
// Authorization header.
func tokenOf(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}

// decode reads a JSON body into v. An empty body leaves v zero valued so the
// service reports the missing fields.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("invalid request body",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	if kind != service.KindInternal {
		h.logger.Debug("request rejected",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	}
	respondError(w, kind.HTTPStatus(), service.MessageOf(err))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
