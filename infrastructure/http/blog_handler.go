package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"blog-lab/domain"
	"blog-lab/errors"
	"blog-lab/repositories"
	"blog-lab/services"
	"blog-lab/workflow"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type BlogHandler struct {
	blogs    services.IBlogService
	engine   *workflow.Engine
	comments repositories.ICommentRepository
}

func NewBlogHandler(blogs services.IBlogService, engine *workflow.Engine, comments repositories.ICommentRepository) *BlogHandler {
	return &BlogHandler{blogs: blogs, engine: engine, comments: comments}
}

// Routes wires the CRUD surface. The workflow transitions live under the
// post they act on; state is never patched directly.
func (h *BlogHandler) Routes(authed func(http.Handler) http.Handler, public func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(public)
		r.Get("/", h.ListPublished)
		r.Get("/{id}", h.GetPost)
		r.Get("/{id}/comments", h.GetComments)
	})

	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Post("/", h.CreateDraft)
		r.Get("/mine", h.ListMine)
		r.Get("/pending", h.ListPending)
		r.Put("/{id}", h.UpdatePost)
		r.Delete("/{id}", h.DeletePost)
		r.Post("/{id}/submit", h.Submit)
		r.Post("/{id}/resubmit", h.Resubmit)
		r.Post("/{id}/approve", h.Approve)
		r.Post("/{id}/reject", h.Reject)
		r.Get("/{id}/history", h.GetHistory)
	})
	return r
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type postResponse struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	AuthorID     uuid.UUID     `json:"author_id"`
	Status       domain.Status `json:"status"`
	RejectReason string        `json:"reject_reason,omitempty"`
	ApprovedBy   *uuid.UUID    `json:"approved_by,omitempty"`
}

type pageResponse[T any] struct {
	Items  []T     `json:"items"`
	Cursor *string `json:"cursor,omitempty"`
}

func toPostResponse(p domain.Post) postResponse {
	return postResponse{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		AuthorID:     p.AuthorID,
		Status:       p.Status,
		RejectReason: p.RejectReason,
		ApprovedBy:   p.ApprovedBy,
	}
}

func (h *BlogHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}

	post, err := h.blogs.CreateDraft(r.Context(), IdentityFrom(r.Context()), services.PostInput{Title: req.Title, Content: req.Content})
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toPostResponse(post))
}

func (h *BlogHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	post, err := h.blogs.GetPost(r.Context(), IdentityFrom(r.Context()), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	// A rejection reason is feedback for the author; reviewers keep it,
	// other readers never see it.
	caller := IdentityFrom(r.Context())
	if post.AuthorID != caller.UserID && !caller.Role.CanApprove() {
		post.RejectReason = ""
	}
	render.JSON(w, r, toPostResponse(post))
}

func (h *BlogHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}

	post, err := h.blogs.UpdatePost(r.Context(), IdentityFrom(r.Context()), id, services.PostInput{Title: req.Title, Content: req.Content})
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, toPostResponse(post))
}

func (h *BlogHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := h.blogs.DeletePost(r.Context(), IdentityFrom(r.Context()), id); err != nil {
		renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *BlogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	limit, cursor := pageParams(r)
	posts, next, err := h.blogs.ListPublished(r.Context(), limit, cursor)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, pageResponse[services.PostSummary]{Items: posts, Cursor: next})
}

func (h *BlogHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	limit, cursor := pageParams(r)
	posts, next, err := h.blogs.ListMine(r.Context(), IdentityFrom(r.Context()), limit, cursor)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, pageResponse[services.PostSummary]{Items: posts, Cursor: next})
}

func (h *BlogHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, cursor := pageParams(r)
	posts, next, err := h.blogs.ListPending(r.Context(), IdentityFrom(r.Context()), limit, cursor)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, pageResponse[services.PostSummary]{Items: posts, Cursor: next})
}

func (h *BlogHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	evt, err := h.engine.Submit(r.Context(), id, IdentityFrom(r.Context()))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, evt)
}

func (h *BlogHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	evt, err := h.engine.Resubmit(r.Context(), id, IdentityFrom(r.Context()))
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, evt)
}

func (h *BlogHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, domain.DecisionApproved)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *BlogHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, domain.DecisionRejected)
}

func (h *BlogHandler) decide(w http.ResponseWriter, r *http.Request, decision domain.Decision) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var reason string
	if decision == domain.DecisionRejected {
		var req rejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderError(w, r, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
			return
		}
		reason = req.Reason
	}

	evt, err := h.engine.Decide(r.Context(), id, IdentityFrom(r.Context()), decision, reason)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, evt)
}

// GetHistory returns the post's workflow event log, newest last.
func (h *BlogHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	// Reuse the visibility rules: whoever may read the post may read its
	// history.
	if _, err := h.blogs.GetPost(r.Context(), IdentityFrom(r.Context()), id); err != nil {
		renderError(w, r, err)
		return
	}
	records, err := h.engine.History(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, records)
}

// GetComments pages the persisted comment history backwards from the
// newest comment, for readers outside the live room.
func (h *BlogHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	_, cursor := pageParams(r)
	comments, next, err := h.comments.GetComments(r.Context(), id, cursor)
	if err != nil {
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, pageResponse[domain.Comment]{Items: comments, Cursor: next})
}

func postID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid post id", errors.ErrInvalidInput)
	}
	return id, nil
}

func pageParams(r *http.Request) (int, *string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	return limit, cursor
}
