package http

import (
	"net/http"

	"blog-lab/errors"

	"github.com/go-chi/render"
)

type errorResponse struct {
	Error string `json:"error"`
}

// renderError maps the domain error taxonomy onto HTTP statuses and emits
// a uniform JSON body.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, errors.MapToStatusCode(err))
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
