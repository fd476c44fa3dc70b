package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"customer_reviews/internal/app"
	"customer_reviews/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	C *app.CommandService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Route("/v1", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
			r.Patch("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
			r.Get("/{id}/items", h.customerItems)
			r.Post("/{id}/items", h.appendItem)
		})
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.listItems)
			r.Post("/", h.createItem)
			r.Get("/{id}", h.getItem)
			r.Patch("/{id}", h.updateItem)
			r.Delete("/{id}", h.deleteItem)
		})
		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", h.listReviews)
			r.Post("/", h.createReview)
			r.Get("/{id}", h.getReview)
			r.Patch("/{id}", h.updateReview)
			r.Delete("/{id}", h.deleteReview)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses. Unknown errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalid):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, domain.ErrReferentialIntegrity):
		writeProblem(w, http.StatusConflict, "Referential Integrity Violation", err.Error())
	case errors.Is(err, domain.ErrDuplicate):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeView writes v as JSON with a weak ETag, answering 304 when the client has it.
func writeView(w http.ResponseWriter, r *http.Request, status int, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); r.Method == http.MethodGet && inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

// excludes turns ?exclude=items,reviews.item into serializer rules.
func excludes(r *http.Request) []string {
	raw := r.URL.Query().Get("exclude")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, "-"+strings.TrimPrefix(p, "-"))
		}
	}
	return out
}

func pageQuery(w http.ResponseWriter, r *http.Request) (domain.PageQuery, bool) {
	pg := domain.PageQuery{Limit: 50}
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return pg, false
		}
		pg.Limit = l
	}
	if as := r.URL.Query().Get("after"); as != "" {
		a, err := strconv.ParseInt(as, 10, 64)
		if err != nil || a < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid cursor", "after must be a non-negative integer")
			return pg, false
		}
		pg.AfterID = a
	}
	return pg, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return false
	}
	return true
}

func created(w http.ResponseWriter, r *http.Request, location string, view map[string]any, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", location)
	writeView(w, r, http.StatusCreated, view)
}

// ---- customers ----

func (h *Handlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	pg, ok := pageQuery(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListCustomers(r.Context(), pg, excludes(r)...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

func (h *Handlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Q.GetCustomer(r.Context(), id, excludes(r)...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

func (h *Handlers) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in app.CustomerInput
	if !decode(w, r, &in) {
		return
	}
	id, err := h.C.CreateCustomer(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.Q.GetCustomer(r.Context(), id)
	created(w, r, fmt.Sprintf("/v1/customers/%d", id), view, err)
}

func (h *Handlers) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in app.CustomerInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.C.UpdateCustomer(r.Context(), id, in); err != nil {
		writeError(w, r, err)
		return
	}
	h.getCustomer(w, r)
}

func (h *Handlers) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.C.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) customerItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Q.CustomerItems(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

type appendItemRequest struct {
	ItemID int64 `json:"item_id"`
}

// appendItem adds an item to the customer's items, which creates a review.
func (h *Handlers) appendItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req appendItemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ItemID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Input", "item_id must be a positive number")
		return
	}
	rid, err := h.C.AppendItem(r.Context(), id, req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.Q.GetReview(r.Context(), rid)
	created(w, r, fmt.Sprintf("/v1/reviews/%d", rid), view, err)
}

// ---- items ----

func (h *Handlers) listItems(w http.ResponseWriter, r *http.Request) {
	pg, ok := pageQuery(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListItems(r.Context(), pg, excludes(r)...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

func (h *Handlers) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Q.GetItem(r.Context(), id, excludes(r)...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

func (h *Handlers) createItem(w http.ResponseWriter, r *http.Request) {
	var in app.ItemInput
	if !decode(w, r, &in) {
		return
	}
	id, err := h.C.CreateItem(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.Q.GetItem(r.Context(), id)
	created(w, r, fmt.Sprintf("/v1/items/%d", id), view, err)
}

func (h *Handlers) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in app.ItemInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.C.UpdateItem(r.Context(), id, in); err != nil {
		writeError(w, r, err)
		return
	}
	h.getItem(w, r)
}

func (h *Handlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.C.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- reviews ----

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	pg, ok := pageQuery(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListReviews(r.Context(), pg, excludes(r)...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.Q.GetReview(r.Context(), id, excludes(r)...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeView(w, r, http.StatusOK, out)
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var in app.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	id, err := h.C.CreateReview(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.Q.GetReview(r.Context(), id)
	created(w, r, fmt.Sprintf("/v1/reviews/%d", id), view, err)
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in app.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.C.UpdateReview(r.Context(), id, in); err != nil {
		writeError(w, r, err)
		return
	}
	h.getReview(w, r)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.C.DeleteReview(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
