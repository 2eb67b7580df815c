package contacts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/logs"
	"irdinv/internal/models"

	"github.com/gorilla/mux"
)

type HTTP struct{ repo *Repo }

func NewHTTP(r *Repo) *HTTP { return &HTTP{repo: r} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/contacts").Subrouter()
	api.HandleFunc("", h.list).Methods(http.MethodGet)
	api.HandleFunc("", h.create).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.update).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
}

// body: nil pointer = поле не передано.
type body struct {
	Name  *string `json:"name" validate:"omitempty,max=255"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=64"`
}

func (b body) apply(c *models.Contact) {
	if b.Name != nil {
		c.Name = *b.Name
	}
	if b.Email != nil {
		c.Email = b.Email
	}
	if b.Phone != nil {
		c.Phone = b.Phone
	}
}

func (h *HTTP) repoFor(r *http.Request) *Repo { return h.repo.with(h.repo.db.WithContext(r.Context())) }

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.repoFor(r).List()
	if err != nil {
		h.fail(w, r, apperr.Persistence("contact.list", err), "failed to list contacts")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *HTTP) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.load(r, "contact.get")
	if err != nil {
		h.fail(w, r, err, "failed to load contact")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, c)
}

func (h *HTTP) create(w http.ResponseWriter, r *http.Request) {
	const op = "contact.create"
	in, err := decode(r, op)
	if err != nil {
		h.fail(w, r, err, "invalid body")
		return
	}
	c := &models.Contact{}
	in.apply(c)
	if err := requireName(op, c); err != nil {
		h.fail(w, r, err, "invalid body")
		return
	}
	if err := h.repoFor(r).Create(c); err != nil {
		h.fail(w, r, writeErr(op, c, err), "failed to create contact")
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, c)
}

func (h *HTTP) update(w http.ResponseWriter, r *http.Request) {
	const op = "contact.update"
	c, err := h.load(r, op)
	if err != nil {
		h.fail(w, r, err, "failed to load contact")
		return
	}
	in, err := decode(r, op)
	if err != nil {
		h.fail(w, r, err, "invalid body")
		return
	}
	in.apply(c)
	if err := requireName(op, c); err != nil {
		h.fail(w, r, err, "invalid body")
		return
	}
	if err := h.repoFor(r).Save(c); err != nil {
		h.fail(w, r, writeErr(op, c, err), "failed to update contact")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, c)
}

func (h *HTTP) delete(w http.ResponseWriter, r *http.Request) {
	const op = "contact.delete"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, r, err, "invalid id")
		return
	}
	ok, err := h.repoFor(r).Delete(id)
	switch {
	case err != nil:
		h.fail(w, r, apperr.Persistence(op, err), "failed to delete contact")
		return
	case !ok:
		h.fail(w, r, apperr.NotFound(op, "contact %d not found", id), "")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]string{"message": "contact deleted"})
}

func (h *HTTP) load(r *http.Request, op string) (*models.Contact, error) {
	id, err := pathID(r, op)
	if err != nil {
		return nil, err
	}
	c, err := h.repoFor(r).Get(id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound(op, "contact %d not found", id)
		}
		return nil, apperr.Persistence(op, err)
	}
	return c, nil
}

func (h *HTTP) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		logs.FromContext(r.Context()).WithError(err).Error(fallback)
	}
	apperr.Write(w, err, fallback)
}

// ── helpers ─────────────────────────────────────────────────

func pathID(r *http.Request, op string) (uint, error) {
	raw := mux.Vars(r)["id"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.InvalidArgument(op, "id", "invalid id: %q", raw)
	}
	return uint(n), nil
}

func decode(r *http.Request, op string) (body, error) {
	var in body
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, apperr.InvalidArgument(op, "", "invalid JSON body: %v", err)
	}
	return in, apperr.ValidateStruct(op, in)
}

func requireName(op string, c *models.Contact) error {
	if models.NormalizeKey(c.Name) == "" {
		return apperr.InvalidArgument(op, "name", "name is required")
	}
	return nil
}

// writeErr names the duplicated field and its value, e.g.
// `a contact with email "a@b.c" already exists`.
func writeErr(op string, c *models.Contact, err error) error {
	uv, dup := db.AsUniqueViolation(err)
	if !dup {
		return apperr.Persistence(op, err)
	}
	field, value := "value", ""
	switch {
	case uv.Has("email") || uv.Index == db.IndexContactEmail:
		field, value = "email", deref(c.Email)
	case uv.Has("phone") || uv.Index == db.IndexContactPhone:
		field, value = "phone", deref(c.Phone)
	case uv.Has("name") || uv.Index == db.IndexContactName:
		field, value = "name", c.Name
	}
	e := apperr.Conflict(op, []string{field}, map[string]string{field: value}, err)
	e.Message = fmt.Sprintf("a contact with %s %q already exists", field, value)
	return e
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
