package inventory

import (
	"encoding/json"
	"fmt"
	"net/http"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/models"
	"irdinv/internal/repo"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// TypesHTTP: CRUD для справочника типов оборудования.
type TypesHTTP struct {
	db    *gorm.DB
	store *repo.Store
}

func NewTypesHTTP(g *gorm.DB, store *repo.Store) *TypesHTTP {
	return &TypesHTTP{db: g, store: store}
}

func (h *TypesHTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/equipment-types").Subrouter()
	api.HandleFunc("", h.list).Methods(http.MethodGet)
	api.HandleFunc("", h.create).Methods(http.MethodPost)
	api.HandleFunc("/by-name/{name}", h.byName).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.update).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
}

type typeBody struct {
	Name string `json:"name" validate:"required,max=128"`
}

func (h *TypesHTTP) st(r *http.Request) *repo.Store {
	return h.store.With(h.db.WithContext(r.Context()))
}

func (h *TypesHTTP) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.st(r).ListTypes()
	if err != nil {
		apperr.Write(w, apperr.Persistence("equipment_type.list", err), "failed to list equipment types")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *TypesHTTP) create(w http.ResponseWriter, r *http.Request) {
	const op = "equipment_type.create"
	in, err := decodeType(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid body")
		return
	}
	m := &models.EquipmentType{Name: in.Name}
	if err := h.st(r).CreateType(m); err != nil {
		apperr.Write(w, typeWriteErr(op, m, err), "failed to create equipment type")
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, m)
}

func (h *TypesHTTP) get(w http.ResponseWriter, r *http.Request) {
	const op = "equipment_type.get"
	m, err := h.load(r, op)
	if err != nil {
		apperr.Write(w, err, "failed to load equipment type")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, m)
}

func (h *TypesHTTP) byName(w http.ResponseWriter, r *http.Request) {
	const op = "equipment_type.by_name"
	name := mux.Vars(r)["name"]
	key := models.NormalizeKey(name)
	if key == "" {
		apperr.Write(w, apperr.InvalidArgument(op, "name", "name is required"), "invalid name")
		return
	}
	m, err := h.st(r).FindTypeByKey(key)
	if err != nil {
		if repo.IsNotFound(err) {
			err = apperr.NotFound(op, "equipment type %q not found", name)
		} else {
			err = apperr.Persistence(op, err)
		}
		apperr.Write(w, err, "failed to load equipment type")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, m)
}

func (h *TypesHTTP) update(w http.ResponseWriter, r *http.Request) {
	const op = "equipment_type.update"
	m, err := h.load(r, op)
	if err != nil {
		apperr.Write(w, err, "failed to load equipment type")
		return
	}
	in, err := decodeType(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid body")
		return
	}
	m.Name = in.Name
	if err := h.st(r).SaveType(m); err != nil {
		apperr.Write(w, typeWriteErr(op, m, err), "failed to update equipment type")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, m)
}

func (h *TypesHTTP) delete(w http.ResponseWriter, r *http.Request) {
	const op = "equipment_type.delete"
	id, err := pathID(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid id")
		return
	}
	ok, err := h.st(r).DeleteType(id)
	switch {
	case err != nil:
		apperr.Write(w, apperr.Persistence(op, err), "failed to delete equipment type")
		return
	case !ok:
		apperr.Write(w, apperr.NotFound(op, "equipment type %d not found", id), "")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("equipment type %d deleted", id),
	})
}

func (h *TypesHTTP) load(r *http.Request, op string) (*models.EquipmentType, error) {
	id, err := pathID(r, op)
	if err != nil {
		return nil, err
	}
	m, err := h.st(r).FindType(id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, apperr.NotFound(op, "equipment type %d not found", id)
		}
		return nil, apperr.Persistence(op, err)
	}
	return m, nil
}

func decodeType(r *http.Request, op string) (typeBody, error) {
	var in typeBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, apperr.InvalidArgument(op, "", "invalid JSON body: %v", err)
	}
	if models.NormalizeKey(in.Name) == "" {
		in.Name = ""
	}
	return in, apperr.ValidateStruct(op, in)
}

func typeWriteErr(op string, m *models.EquipmentType, err error) error {
	if _, dup := db.AsUniqueViolation(err); dup {
		return apperr.Conflict(op, []string{"name"}, map[string]string{"name": m.Name}, err)
	}
	return apperr.Persistence(op, err)
}
