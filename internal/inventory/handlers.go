package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"irdinv/internal/apperr"
	"irdinv/internal/repo"

	"github.com/gorilla/mux"
)

// HTTP serves /api/v1/irds and /api/v1/equipment.
type HTTP struct {
	linker *Linker
	store  *repo.Store
}

func NewHTTP(l *Linker, store *repo.Store) *HTTP { return &HTTP{linker: l, store: store} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// IRD + связанное оборудование
	api.HandleFunc("/irds", h.listIrds).Methods(http.MethodGet)
	api.HandleFunc("/irds", h.createIrd).Methods(http.MethodPost)
	api.HandleFunc("/irds/{id:[0-9]+}", h.getIrd).Methods(http.MethodGet)
	api.HandleFunc("/irds/{id:[0-9]+}", h.updateIrd).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/irds/{id:[0-9]+}", h.deleteIrd).Methods(http.MethodDelete)

	// Equipment (read only; writes go through the IRD endpoints)
	api.HandleFunc("/equipment", h.listEquipment).Methods(http.MethodGet)
	api.HandleFunc("/equipment/{id:[0-9]+}", h.getEquipment).Methods(http.MethodGet)
}

func (h *HTTP) listIrds(w http.ResponseWriter, r *http.Request) {
	list, err := h.linker.List(r.Context())
	if err != nil {
		apperr.Write(w, err, "failed to list IRDs")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *HTTP) getIrd(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ird.get")
	if err != nil {
		apperr.Write(w, err, "invalid id")
		return
	}
	out, err := h.linker.Get(r.Context(), id)
	if err != nil {
		apperr.Write(w, err, "failed to load IRD")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

func (h *HTTP) createIrd(w http.ResponseWriter, r *http.Request) {
	const op = "ird.create"
	fields, _, err := decodeIrdBody(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid body")
		return
	}
	out, err := h.linker.Create(r.Context(), IrdInput(fields))
	if err != nil {
		apperr.Write(w, err, "failed to create IRD")
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, out)
}

func (h *HTTP) updateIrd(w http.ResponseWriter, r *http.Request) {
	const op = "ird.update"
	id, err := pathID(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid id")
		return
	}
	fields, eqID, err := decodeIrdBody(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid body")
		return
	}
	out, err := h.linker.Update(r.Context(), id, IrdPatch{Fields: fields, EquipmentID: eqID})
	if err != nil {
		apperr.Write(w, err, "failed to update IRD")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

func (h *HTTP) deleteIrd(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ird.delete")
	if err != nil {
		apperr.Write(w, err, "invalid id")
		return
	}
	if err := h.linker.Delete(r.Context(), id); err != nil {
		apperr.Write(w, err, "failed to delete IRD")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("IRD %d deleted", id),
	})
}

func (h *HTTP) listEquipment(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.With(h.linker.runner.DB().WithContext(r.Context())).ListEquipment()
	if err != nil {
		apperr.Write(w, apperr.Persistence("equipment.list", err), "failed to list equipment")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *HTTP) getEquipment(w http.ResponseWriter, r *http.Request) {
	const op = "equipment.get"
	id, err := pathID(r, op)
	if err != nil {
		apperr.Write(w, err, "invalid id")
		return
	}
	e, err := h.store.With(h.linker.runner.DB().WithContext(r.Context())).LoadEquipment(id)
	if err != nil {
		if repo.IsNotFound(err) {
			err = apperr.NotFound(op, "equipment %d not found", id)
		} else {
			err = apperr.Persistence(op, err)
		}
		apperr.Write(w, err, "failed to load equipment")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, e)
}

// ── decoding ────────────────────────────────────────────────

func pathID(r *http.Request, op string) (uint, error) {
	raw := mux.Vars(r)["id"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.InvalidArgument(op, "id", "invalid id: %q", raw)
	}
	return uint(n), nil
}

// decodeIrdBody reads a flat JSON object. Scalars become strings, null
// becomes "" and "equipmentId" is split off as the explicit link target.
func decodeIrdBody(r *http.Request, op string) (map[string]string, *uint, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, apperr.InvalidArgument(op, "", "invalid JSON body: %v", err)
	}
	if raw == nil {
		return nil, nil, apperr.InvalidArgument(op, "", "body must be a JSON object")
	}

	var eqID *uint
	if v, ok := raw["equipmentId"]; ok {
		delete(raw, "equipmentId")
		if v != nil {
			s, err := scalar(v)
			n, perr := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil || perr != nil || n == 0 {
				return nil, nil, apperr.InvalidArgument(op, "equipmentId", "equipmentId: invalid id: %v", v)
			}
			id := uint(n)
			eqID = &id
		}
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, err := scalar(v)
		if err != nil {
			return nil, nil, apperr.InvalidArgument(op, k, "%s: %v", k, err)
		}
		out[k] = s
	}
	return out, eqID, nil
}

func scalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		var b bytes.Buffer
		_ = json.NewEncoder(&b).Encode(v)
		return "", fmt.Errorf("expected a scalar value, got %s", strings.TrimSpace(b.String()))
	}
}
