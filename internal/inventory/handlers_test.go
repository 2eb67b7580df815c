package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"irdinv/internal/apperr"
	"irdinv/internal/db"
	"irdinv/internal/dbtest"
	"irdinv/internal/repo"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	g := dbtest.Open(t)
	store := repo.NewStore(g)
	l := NewLinker(db.NewTxRunner(g), store, NewTypeResolver(store))

	r := mux.NewRouter()
	NewHTTP(l, store).RegisterRoutes(r)
	NewTypesHTTP(g, store).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestIrdHTTPLifecycle(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/irds", `{"name":"IRD-01","adminIp":"10.0.0.1","brand":"Cisco","symbolRate":27500,"multicast":null}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[Linked](t, w)
	assert.Equal(t, "27500", created.Ird.SymbolRate)
	require.NotNil(t, created.Equipment)
	assert.True(t, created.EquipmentInfo.Created)

	path := "/api/v1/irds/" + jsonID(created.Ird.ID)

	w = do(r, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[Linked](t, w)
	assert.Equal(t, created.Equipment.ID, got.Equipment.ID)

	w = do(r, http.MethodPatch, path, `{"model":"D9850"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "D9850", decode[Linked](t, w).Equipment.Model)

	w = do(r, http.MethodGet, "/api/v1/irds", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]json.RawMessage](t, w), 1)

	w = do(r, http.MethodGet, "/api/v1/equipment/"+jsonID(created.Equipment.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"equipmentType"`)

	w = do(r, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["message"], "deleted")

	w = do(r, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIrdHTTPErrors(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/irds", `{"name":"IRD-01","adminIp":"1.2.3"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"adminIp"}, decode[apperr.Body](t, w).Fields)

	w = do(r, http.MethodPost, "/api/v1/irds", `{"name":{"nested":true},"adminIp":"1.2.3.4"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/irds", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/irds", `{"name":"IRD-01","adminIp":"10.0.0.1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(r, http.MethodPost, "/api/v1/irds", `{"name":"ird-01","adminIp":"10.0.0.1"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[apperr.Body](t, w)
	assert.Equal(t, []string{"name", "adminIp"}, body.Fields)
	assert.Equal(t, "10.0.0.1", body.Detail["adminIp"])

	w = do(r, http.MethodPut, "/api/v1/irds/1", `{"equipmentId":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPut, "/api/v1/irds/1", `{"equipmentId":404}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/v1/equipment/77", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEquipmentTypesHTTP(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/v1/equipment-types", `{"name":"Switch"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/equipment-types", `{"name":" SWITCH "}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{"name"}, decode[apperr.Body](t, w).Fields)

	w = do(r, http.MethodPost, "/api/v1/equipment-types", `{"name":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"name"}, decode[apperr.Body](t, w).Fields)

	w = do(r, http.MethodGet, "/api/v1/equipment-types/by-name/switch", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Switch"`)

	w = do(r, http.MethodPut, "/api/v1/equipment-types/1", `{"name":"Router"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/equipment-types", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Router"`)

	w = do(r, http.MethodDelete, "/api/v1/equipment-types/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, "/api/v1/equipment-types/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/v1/equipment-types/by-name/switch", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
