package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"RestJSON/internal/db"
	"RestJSON/internal/model"
	"RestJSON/internal/permit"
	"RestJSON/internal/rescue"
	"RestJSON/internal/resolver"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, role TEXT)`,
	`CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT)`,
	`INSERT INTO users (id, name, role) VALUES (1, 'ann', 'admin'), (2, 'bob', 'member')`,
}

var resources = map[string]string{
	"users": `
filters:
  - attrs: [role, name]
queries:
  actions:
    admins: "users.role = 'admin'"
order:
  - id
required: [name]
defaults:
  role: member
permit:
  create: [name, role]
  update: [name, role]
supports: [count, page]
serializers:
  card:
    fields:
      - source: id
      - source: name
        alias: title
serialize:
  - actions: [admins]
    with: card
`,
	"widgets": `
rescue: []
return_error_data: true
`,
}

var dict = model.NewDictionary("en", map[string]any{
	"api": map[string]any{
		"not_found":   "Record not found",
		"bad_request": "Bad request",
		"forbidden":   "Forbidden",
	},
})

type denyAll struct{}

func (denyAll) Authorize(_ context.Context, action, resource string, _ *model.Record) error {
	return rescue.AccessDenied(action, resource)
}

func setup(t *testing.T, authz resolver.Authorizer) *ResourceHandler {
	t.Helper()
	ctx := context.Background()

	ex, err := db.OpenSQL(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(ex.Close)
	for _, stmt := range schema {
		_, err := ex.DB.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	reg := model.NewRegistry()
	for name, data := range resources {
		require.NoError(t, reg.LoadBytes(name, []byte(data)), name)
	}
	require.NoError(t, reg.Freeze())

	return &ResourceHandler{
		Registry:   reg,
		Compiler:   resolver.NewCompiler(reg, ex, authz),
		Writer:     resolver.NewWriter(ex, authz, permit.New()),
		Dispatcher: &Dispatcher{Dict: dict},
	}
}

// call runs fn with the given path values, e.g. "resource", "users".
func call(t *testing.T, fn HandlerFunc, method, target, body string, path ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(path); i += 2 {
		req.SetPathValue(path[i], path[i+1])
	}
	w := httptest.NewRecorder()
	require.NoError(t, fn(w, req))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestIndex(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Index, http.MethodGet, "/api/users?role=member", "", "resource", "users")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	want := []any{map[string]any{"id": float64(2), "name": "bob", "role": "member"}}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}

	w = call(t, h.Index, http.MethodGet, "/api/users?count=", "", "resource", "users")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", strings.TrimSpace(w.Body.String()))
}

func TestQueryActionUsesItsSerializer(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Member, http.MethodGet, "/api/users/admins", "", "resource", "users", "id", "admins")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{map[string]any{"id": float64(1), "title": "ann"}}, decode(t, w))
}

func TestShow(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Member, http.MethodGet, "/api/users/1", "", "resource", "users", "id", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"id": float64(1), "name": "ann", "role": "admin"}, decode(t, w))

	w = call(t, h.Member, http.MethodGet, "/api/users/99", "", "resource", "users", "id", "99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestEditMissingRaisesNotFound(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Edit, http.MethodGet, "/api/users/99/edit", "", "resource", "users", "id", "99")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]any{"status": "not_found", "error": "Record not found"}, decode(t, w))

	w = call(t, h.Edit, http.MethodGet, "/api/users/2/edit", "", "resource", "users", "id", "2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewReturnsDefaults(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.New, http.MethodGet, "/api/users/new", "", "resource", "users")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"role": "member"}, decode(t, w))
}

func TestCreate(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Create, http.MethodPost, "/api/users", `{"user": {"name": "cy", "id": 50}}`, "resource", "users")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, map[string]any{"id": float64(3), "name": "cy", "role": "member"}, decode(t, w))

	w = call(t, h.Create, http.MethodPost, "/api/users", `{"role": "admin"}`, "resource", "users")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, map[string]any{"errors": map[string]any{"name": []any{"can't be blank"}}}, decode(t, w))

	w = call(t, h.Create, http.MethodPost, "/api/users", `{"name": `, "resource", "users")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decode(t, w).(map[string]any)["status"])

	w = call(t, h.Create, http.MethodPost, "/api/users", `{"name": {"first": "x"}}`, "resource", "users")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdate(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Update, http.MethodPatch, "/api/users/2", `{"name": "robert"}`, "resource", "users", "id", "2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"id": float64(2), "name": "robert", "role": "member"}, decode(t, w))

	w = call(t, h.Update, http.MethodPut, "/api/users/99", `{"name": "x"}`, "resource", "users", "id", "99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Body.String())

	w = call(t, h.Update, http.MethodPut, "/api/users/1", `{"name": ""}`, "resource", "users", "id", "1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDestroyIsIdempotent(t *testing.T) {
	h := setup(t, nil)

	for i := 0; i < 2; i++ {
		w := call(t, h.Destroy, http.MethodDelete, "/api/users/2", "", "resource", "users", "id", "2")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	}

	w := call(t, h.Member, http.MethodGet, "/api/users/2", "", "resource", "users", "id", "2")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccessDenied(t *testing.T) {
	h := setup(t, denyAll{})

	w := call(t, h.Index, http.MethodGet, "/api/users", "", "resource", "users")
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, map[string]any{"status": "forbidden", "error": "Forbidden"}, decode(t, w))

	// aggregates are not authorized per record
	w = call(t, h.Index, http.MethodGet, "/api/users?count=1", "", "resource", "users")
	assert.Equal(t, http.StatusOK, w.Code)

	// nothing to authorize on a missing record
	w = call(t, h.Member, http.MethodGet, "/api/users/99", "", "resource", "users", "id", "99")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnhandledErrorsPropagate(t *testing.T) {
	h := setup(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/widgets/5/edit", nil)
	req.SetPathValue("resource", "widgets")
	req.SetPathValue("id", "5")
	w := httptest.NewRecorder()
	err := h.Edit(w, req)
	require.Error(t, err)
	assert.Same(t, rescue.KindRecordNotFound, rescue.KindOf(err))
	assert.Empty(t, w.Body.String())
}

func TestErrorDataIsIncludedWhenEnabled(t *testing.T) {
	h := setup(t, nil)
	h.Dispatcher.ReturnErrorData = true

	w := call(t, h.Edit, http.MethodGet, "/api/users/99/edit", "", "resource", "users", "id", "99")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w).(map[string]any)
	data, ok := body["error_data"].(map[string]any)
	require.True(t, ok, body)
	assert.Equal(t, "record_not_found", data["type"])
	assert.Equal(t, "couldn't find user with id=99", data["message"])
	assert.NotEmpty(t, data["trace"])
}

func TestUnknownResource(t *testing.T) {
	h := setup(t, nil)

	w := call(t, h.Index, http.MethodGet, "/api/nothing", "", "resource", "nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w).(map[string]any)["status"])
}
