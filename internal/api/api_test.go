package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/inventory"
)

func testInventory(t *testing.T) *inventory.Store {
	t.Helper()
	dir := t.TempDir()
	inv, err := inventory.NewStore(conf.InventorySettings{
		Path:      filepath.Join(dir, "inventory.json"),
		PhotoPath: filepath.Join(dir, "photos"),
	}, nil)
	require.NoError(t, err)

	_, _, err = inv.AddItem(inventory.Incoming{Name: "Red Mug", Room: "Kitchen", Category: "Kitchenware", EstimatedValue: 8})
	require.NoError(t, err)
	_, _, err = inv.AddItem(inventory.Incoming{Name: "Monitor", Room: "Study", Category: "Electronics", EstimatedValue: 250})
	require.NoError(t, err)
	return inv
}

func doRequest(t *testing.T, s *Server, target, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListInventory(t *testing.T) {
	s := New(conf.APISettings{}, testInventory(t))

	t.Run("all", func(t *testing.T) {
		rec := doRequest(t, s, "/api/v1/inventory", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), decodeBody(t, rec)["count"])
	})

	t.Run("room filter", func(t *testing.T) {
		rec := doRequest(t, s, "/api/v1/inventory?room=kitchen", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
	})

	t.Run("category filter", func(t *testing.T) {
		rec := doRequest(t, s, "/api/v1/inventory?category=Electronics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
	})
}

func TestSearchInventory(t *testing.T) {
	s := New(conf.APISettings{}, testInventory(t))

	rec := doRequest(t, s, "/api/v1/inventory/search?q=mug", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = doRequest(t, s, "/api/v1/inventory/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a search needs a query")
}

func TestSummary(t *testing.T) {
	s := New(conf.APISettings{}, testInventory(t))

	rec := doRequest(t, s, "/api/v1/inventory/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["totalItems"])
	assert.Equal(t, float64(258), body["totalValue"])
}

func TestGetItem(t *testing.T) {
	inv := testInventory(t)
	s := New(conf.APISettings{}, inv)

	id := inv.Items()[0].ID
	rec := doRequest(t, s, "/api/v1/inventory/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, "/api/v1/inventory/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerKeyAuth(t *testing.T) {
	s := New(conf.APISettings{Key: "sekrit"}, testInventory(t))

	rec := doRequest(t, s, "/api/v1/inventory", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing key must be rejected")

	rec = doRequest(t, s, "/api/v1/inventory", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, s, "/api/v1/inventory", "sekrit")
	assert.Equal(t, http.StatusOK, rec.Code)
}
