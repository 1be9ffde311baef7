package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *Service, *testDeps) {
	t.Helper()
	svc, deps := newTestService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, svc, deps
}

func TestHandlerBulkCreate(t *testing.T) {
	r, _, _ := newTestRouter(t)

	body := `{
		"header": {
			"kind": "QUOTATION",
			"currency": "TRY",
			"documentDate": "2025-05-10T00:00:00Z",
			"customerId": 3,
			"salespersonId": 5
		},
		"lines": [
			{"productId": 10, "quantity": 10, "unitPrice": 100, "discountRate1": 10, "discountRate2": 5, "vatRate": 18}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, KindQuotation, doc.Kind)
	require.Len(t, doc.Groups, 1)
	assert.Equal(t, 855.00, doc.Groups[0].Main.LineTotal)
	assert.Equal(t, 1008.90, doc.Groups[0].Main.GrandTotal)
}

func TestHandlerBulkCreateValidation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	// Missing lines.
	body := `{"header": {"kind": "QUOTATION", "currency": "TRY", "documentDate": "2025-05-10T00:00:00Z", "customerId": 3, "salespersonId": 5}, "lines": []}`
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGetNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/documents/404", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Not Found", problem["title"])
}

func TestHandlerGet(t *testing.T) {
	r, svc, _ := newTestRouter(t)
	doc := seedDocument(t, svc)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/documents/%d", doc.ID), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, doc.DocNumber, got.DocNumber)
}

func TestHandlerUpsertRateConflict(t *testing.T) {
	r, svc, _ := newTestRouter(t)
	doc := seedDocument(t, svc)

	body := `{"currency": "TRY", "exchangeRate": 2}`
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/documents/%d/rates", doc.ID), bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerDeleteLine(t *testing.T) {
	r, svc, _ := newTestRouter(t)
	doc := seedDocument(t, svc)
	lineID, _ := ServerLineID(doc.Groups[0].Main.LocalID)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/documents/%d/lines/%d", doc.ID, lineID), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerListLimitBounded(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/documents?limit=5000", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/documents?offset=-1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListUnknownKind(t *testing.T) {
	r, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/documents?kind=INVOICE", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
