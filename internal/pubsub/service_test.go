package pubsub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthReturnsPlainOK(t *testing.T) {
	svc := &Service{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	svc.NewRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestCreateTopicMalformedBodyIsBadRequest(t *testing.T) {
	svc := &Service{}
	router := svc.NewRouter()
	req := httptest.NewRequest(http.MethodPost, "/v1/topics/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "InvalidData", body.Code)
}

func TestMalformedAckIDClientErrorIs422(t *testing.T) {
	ae := clientError("malformed ack id \"xyz\"")
	require.Equal(t, http.StatusUnprocessableEntity, ae.status)
	require.Equal(t, "ClientError", ae.code)
}

func TestClassifyErrDefaultsTo422Unexpected(t *testing.T) {
	ae := classifyErr(require.AnError)
	require.Equal(t, http.StatusUnprocessableEntity, ae.status)
	require.Equal(t, "Unexpected", ae.code)
}

func TestClassifyErrPassesThroughApiError(t *testing.T) {
	want := badRequest("bad")
	got := classifyErr(want)
	require.Same(t, want, got)
}
