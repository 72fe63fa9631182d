package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The middleware itself depends on *postgres.IdempotencyRepository, a concrete
// type, so the cached-replay path is covered by integration tests. The
// no-key passthrough and the recorder it relies on are testable in isolation.

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	called := false
	handler := Idempotency(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"abc"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/refunds", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"id":"abc"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Idempotency-Replayed"))
}

func TestResponseRecorder_CapturesStatusAndBody(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: inner, body: &bytes.Buffer{}, statusCode: http.StatusOK}

	rec.WriteHeader(http.StatusConflict)
	n, err := rec.Write([]byte(`{"error":"refund already processed"}`))

	require.NoError(t, err)
	assert.Equal(t, 36, n)
	assert.Equal(t, http.StatusConflict, rec.statusCode)
	assert.Equal(t, `{"error":"refund already processed"}`, rec.body.String())
	assert.False(t, rec.bodyTruncated)

	// The wrapped writer still receives everything.
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, `{"error":"refund already processed"}`, inner.Body.String())
}

func TestResponseRecorder_DefaultsToOK(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: inner, body: &bytes.Buffer{}, statusCode: http.StatusOK}

	rec.Write([]byte("ok"))

	assert.Equal(t, http.StatusOK, rec.statusCode)
	assert.Equal(t, "ok", rec.body.String())
}

func TestResponseRecorder_TruncatesLargeBodies(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: inner, body: &bytes.Buffer{}, statusCode: http.StatusOK}

	chunk := strings.Repeat("x", 512*1024)
	for i := 0; i < 3; i++ {
		_, err := rec.Write([]byte(chunk))
		require.NoError(t, err)
	}

	assert.True(t, rec.bodyTruncated)
	// Captured body stays within the cap even though the client got it all.
	assert.LessOrEqual(t, rec.body.Len(), maxIdempotencyBodySize)
	assert.Equal(t, 3*len(chunk), inner.Body.Len())
}
