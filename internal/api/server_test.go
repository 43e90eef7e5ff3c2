package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"scanq/internal/config"
	"scanq/internal/domain"
	"scanq/internal/infra/memstore"
	"scanq/internal/ports"
	"scanq/internal/queue"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, send ports.SendFunc) (*queue.Service, http.Handler) {
	t.Helper()
	q := queue.New(memstore.New(), config.Flush{})
	q.OverrideWait(func(context.Context, time.Duration) error { return nil })
	return q, NewServer(q, send).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestQueueAndList(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/scans/", `{"tag":"A-1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID        int64 `json:"id"`
		CreatedAt int64 `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.NotZero(t, created.CreatedAt)

	w = do(t, h, http.MethodGet, "/scans/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var recs []domain.QueuedScan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, created.ID, recs[0].ID)
	assert.JSONEq(t, `{"tag":"A-1"}`, string(recs[0].Payload))
}

func TestListEmpty(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodGet, "/scans/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestQueue_Rejects(t *testing.T) {
	_, h := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{"tag":`, http.StatusBadRequest},
		{"empty", ``, http.StatusBadRequest},
		{"too large", `"` + strings.Repeat("x", maxScanBytes) + `"`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/scans/", tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCountAndClear(t *testing.T) {
	q, h := newTestServer(t, nil)
	a, err := q.QueueScan(context.Background(), json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = q.QueueScan(context.Background(), json.RawMessage(`{"n":2}`))
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/scans/count", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())

	body, _ := json.Marshal(map[string][]int64{"ids": {a.ID}})
	w = do(t, h, http.MethodDelete, "/scans/", string(body))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/scans/count", "")
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/scans/", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlush_NoSink(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/scans/flush", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFlush_Delivers(t *testing.T) {
	var sent []string
	q, h := newTestServer(t, func(_ context.Context, p json.RawMessage) error {
		var m struct{ N int }
		if err := json.Unmarshal(p, &m); err != nil {
			return err
		}
		if m.N == 2 {
			return domain.NewStatusError(http.StatusUnprocessableEntity, errors.New("unknown tag"))
		}
		sent = append(sent, string(p))
		return nil
	})
	for _, p := range []string{`{"n":1}`, `{"n":2}`} {
		_, err := q.QueueScan(context.Background(), json.RawMessage(p))
		require.NoError(t, err)
	}

	w := do(t, h, http.MethodPost, "/scans/flush", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"processed":2,"remaining":0}`, w.Body.String())
	assert.Equal(t, []string{`{"n":1}`}, sent)
}

func TestRequestID(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodGet, "/scans/count", "")
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err, "generated ids are uuids")

	req := httptest.NewRequest(http.MethodGet, "/scans/count", nil)
	req.Header.Set(requestIDHeader, "scanner-7")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "scanner-7", w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/scans/", nil)
	req.Header.Set("Origin", "http://scanner.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverHandler(t *testing.T) {
	h := chainMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), loggerContextHandler, requestIDHandler, recoverHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRealIPHandler(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "10.0.0.7, 172.16.0.1"}, "10.0.0.7"},
		{"real ip", map[string]string{"X-Real-IP": "192.168.1.20"}, "192.168.1.20"},
		{"none", nil, "192.0.2.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := realIPHandler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			assert.Equal(t, tt.want, got)
		})
	}
}
