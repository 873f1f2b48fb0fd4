package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interopae/travel-concierge/backend/internal/session"
)

type fakeBackends struct{ model, audio bool }

func (f fakeBackends) ModelEnabled() bool { return f.model }
func (f fakeBackends) AudioEnabled() bool { return f.audio }

func TestHealthReportsState(t *testing.T) {
	registry := session.NewRegistry()
	registry.Register("alice", session.NewQueue(1))
	registry.Register("bob", session.NewQueue(1))

	r := chi.NewRouter()
	New(fakeBackends{model: true}, registry).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var env struct {
		Data   Status `json:"data"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.Equal(t, "OK", env.Status)
	assert.Equal(t, Status{Sessions: 2, Model: true, Speech: false}, env.Data)
}
