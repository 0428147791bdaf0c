package hostapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/selectia/selectia-core/internal/actor"
	"github.com/selectia/selectia-core/internal/deck"
	"github.com/selectia/selectia-core/internal/ports/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func doGet(t *testing.T, r *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHealthReportsOK(t *testing.T) {
	r := NewRouter(Options{Catalog: fake.NewCatalog()})
	code, body := doGet(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestDecksReportsNoCurrentFileForEmptyDeck(t *testing.T) {
	events := actor.NewDispatcher[deck.Event](16, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.Run(ctx)

	d := deck.New(1, events)
	r := NewRouter(Options{Decks: []*deck.Deck{d}, Catalog: fake.NewCatalog()})

	code, body := doGet(t, r, "/api/decks")
	require.Equal(t, http.StatusOK, code)
	decks := body["decks"].([]any)
	require.Len(t, decks, 1)
	entry := decks[0].(map[string]any)
	assert.Nil(t, entry["current_file_id"])
}

func TestTasksReportsCountsByStatus(t *testing.T) {
	catalog := fake.NewCatalog()
	_, err := catalog.CreateTask(context.Background(), []byte(`{}`))
	require.NoError(t, err)

	r := NewRouter(Options{Catalog: catalog})
	code, body := doGet(t, r, "/api/tasks")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["queued"])
}

func TestDemuxerEndpointOmittedWhenNotConfigured(t *testing.T) {
	r := NewRouter(Options{Catalog: fake.NewCatalog()})
	code, _ := doGet(t, r, "/api/demuxer")
	assert.Equal(t, http.StatusNotFound, code)
}
