// Package hostapi is the read-only HTTP introspection surface over the
// running core: health, deck snapshots, scheduler queue depth, and demuxer
// proxy state. It never mutates state; every command path stays internal to
// the actor services (spec §1: "a thin command layer ... [is] excluded").
// Route and response-shape conventions follow the teacher's gin handlers
// (internal/radio/handler/*.go): gin.H{"status": ..., ...} bodies, one
// handler struct per concern.
package hostapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/selectia/selectia-core/internal/deck"
	"github.com/selectia/selectia-core/internal/demuxer"
	"github.com/selectia/selectia-core/internal/mixer"
	"github.com/selectia/selectia-core/internal/ports"
)

// Decks is the slice of decks the handlers report on.
type Decks struct {
	decks []*deck.Deck
}

func NewDecks(decks []*deck.Deck) *Decks { return &Decks{decks: decks} }

// Get handles GET /api/decks
func (h *Decks) Get(c *gin.Context) {
	out := make([]gin.H, 0, len(h.decks))
	for _, d := range h.decks {
		entry := gin.H{"current_file_id": nil}
		if f := d.Current(); f != nil {
			status := f.Status()
			entry = gin.H{
				"current_file_id": f.ID,
				"title":           f.Title,
				"status":          statusKindName(status.Kind),
				"offset":          status.Offset,
			}
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "decks": out})
}

func statusKindName(k deck.StatusKind) string {
	switch k {
	case deck.StatusLoading:
		return "loading"
	case deck.StatusPaused:
		return "paused"
	case deck.StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Tasks reports the task queue's depth by status, read straight from the
// catalog rather than through the scheduler actor (read-only, no inbox
// round-trip needed).
type Tasks struct {
	catalog ports.Catalog
}

func NewTasks(catalog ports.Catalog) *Tasks { return &Tasks{catalog: catalog} }

// Get handles GET /api/tasks
func (h *Tasks) Get(c *gin.Context) {
	rows, err := h.catalog.GetTasks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	counts := map[ports.TaskStatus]int{}
	for _, row := range rows {
		counts[row.Status]++
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"total":      len(rows),
		"queued":     counts[ports.TaskQueued],
		"processing": counts[ports.TaskProcessing],
		"done":       counts[ports.TaskDone],
	})
}

// Demuxer reports the demuxer proxy's lifecycle state.
type Demuxer struct {
	handle *demuxer.Handle
}

func NewDemuxer(handle *demuxer.Handle) *Demuxer { return &Demuxer{handle: handle} }

// Get handles GET /api/demuxer
func (h *Demuxer) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": h.handle.State().String()})
}

// Mixer reports the backend's active source count.
type Mixer struct {
	backend *mixer.Backend
}

func NewMixer(backend *mixer.Backend) *Mixer { return &Mixer{backend: backend} }

// Get handles GET /api/mixer
func (h *Mixer) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_sources": h.backend.SourceCount()})
}

// Health handles GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Options bundles the collaborators the router's handlers read from.
type Options struct {
	Decks   []*deck.Deck
	Catalog ports.Catalog
	Demuxer *demuxer.Handle
	Mixer   *mixer.Backend
}

// NewRouter builds the gin engine serving the introspection endpoints.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())

	r.GET("/health", Health)

	decks := NewDecks(opts.Decks)
	r.GET("/api/decks", decks.Get)

	tasks := NewTasks(opts.Catalog)
	r.GET("/api/tasks", tasks.Get)

	if opts.Demuxer != nil {
		demuxerHandlers := NewDemuxer(opts.Demuxer)
		r.GET("/api/demuxer", demuxerHandlers.Get)
	}

	if opts.Mixer != nil {
		mixerHandlers := NewMixer(opts.Mixer)
		r.GET("/api/mixer", mixerHandlers.Get)
	}

	return r
}

// securityHeaders mirrors the teacher's net/http middleware of the same
// name, ported to gin's handler signature.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
