package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/groblegark/kconfig/internal/model"
)

const (
	// streamQueueSize bounds the per-subscriber delivery queue. A full
	// queue closes the stream instead of applying backpressure to writers.
	streamQueueSize = 64

	// streamKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	streamKeepaliveInterval = 15 * time.Second
)

// streamEvent is a single change notification delivered to subscribers.
type streamEvent struct {
	Topic string
	Data  []byte // JSON-encoded payload
}

// streamSub is one connected replication stream, scoped to a project.
// Delivery order on ch matches commit order; stop is idempotent.
type streamSub struct {
	projectID string
	ch        chan *streamEvent
	done      chan struct{}
	stopOnce  sync.Once
	hub       *streamHub
}

// stop tears the subscription down exactly once: it leaves the hub, signals
// the handler, and settles the lifecycle counters. Safe to call from both
// the broadcast path (queue overflow) and the handler (disconnect).
func (c *streamSub) stop() {
	c.stopOnce.Do(func() {
		c.hub.remove(c)
		close(c.done)
		c.hub.metrics.streamStopped()
	})
}

// streamHub fans committed changes out to connected replication streams.
// Clients always receive a full snapshot on connect, so there is no replay
// buffer; reconnecting subscribers start fresh.
type streamHub struct {
	mu      sync.RWMutex
	subs    map[*streamSub]struct{}
	metrics *streamMetrics
}

func newStreamHub(reg prometheus.Registerer) *streamHub {
	return &streamHub{
		subs:    make(map[*streamSub]struct{}),
		metrics: newStreamMetrics(reg),
	}
}

// subscribe registers a new stream for one project. Call stop when done.
func (h *streamHub) subscribe(projectID string) *streamSub {
	c := &streamSub{
		projectID: projectID,
		ch:        make(chan *streamEvent, streamQueueSize),
		done:      make(chan struct{}),
		hub:       h,
	}
	h.mu.Lock()
	h.subs[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.streamStarted()
	return c
}

func (h *streamHub) remove(c *streamSub) {
	h.mu.Lock()
	delete(h.subs, c)
	h.mu.Unlock()
}

// broadcast delivers an event to every subscriber of the project. A
// subscriber whose queue is full is closed rather than blocking the writer.
func (h *streamHub) broadcast(projectID, topic string, payload []byte) {
	evt := &streamEvent{Topic: topic, Data: payload}

	h.mu.RLock()
	var overflowed []*streamSub
	for c := range h.subs {
		if c.projectID != projectID {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			overflowed = append(overflowed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range overflowed {
		slog.Warn("closing slow replication stream", "project_id", projectID)
		c.stop()
	}
}

// broadcastEvent is called by recordAndPublish to fan committed changes out
// to replication streams.
func (s *ConfigServer) broadcastEvent(projectID, topic string, event any) {
	if s.hub == nil || projectID == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event for stream broadcast", "topic", topic, "error", err)
		return
	}
	s.hub.broadcast(projectID, topic, payload)
}

// handleStream handles GET /v1/stream?project=<id> (SSE endpoint).
// The full project snapshot is sent first, then incremental change events in
// commit order until the client disconnects or falls too far behind.
func (s *ConfigServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project is required")
		return
	}

	// Subscribe before the snapshot read so commits that land in between
	// are still delivered (possibly redundantly, never missed).
	sub := s.hub.subscribe(projectID)
	defer sub.stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := s.writeSnapshot(w, r, projectID); err != nil {
		slog.Warn("failed to write stream snapshot", "project_id", projectID, "error", err)
		return
	}
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(streamKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case evt := <-sub.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// snapshotEntry pairs a config with its variants in the connect snapshot.
type snapshotEntry struct {
	Config   *model.Config    `json:"config"`
	Variants []*model.Variant `json:"variants,omitempty"`
}

// writeSnapshot sends the complete current state of a project as the first
// stream event. Reconnecting clients rely on this instead of a resume token.
func (s *ConfigServer) writeSnapshot(w http.ResponseWriter, r *http.Request, projectID string) error {
	configs, _, err := s.store.ListConfigs(r.Context(), model.ConfigFilter{ProjectID: projectID})
	if err != nil {
		return err
	}
	entries := make([]snapshotEntry, 0, len(configs))
	for _, cfg := range configs {
		variants, err := s.store.ListVariants(r.Context(), cfg.ID)
		if err != nil {
			return err
		}
		entries = append(entries, snapshotEntry{Config: cfg, Variants: variants})
	}
	payload, err := json.Marshal(map[string]any{"configs": entries})
	if err != nil {
		return err
	}
	writeStreamEvent(w, &streamEvent{Topic: "snapshot", Data: payload})
	return nil
}

// writeStreamEvent writes a single SSE event to the writer.
func writeStreamEvent(w http.ResponseWriter, evt *streamEvent) {
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
