package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type captureEmitter struct {
	records []Record
	err     error
}

func (c *captureEmitter) Emit(ctx context.Context, rec Record) error {
	c.records = append(c.records, rec)
	return c.err
}

func TestLogEmitter(t *testing.T) {
	var buf strings.Builder
	e := &LogEmitter{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := e.Emit(context.Background(), Record{
		Type: TypeProposalApproved, Actor: "carol@example.com",
		ProjectID: "proj-a", ProposalID: "pr-1", At: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "proposal.approved") || !strings.Contains(out, "carol@example.com") {
		t.Errorf("log output missing fields: %s", out)
	}
}

func TestMultiEmitterReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &captureEmitter{err: boom}
	b := &captureEmitter{}

	m := Multi{a, b}
	err := m.Emit(context.Background(), Record{Type: TypeConfigUpdated, Actor: "alice@example.com"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	// The second emitter still ran.
	if len(b.records) != 1 {
		t.Errorf("second emitter got %d records, want 1", len(b.records))
	}
}

func TestNoopEmitter(t *testing.T) {
	var e Emitter = NoopEmitter{}
	if err := e.Emit(context.Background(), Record{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
