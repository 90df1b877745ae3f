// Package notify publishes run-completion events to NATS. Notification is
// best-effort: connection or publish failures are logged as warnings and
// never fail a pipeline run.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docship/internal/config"
	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/pipeline"
)

// RunEvent is the JSON payload published after each pipeline run.
type RunEvent struct {
	RunID      string         `json:"run_id"`
	Project    string         `json:"project"`
	Version    string         `json:"version,omitempty"`
	Outcome    string         `json:"outcome"` // success|failed
	Error      string         `json:"error,omitempty"`
	Started    time.Time      `json:"started"`
	DurationMS int64          `json:"duration_ms"`
	Steps      []RunEventStep `json:"steps"`
	Timestamp  time.Time      `json:"timestamp"`
}

// RunEventStep is one step outcome within a RunEvent.
type RunEventStep struct {
	Step       string `json:"step"`
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
}

// Notifier publishes run events to a NATS subject.
type Notifier struct {
	conn    *nats.Conn
	subject string
	project string
}

// NewNotifier connects to NATS. Callers should treat a connection error as a
// degradation, not a failure.
func NewNotifier(cfg *config.NATSConfig, project string) (*Notifier, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("nats configuration is required")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("docship"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = "docship.runs"
	}

	slog.Info("NATS notifier initialized", slog.String("url", cfg.URL), slog.String("subject", subject))
	return &Notifier{conn: conn, subject: subject, project: project}, nil
}

// PublishRun publishes the outcome of a pipeline run. A nil Notifier is a
// no-op so callers can skip the enabled check.
func (n *Notifier) PublishRun(state *pipeline.RunState, runErr error) error {
	if n == nil {
		return nil
	}

	event := newRunEvent(n.project, state, runErr)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	slog.Debug("Published run event",
		logfields.RunID(state.RunID),
		logfields.Outcome(event.Outcome),
		slog.String("subject", n.subject))
	return nil
}

func newRunEvent(project string, state *pipeline.RunState, runErr error) RunEvent {
	event := RunEvent{
		RunID:     state.RunID,
		Project:   project,
		Version:   state.DevVersion(),
		Outcome:   "success",
		Started:   state.StartedAt,
		Timestamp: time.Now(),
	}
	if runErr != nil {
		event.Outcome = "failed"
		event.Error = runErr.Error()
	}
	for _, r := range state.Results {
		event.Steps = append(event.Steps, RunEventStep{
			Step:       string(r.Step),
			Outcome:    string(r.Outcome),
			DurationMS: r.Duration.Milliseconds(),
		})
		event.DurationMS += r.Duration.Milliseconds()
	}
	return event
}

// Close flushes and closes the NATS connection.
func (n *Notifier) Close() {
	if n == nil || n.conn == nil {
		return
	}
	_ = n.conn.Flush()
	n.conn.Close()
}
