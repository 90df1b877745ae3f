package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"git.home.luguber.info/inful/docship/internal/logfields"
	"git.home.luguber.info/inful/docship/internal/version"
)

// statusResponse is the /status payload.
type statusResponse struct {
	Project    string     `json:"project"`
	Version    string     `json:"docship_version"`
	Interval   string     `json:"interval"`
	RunActive  bool       `json:"run_active"`
	LastRun    *RunStatus `json:"last_run,omitempty"`
	ServerTime time.Time  `json:"server_time"`
}

func (d *Daemon) newAdminServer(listen string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/status", d.handleStatus)
	if d.promRec != nil {
		mux.Handle("/metrics", d.promRec.Handler())
	}

	return &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (d *Daemon) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg, lastRun, busy := d.status()

	resp := statusResponse{
		Project:    cfg.Project.Name,
		Version:    version.Version,
		Interval:   cfg.Daemon.Interval,
		RunActive:  busy,
		LastRun:    lastRun,
		ServerTime: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode status response", logfields.Error(err))
	}
}
