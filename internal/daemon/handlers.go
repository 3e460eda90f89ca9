// serveHTTP wires one http.ServeMux handler per RPC operation under
// the /manager/..., /roster/..., and /utils/... prefixes spec.md §6
// names, each wrapped by auth.Middleware. Grounded on mux_server.go's
// serveHTTP: one http.HandleFunc call per operation, request bodies
// decoded with encoding/json, responses written with writeJSON /
// writeJSONError.
package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/xz-dev/juststart/internal/rpcauth"
	"github.com/xz-dev/juststart/internal/runnerconfig"
	"github.com/xz-dev/juststart/version"
)

type servicePathRequest struct {
	Path string `json:"path"`
}

// stopRequest mirrors spec.md's stop_runner(path, check_running=false):
// CheckRunning defaults to false (the Go zero value) so a bare
// {"path": ...} body stops the service unconditionally.
type stopRequest struct {
	Path         string `json:"path"`
	CheckRunning bool   `json:"check_running,omitempty"`
}

type startRequest struct {
	Path   string                     `json:"path"`
	Config *runnerconfig.RunnerConfig `json:"config,omitempty"`
}

func (d *Daemon) serveHTTP(auth *rpcauth.Authenticator) {
	mux := http.NewServeMux()

	mux.HandleFunc("/manager/start", d.handleStart)
	mux.HandleFunc("/manager/stop", d.handleStop)
	mux.HandleFunc("/manager/restart", d.handleRestart)
	mux.HandleFunc("/manager/reload", d.handleReload)
	mux.HandleFunc("/manager/status", d.handleStatus)
	mux.HandleFunc("/manager/clean", d.handleClean)

	mux.HandleFunc("/roster/add", d.handleRosterAdd)
	mux.HandleFunc("/roster/delete", d.handleRosterDelete)
	mux.HandleFunc("/roster/enable", d.handleRosterEnable)
	mux.HandleFunc("/roster/disable", d.handleRosterDisable)
	mux.HandleFunc("/roster/list", d.handleRosterList)

	mux.HandleFunc("/utils/info", d.handleInfo)
	mux.HandleFunc("/utils/shutdown", d.handleShutdownRPC)

	server := &http.Server{Handler: auth.Middleware(mux)}
	if err := server.Serve(d.listener); err != nil && err != http.ErrServerClosed {
		slog.Error("http server exited", "err", err)
	}
}

func (d *Daemon) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.manager.StartRunner(r.Context(), req.Path, req.Config); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "started"})
}

func (d *Daemon) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.manager.StopRunner(r.Context(), req.Path, req.CheckRunning); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "stopped"})
}

func (d *Daemon) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req servicePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.manager.RestartRunner(r.Context(), req.Path); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "restarted"})
}

func (d *Daemon) handleReload(w http.ResponseWriter, r *http.Request) {
	var req servicePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.manager.ReloadRunner(r.Context(), req.Path); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"})
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.manager.GetRunnerStatusDict())
}

func (d *Daemon) handleClean(w http.ResponseWriter, r *http.Request) {
	reaped, err := d.manager.CleanRunner()
	if err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"reaped": reaped})
}

func (d *Daemon) handleRosterAdd(w http.ResponseWriter, r *http.Request) {
	var req servicePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.roster.Add(req.Path); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "added"})
}

func (d *Daemon) handleRosterDelete(w http.ResponseWriter, r *http.Request) {
	var req servicePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.roster.Delete(req.Path); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (d *Daemon) handleRosterEnable(w http.ResponseWriter, r *http.Request) {
	var req servicePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.roster.Enable(req.Path); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "enabled"})
}

func (d *Daemon) handleRosterDisable(w http.ResponseWriter, r *http.Request) {
	var req servicePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.roster.Disable(req.Path); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "disabled"})
}

func (d *Daemon) handleRosterList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.roster.Entries())
}

type infoResponse struct {
	Pid       int          `json:"pid"`
	StartedAt time.Time    `json:"startedAt"`
	Version   version.Info `json:"version"`
}

func (d *Daemon) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, infoResponse{
		Pid:       os.Getpid(),
		StartedAt: d.startedAt,
		Version:   version.Get(),
	})
}

func (d *Daemon) handleShutdownRPC(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "shutting down"})
	go d.Shutdown(r.Context())
}
