package monitor

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/motionwatch/internal/httputil"
	"github.com/banshee-data/motionwatch/internal/motion/pipeline"
	"github.com/samber/lo"
)

// EntryLayout formats operator log lines: "[2006-01-02 15:04:05] Motion Detected".
const EntryLayout = "2006-01-02 15:04:05"

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "motionwatch",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, ws.detector.Status())
}

func (ws *WebServer) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}
	data := struct {
		Status  pipeline.Status
		Entries []string
		Uptime  string
	}{
		Status:  ws.detector.Status(),
		Entries: ws.logEntries(20),
		Uptime:  time.Since(ws.started).Round(time.Second).String(),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (ws *WebServer) handleRecording(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w, http.MethodPost)
			return
		}
		ws.detector.SetRecording(on)
		httputil.WriteJSONOK(w, map[string]bool{"recording": on})
	}
}

func (ws *WebServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, map[string]bool{"enabled": ws.detector.Status().AlertsEnabled})
	case http.MethodPost:
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := httputil.DecodeJSON(w, r, &body); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if body.Enabled == nil {
			httputil.BadRequest(w, `missing "enabled"`)
			return
		}
		ws.detector.SetAlertsEnabled(*body.Enabled)
		httputil.WriteJSONOK(w, map[string]bool{"enabled": *body.Enabled})
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// logEntries renders the newest n in-memory log entries, newest last.
func (ws *WebServer) logEntries(n int) []string {
	return lo.Map(ws.detector.MotionLog().Tail(n), func(ts time.Time, _ int) string {
		return fmt.Sprintf("[%s] Motion Detected", ts.In(ws.location).Format(EntryLayout))
	})
}

func parseLimit(r *http.Request, def, max int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		return min(v, max)
	}
	return def
}

func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit := parseLimit(r, 50, 1000)
	resp := map[string]interface{}{
		"entries": ws.logEntries(limit),
	}
	if ws.events != nil {
		events, err := ws.events.ListEvents(limit)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("list events: %v", err))
			return
		}
		resp["events"] = events
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleEventsCSV(w http.ResponseWriter, r *http.Request) {
	if ws.events == nil {
		httputil.ServiceUnavailable(w, "no event store configured")
		return
	}
	var buf bytes.Buffer
	if err := ws.events.WriteCSV(&buf, ws.location); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("export csv: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=snapshots_log.csv")
	_, _ = w.Write(buf.Bytes())
}

func (ws *WebServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if ws.frames == nil {
		httputil.ServiceUnavailable(w, "no display configured")
		return
	}
	data, seq, at, ok := ws.frames.Latest()
	if !ok {
		httputil.NotFound(w, "no frame yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	_, _ = w.Write(data)
}

func (ws *WebServer) handleTuning(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if ws.tuning == nil {
		httputil.NotFound(w, "no tuning loaded")
		return
	}
	httputil.WriteJSONOK(w, ws.tuning)
}

func (ws *WebServer) handleBackgroundStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if ws.model == nil {
		httputil.ServiceUnavailable(w, "no background model attached")
		return
	}
	httputil.WriteJSONOK(w, ws.model.Stats())
}

func (ws *WebServer) handlePersistBackground(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	if ws.background == nil {
		httputil.ServiceUnavailable(w, "background persistence not configured")
		return
	}
	id, err := ws.background.Flush(pipeline.ReasonManual)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]int64{"snapshot_id": id})
}
