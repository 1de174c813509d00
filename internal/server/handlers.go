package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qrs-ai/roadscan/internal/generate"
	"github.com/qrs-ai/roadscan/internal/output"
	"github.com/qrs-ai/roadscan/internal/scan"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

func healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) status(c *gin.Context) {
	if s.cfg.Ready != nil {
		if err := s.cfg.Ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, output.Result{
				Verdict: string(scan.VerdictError),
				Entropy: err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, output.Ready)
}

type scanRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (r scanRequest) fix(def scan.Fix) scan.Fix {
	fix := def
	if r.Lat != nil {
		fix.Lat = *r.Lat
	}
	if r.Lon != nil {
		fix.Lon = *r.Lon
	}
	return fix
}

func (s *Server) scanJSON(c *gin.Context) {
	var req scanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
	}
	fix := req.fix(s.cfg.DefaultFix)
	if !fix.Valid() {
		respondError(c, http.StatusBadRequest, "invalid_fix", fmt.Errorf("invalid fix %.6f,%.6f", fix.Lat, fix.Lon))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ScanTimeout)
	defer cancel()

	rep, err := s.scanner.Scan(ctx, fix, nil)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, output.ResultOf(rep))
		return
	}
	c.JSON(http.StatusOK, output.ResultOf(rep))
}

func queryFix(c *gin.Context, def scan.Fix) (scan.Fix, error) {
	var req scanRequest
	for name, dst := range map[string]**float64{"lat": &req.Lat, "lon": &req.Lon} {
		raw, ok := c.GetQuery(name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return scan.Fix{}, fmt.Errorf("invalid %s %q", name, raw)
		}
		*dst = &v
	}
	return req.fix(def), nil
}

type scanOutcome struct {
	rep *scan.Report
	err error
}

// scanStream runs a scan and relays its chunks as SSE "chunk" events
// followed by a single "verdict" event.
func (s *Server) scanStream(c *gin.Context) {
	fix, err := queryFix(c, s.cfg.DefaultFix)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !fix.Valid() {
		respondError(c, http.StatusBadRequest, "invalid_fix", fmt.Errorf("invalid fix %.6f,%.6f", fix.Lat, fix.Lon))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.ScanTimeout)
	defer cancel()

	sink := generate.NewChanSink(streamBuffer)
	done := make(chan scanOutcome, 1)
	go func() {
		rep, err := s.scanner.Scan(ctx, fix, sink)
		sink.Close()
		done <- scanOutcome{rep, err}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	chunks := sink.C()
	finished := false
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			s.log.Debug("client left before verdict", "error", c.Request.Context().Err())
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		case text, ok := <-chunks:
			if ok {
				c.SSEvent("chunk", gin.H{"text": text})
				return true
			}
			out := <-done
			finished = true
			if out.err != nil {
				s.log.Warn("streamed scan failed", "error", out.err)
			}
			if n := sink.Dropped(); n > 0 {
				s.log.Warn("stream dropped chunks", "count", n)
			}
			c.SSEvent("verdict", output.ResultOf(out.rep))
			return false
		}
	})
	// Wait for the scan goroutine when the client left early.
	cancel()
	if !finished {
		for range chunks {
		}
		<-done
	}
}

const maxHistory = 200

func (s *Server) recent(c *gin.Context) {
	if s.cfg.History == nil {
		respondError(c, http.StatusNotFound, "history_disabled", errors.New("history is disabled"))
		return
	}
	n := 20
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			respondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid n %q", raw))
			return
		}
		n = min(v, maxHistory)
	}
	recs, err := s.cfg.History.Recent(c.Request.Context(), n)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "history_error", err)
		return
	}
	type row struct {
		ID      int64     `json:"id"`
		Time    time.Time `json:"ts"`
		ScanID  string    `json:"scan_id"`
		Verdict string    `json:"verdict"`
		Sealed  bool      `json:"sealed"`
	}
	rows := make([]row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, row{r.ID, r.Time, r.ScanID, r.Verdict, r.Sealed})
	}
	c.JSON(http.StatusOK, rows)
}
