package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecosur-lab/datasync/internal/aggregate"
	"github.com/ecosur-lab/datasync/internal/control"
	"github.com/ecosur-lab/datasync/internal/store"
)

// Server is the local control surface: inspect subsystem states and
// checkpoints, flip a subsystem between RUNNING/PAUSED/STOPPED, and peek at
// the latest finalized measurements. It replaces the old desktop panel.
type Server struct {
	Engine *gin.Engine
	Addr   string

	ctrl   *control.Store
	latest func() []aggregate.Record
	logger *slog.Logger
}

// New builds the server and registers its routes. latest may be nil when no
// collector runs in this process.
func New(addr string, ctrl *control.Store, latest func() []aggregate.Record, mode string, logger *slog.Logger) *Server {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		Engine: r,
		Addr:   addr,
		ctrl:   ctrl,
		latest: latest,
		logger: logger,
	}

	r.GET("/health", s.healthHandler)
	r.GET("/v1/status", s.statusHandler)
	r.PUT("/v1/services/:service/state", s.setStateHandler)
	r.GET("/v1/measurements/latest", s.latestHandler)

	return s
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// statusHandler dumps the control document: subsystem states plus the
// last-successful checkpoints.
func (s *Server) statusHandler(c *gin.Context) {
	doc := s.ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"services":        doc.Services,
		"last_successful": doc.LastSuccessful,
	})
}

type setStateRequest struct {
	State string `json:"state" binding:"required"`
}

// setStateHandler updates one subsystem's control state. The running loops
// pick the change up on their next control check.
func (s *Server) setStateHandler(c *gin.Context) {
	service := c.Param("service")
	if !knownService(service) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service"})
		return
	}

	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"state\": \"RUNNING|PAUSED|STOPPED\"}"})
		return
	}

	state, err := control.ParseState(req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.ctrl.SetState(service, state); err != nil {
		s.logger.Error("[API] State update failed", "service", service, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"service": service, "state": state})
}

type measurementRow struct {
	Timestamp string             `json:"timestamp"`
	Fields    map[string]float64 `json:"fields"`
}

// latestHandler returns the most recently flushed batch of records.
func (s *Server) latestHandler(c *gin.Context) {
	if s.latest == nil {
		c.JSON(http.StatusOK, gin.H{"measurements": []measurementRow{}})
		return
	}

	records := s.latest()
	rows := make([]measurementRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, measurementRow{
			Timestamp: r.Timestamp.Format(store.TimestampLayout),
			Fields:    r.Fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"measurements": rows})
}

func knownService(name string) bool {
	for _, s := range control.Services {
		if s == name {
			return true
		}
	}
	return false
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	s.logger.Info("[API] Starting HTTP server", "address", s.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("[API] Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("[API] HTTP server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
