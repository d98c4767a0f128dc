// Package ipc exposes the daemon over HTTP. REST routes read and write single
// targets and whole profiles; /api/ws streams change batches.
package ipc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/normen/goxlr-daemon/daemon"
	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/mapper"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Backend is the inbound API served over HTTP. *daemon.Daemon implements it.
type Backend interface {
	GetState(t state.Target) (state.Value, error)
	Snapshot() []state.Change
	SetState(ctx context.Context, t state.Target, v int32) error
	Profile() *profile.Profile
	ApplyProfile(ctx context.Context, p *profile.Profile) error
	ReadProfile(ctx context.Context) (*profile.Profile, error)
	Subscribe() *notify.Subscription
	Connected() bool
}

// requestTimeout bounds a request waiting on the daemon loop.
const requestTimeout = 10 * time.Second

type Server struct {
	backend  Backend
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

func NewServer(b Backend) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		backend: b,
		engine:  gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local control surface, any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.engine.Use(gin.Recovery(), logRequests)
	api := s.engine.Group("/api")
	api.GET("/state", s.handleGetStates)
	api.GET("/state/*target", s.handleGetState)
	api.PUT("/state/*target", s.handlePutState)
	api.GET("/profile", s.handleGetProfile)
	api.POST("/profile", s.handlePostProfile)
	api.GET("/ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errc := make(chan error, 1)
	go func() {
		zap.S().Infof("Listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	zap.S().Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}

// targetState is the JSON form of one mirrored value.
type targetState struct {
	Target state.Target `json:"target"`
	Value  int32        `json:"value"`
	Known  bool         `json:"known"`
	Db     *float64     `json:"db,omitempty"`
}

func newTargetState(t state.Target, v state.Value) targetState {
	ts := targetState{Target: t, Value: v.Raw, Known: v.Known}
	if t.Kind == state.KindVolume && v.Known {
		db := mapper.VolumeToDb(v.Raw)
		ts.Db = &db
	}
	return ts
}

func (s *Server) handleGetStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected": s.backend.Connected(), "state": s.backend.Snapshot()})
}

func (s *Server) handleGetState(c *gin.Context) {
	t, ok := parseTarget(c)
	if !ok {
		return
	}
	v, err := s.backend.GetState(t)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newTargetState(t, v))
}

func (s *Server) handlePutState(c *gin.Context) {
	t, ok := parseTarget(c)
	if !ok {
		return
	}
	var body struct {
		Value *int32   `json:"value"`
		Db    *float64 `json:"db"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var v int32
	switch {
	case body.Value != nil:
		v = *body.Value
	case body.Db != nil && t.Kind == state.KindVolume:
		v = mapper.DbToVolume(*body.Db)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing value"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	if err := s.backend.SetState(ctx, t, v); err != nil {
		abort(c, err)
		return
	}
	cur, _ := s.backend.GetState(t)
	c.JSON(http.StatusOK, newTargetState(t, cur))
}

// GET /api/profile returns the profile the daemon holds; ?source=device
// reads it back from the hardware first.
func (s *Server) handleGetProfile(c *gin.Context) {
	if c.Query("source") != "device" {
		c.JSON(http.StatusOK, s.backend.Profile())
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	p, err := s.backend.ReadProfile(ctx)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handlePostProfile(c *gin.Context) {
	p := profile.Default()
	if err := c.ShouldBindJSON(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := p.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "errors": messages(err)})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	if err := s.backend.ApplyProfile(ctx, p); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": p.Name})
}

func parseTarget(c *gin.Context) (state.Target, bool) {
	t, err := state.ParseTarget(c.Param("target"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return state.Target{}, false
	}
	return t, true
}

func abort(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error(), "errors": messages(err)})
}

func messages(err error) []string {
	var out []string
	for _, e := range multierr.Errors(err) {
		out = append(out, e.Error())
	}
	return out
}

// statusOf maps daemon errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, mapper.ErrUnknownTarget):
		return http.StatusNotFound
	case errors.Is(err, mapper.ErrReadOnly), errors.Is(err, mapper.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, mapper.ErrProfileInconsistent):
		return http.StatusConflict
	case errors.Is(err, device.ErrDeviceDisconnected), errors.Is(err, daemon.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, device.ErrDeviceTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
