package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/railboard/railctl/internal/history"
	"github.com/railboard/railctl/internal/metrics"
	"github.com/railboard/railctl/internal/status"
)

// Router exposes the status reporter over HTTP for dashboards and scrapers.
// Endpoints:
//   GET {basePath}/status         fresh snapshot, query: detailed=1
//   GET {basePath}/history        query: service=...&limit=N (journal optional)
//   GET {basePath}/metrics        Prometheus exposition
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	reporter *status.Reporter
	journal  *history.Journal
	opts     status.Options
	basePath string
}

// NewRouter constructs a Router. journal may be nil; the history endpoint
// then answers 404.
func NewRouter(reporter *status.Reporter, journal *history.Journal, opts status.Options, basePath string) *Router {
	return &Router{
		reporter: reporter,
		journal:  journal,
		opts:     opts,
		basePath: sanitizeBase(basePath),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/history", r.handleHistory)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via http.Server's Shutdown or Close.
func NewServer(addr string, router *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleStatus(c *gin.Context) {
	opts := r.opts
	if c.Query("detailed") == "1" || c.Query("detailed") == "true" {
		opts.Detailed = true
	}
	snap, err := r.reporter.Report(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.journal == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "history not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var (
		events []history.Event
		err    error
	)
	if svc := c.Query("service"); svc != "" {
		events, err = r.journal.RecentByService(c.Request.Context(), svc, limit)
	} else {
		events, err = r.journal.Recent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
