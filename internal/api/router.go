// Package api exposes the orchestrators to local UIs over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"duck/internal/connection"
	"duck/internal/engine"
	"duck/internal/events"
	"duck/internal/latency"
	"duck/internal/mode"
	"duck/internal/tray"
	apperrors "duck/pkg/errors"
)

// ModeStore reads and writes the persisted connection mode.
type ModeStore interface {
	Get() mode.ConnectionMode
	Set(raw string) (mode.ConnectionMode, error)
}

// Toggler runs connection transitions.
type Toggler interface {
	Toggle(ctx context.Context) *connection.Task
	Disconnect(ctx context.Context) *connection.Task
	Apply(ctx context.Context) *connection.Task
}

// Selector reads and switches the selector group.
type Selector interface {
	Lookup(ctx context.Context) (*connection.ProxySelector, error)
	SetCurrentProxy(ctx context.Context, group, proxy string) error
}

// LatencyTester tests a batch of proxies.
type LatencyTester interface {
	TestBatch(ctx context.Context, proxies []string, progress latency.ProgressFunc) *latency.BatchResult
}

// Deps are the collaborators behind the routes. Tester and Menu may be nil.
// Every route except /health requires Secret as a bearer token; with an
// empty Secret those routes answer 401. Browser requests are only served
// for origins listed in AllowedOrigins.
type Deps struct {
	Modes          ModeStore
	Toggler        Toggler
	Selector       Selector
	Connectivity   connection.Connectivity
	Bus            *events.Bus
	Tester         LatencyTester
	Menu           *tray.Menu
	Secret         string
	AllowedOrigins []string
}

type Router struct {
	deps Deps
}

// NewRouter builds the gin engine serving the control API.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := &Router{deps: d}
	engine := gin.New()
	engine.Use(gin.Recovery())
	r.register(engine)
	return engine
}

// originGuard rejects browser requests from origins outside allowed and
// answers CORS preflights for the rest. Requests without an Origin header
// come from local tools and pass through.
func originGuard(allowed []string) gin.HandlerFunc {
	ok := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		ok[strings.TrimSuffix(o, "/")] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !ok[origin] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Cache-Control")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireToken checks the bearer token. EventSource cannot set headers, so
// the stream route also accepts it as ?token=.
func requireToken(secret string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found && allowQuery {
			token = c.Query("token")
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid api token"})
			return
		}
		c.Next()
	}
}

func (r *Router) register(engine *gin.Engine) {
	engine.Use(originGuard(r.deps.AllowedOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})
	engine.GET("/events", requireToken(r.deps.Secret, true), r.streamEvents)

	authed := engine.Group("", requireToken(r.deps.Secret, false))
	authed.GET("/mode", r.getMode)
	authed.PUT("/mode", r.setMode)

	conn := authed.Group("/connection")
	{
		conn.GET("", r.getConnection)
		conn.POST("/toggle", r.toggle)
		conn.POST("/disconnect", r.disconnect)
	}

	sel := authed.Group("/selector")
	{
		sel.GET("", r.getSelector)
		sel.PUT("/proxy", r.setProxy)
		sel.POST("/test", r.testSelector)
	}

	authed.GET("/tray", r.getTray)
	authed.GET("/tray/stream", r.streamTray)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (r *Router) handleError(c *gin.Context, err error) {
	var apiErr *engine.APIError
	var svcErr *apperrors.ServiceError
	switch {
	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Error()})
	case errors.As(err, &svcErr), errors.Is(err, apperrors.ErrEngineNotRunning):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrSelectorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
