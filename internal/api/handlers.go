package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"duck/internal/connection"
)

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type proxyRequest struct {
	Group string `json:"group" binding:"required"`
	Proxy string `json:"proxy" binding:"required"`
}

func (r *Router) getMode(c *gin.Context) {
	m := r.deps.Modes.Get()
	c.JSON(http.StatusOK, gin.H{"mode": m.Lower()})
}

func (r *Router) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := r.deps.Modes.Set(req.Mode)
	if err != nil {
		r.handleError(c, err)
		return
	}
	// ?apply=true re-applies the flags of the new mode to a live connection.
	if apply, _ := strconv.ParseBool(c.Query("apply")); apply {
		if err := r.deps.Toggler.Apply(c.Request.Context()).Wait(); err != nil {
			r.handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"mode": m.Lower(), "connected": r.deps.Connectivity.IsConnected()})
}

func (r *Router) getConnection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected": r.deps.Connectivity.IsConnected(),
		"mode":      r.deps.Modes.Get().Lower(),
	})
}

func (r *Router) toggle(c *gin.Context) {
	r.runTask(c, r.deps.Toggler.Toggle(c.Request.Context()))
}

func (r *Router) disconnect(c *gin.Context) {
	r.runTask(c, r.deps.Toggler.Disconnect(c.Request.Context()))
}

// runTask answers 202 straight away unless ?wait=true asks to block until
// the transition finishes.
func (r *Router) runTask(c *gin.Context, task *connection.Task) {
	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !wait {
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
		return
	}
	if err := task.Wait(); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": r.deps.Connectivity.IsConnected()})
}

func (r *Router) getSelector(c *gin.Context) {
	sel, err := r.deps.Selector.Lookup(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sel)
}

func (r *Router) setProxy(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := r.deps.Selector.SetCurrentProxy(c.Request.Context(), req.Group, req.Proxy); err != nil {
		r.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": req.Group, "proxy": req.Proxy})
}

func (r *Router) testSelector(c *gin.Context) {
	if r.deps.Tester == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "latency testing is not configured"})
		return
	}
	sel, err := r.deps.Selector.Lookup(c.Request.Context())
	if err != nil {
		r.handleError(c, err)
		return
	}
	batch := r.deps.Tester.TestBatch(c.Request.Context(), sel.Proxies, nil)
	c.JSON(http.StatusOK, gin.H{"group": sel.Name, "batch": batch})
}

func (r *Router) getTray(c *gin.Context) {
	if r.deps.Menu == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "tray is not configured"})
		return
	}
	c.JSON(http.StatusOK, r.deps.Menu.Current())
}
