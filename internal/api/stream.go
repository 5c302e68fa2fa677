package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"duck/internal/events"
	"duck/internal/tray"
)

// streamBuffer is how many events a slow client may lag behind before
// events are dropped for it.
const streamBuffer = 64

// streamEvents relays bus events as server-sent events until the client
// goes away.
func (r *Router) streamEvents(c *gin.Context) {
	if r.deps.Bus == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "event stream is not configured"})
		return
	}

	ch := make(chan events.Event, streamBuffer)
	unsubscribe := r.deps.Bus.Subscribe(events.ChannelSink(ch))
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev := <-ch:
			c.SSEvent(ev.Name, ev)
			return true
		}
	})
}

// streamTray pushes every rebuilt tray menu, starting with the current one,
// so a tray host can redraw without polling.
func (r *Router) streamTray(c *gin.Context) {
	if r.deps.Menu == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "tray is not configured"})
		return
	}

	ch := make(chan tray.Model, 1)
	remove := r.deps.Menu.Observe(func(m tray.Model) {
		// Only the newest menu matters to a lagging client.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- m:
		default:
		}
	})
	defer remove()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("menu", r.deps.Menu.Current())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case m := <-ch:
			c.SSEvent("menu", m)
			return true
		}
	})
}
