package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bimworks/bimworks-api/services"
)

// heartbeatInterval keeps idle SSE connections from being reaped by proxies
const heartbeatInterval = 30 * time.Second

// StreamOrders handles GET /api/v1/orders/stream - bridges the realtime
// order feed to the browser as Server-Sent Events. One "order-change" event
// is written per feed event until the client disconnects. The stream is a
// refresh hint, not an authoritative delta: clients re-fetch their own
// scoped data on every event.
func StreamOrders(c *gin.Context) {
	feed := services.GetFeedService()
	if feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FEED_UNAVAILABLE",
				"message": "Realtime feed is not available",
			},
		})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STREAMING_UNSUPPORTED",
				"message": "Streaming is not supported",
			},
		})
		return
	}

	events := make(chan services.OrderEvent, 16)
	sub, err := feed.SubscribeToOrders(c.Request.Context(), func(event services.OrderEvent) {
		select {
		case events <- event:
		default:
			// Slow client: drop the event, the next one still triggers a re-fetch
		}
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FEED_UNAVAILABLE",
				"message": "Failed to subscribe to the order feed",
			},
		})
		return
	}
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering
	c.Status(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			flusher.Flush()
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: order-change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
