package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/models"
	"github.com/bimworks/bimworks-api/services"
)

// RelayNotificationRequest is the body accepted by the notification relay.
// customerData is optional; orderData is not.
type RelayNotificationRequest struct {
	OrderData    *models.Order   `json:"orderData"`
	CustomerData *models.Profile `json:"customerData"`
}

// relayCORSHeaders are applied to every relay response so browser clients on
// any origin can call the relay instead of the webhook itself
func relayCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
}

// RelayNotification handles /relay-notification. It holds the webhook secret
// server-side and forwards the formatted notification on behalf of browser
// clients. Registered for all methods: OPTIONS answers the CORS preflight,
// POST relays, everything else is 405.
func RelayNotification(c *gin.Context) {
	relayCORSHeaders(c)

	switch c.Request.Method {
	case http.MethodOptions:
		c.Status(http.StatusOK)
		return
	case http.MethodPost:
		// handled below
	default:
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "Method Not Allowed",
		})
		return
	}

	var req RelayNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderData == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Order data is required",
		})
		return
	}

	slackService := services.NewSlackService(config.GetConfig())
	if !slackService.IsConfigured() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Slack webhook not configured",
		})
		return
	}

	if !slackService.SendOrderNotification(req.OrderData, req.CustomerData) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to send Slack notification",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Slack notification sent successfully",
	})
}
