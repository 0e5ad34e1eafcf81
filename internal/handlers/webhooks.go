package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wardtrack-server/internal/events"
	"wardtrack-server/internal/utils"
)

// WebhookHandler receives row-change events and runs the notification rules.
type WebhookHandler struct {
	handler events.Handler
	logger  *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(handler events.Handler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{handler: handler, logger: logger}
}

// PatientUpdated handles a patients row update.
func (h *WebhookHandler) PatientUpdated(c *gin.Context) {
	h.receive(c, events.TablePatients)
}

// ScanInserted handles a ward_scan_logs row insert.
func (h *WebhookHandler) ScanInserted(c *gin.Context) {
	h.receive(c, events.TableScanLogs)
}

// receive acknowledges every parseable event for table, whether or not a rule fired.
func (h *WebhookHandler) receive(c *gin.Context, table string) {
	var ev events.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		utils.BadRequest(c, "Invalid webhook payload: "+err.Error())
		return
	}
	if ev.Table != table {
		utils.BadRequest(c, "Unexpected table "+ev.Table)
		return
	}
	if err := h.handler.Handle(c.Request.Context(), ev); err != nil {
		h.logger.Warn("Webhook event rejected",
			zap.String("table", ev.Table),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		utils.BadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
