package routes

import (
	"github.com/gin-gonic/gin"

	"wardtrack-server/internal/config"
	"wardtrack-server/internal/handlers"
	"wardtrack-server/internal/metrics"
	"wardtrack-server/internal/middleware"
)

// Handlers groups the request handlers the routes dispatch to.
type Handlers struct {
	Scans           *handlers.ScanHandler
	Patients        *handlers.PatientHandler
	LabResults      *handlers.LabResultHandler
	Inconsistencies *handlers.InconsistencyHandler
	Notifications   *handlers.NotificationHandler
	Webhooks        *handlers.WebhookHandler
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, h Handlers, cfg *config.Config) {
	api := router.Group("/api/v1")
	{
		scanRoutes := api.Group("/scans")
		{
			scanRoutes.POST("", h.Scans.RecordScan)
			scanRoutes.GET("", h.Scans.ListScans)
			scanRoutes.GET("/export", h.Scans.ExportScans)
		}

		patientRoutes := api.Group("/patients")
		{
			patientRoutes.POST("", h.Patients.RegisterPatient)
			patientRoutes.GET("/:patientId", h.Patients.GetPatient)
			patientRoutes.POST("/:patientId/discharge", h.Patients.DischargePatient)
			patientRoutes.GET("/:patientId/wristband", h.Patients.GetWristband)
			patientRoutes.GET("/:patientId/lab-results", h.Patients.GetLabResults)
		}

		api.POST("/lab-results", h.LabResults.CreateLabResult)

		inconsistencyRoutes := api.Group("/inconsistencies")
		{
			inconsistencyRoutes.GET("", h.Inconsistencies.ListInconsistencies)
			inconsistencyRoutes.GET("/export", h.Inconsistencies.ExportInconsistencies)
			inconsistencyRoutes.PATCH("/:id/clear", h.Inconsistencies.ClearInconsistency)
		}

		notificationRoutes := api.Group("/notifications")
		{
			notificationRoutes.GET("", h.Notifications.ListNotifications)
			notificationRoutes.PATCH("/:id/clear", h.Notifications.ClearNotification)
		}

		// Database-webhook style triggers, signed by the event publisher.
		webhookRoutes := api.Group("/webhooks")
		webhookRoutes.Use(middleware.WebhookAuth(cfg.Webhook))
		{
			webhookRoutes.POST("/patient-updated", h.Webhooks.PatientUpdated)
			webhookRoutes.POST("/scan-inserted", h.Webhooks.ScanInserted)
		}
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
