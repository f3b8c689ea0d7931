package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"veritariff/tariffengine/internal/logging"
)

// NewRouter builds the gin.Engine, following
// order_service/main.go's initHTTPServer/setupRoutes composition.
func NewRouter(environment string, log *logging.Logger, shipments *ShipmentController, taricCtl *TaricController) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(log))

	router.GET("/health", shipments.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		shipmentRoutes := v1.Group("/shipments")
		{
			shipmentRoutes.POST("", shipments.CreateShipment)
			shipmentRoutes.GET("/:shipment_id", shipments.GetShipment)
			shipmentRoutes.POST("/:shipment_id/items", shipments.AddItem)
			shipmentRoutes.PUT("/:shipment_id/costs", shipments.SetCosts)
			shipmentRoutes.POST("/:shipment_id/calculate", shipments.Calculate)
		}
		v1.GET("/taric/resolve", taricCtl.Resolve)
	}

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func loggingMiddleware(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		)
		c.Header("X-Response-Time", duration.String())
		c.Header("X-Service", "tariffengine")
	}
}
