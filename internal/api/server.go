// Package api exposes the production engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plantops/plantops/internal/app"
	"github.com/plantops/plantops/internal/models"
)

// HeaderUserID carries the acting user. Authentication happens upstream.
const HeaderUserID = "X-User-ID"

// HeaderRequestID correlates log lines of one request.
const HeaderRequestID = "X-Request-ID"

// Server routes HTTP requests to the engine services.
type Server struct {
	app *app.App
}

// NewRouter builds the gin engine serving every endpoint.
func NewRouter(a *app.App) *gin.Engine {
	s := &Server{app: a}

	r := gin.New()
	r.Use(requestID(), requestLogger(), gin.Recovery())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	r.GET("/healthz", s.health)

	v1 := r.Group("/api/v1")

	products := v1.Group("/products")
	products.POST("", s.createProduct)
	products.GET("", s.listProducts)
	products.GET("/:id", s.getProduct)
	products.GET("/:id/availability", s.checkAvailability)
	products.GET("/:id/atp", s.availableToPromise)
	products.GET("/:id/reservations", s.listProductReservations)
	products.GET("/:id/bom", s.listBOM)
	products.POST("/:id/bom", s.addBOMLine)

	v1.POST("/raw-materials", s.createRawMaterial)
	v1.GET("/raw-materials", s.listRawMaterials)
	v1.GET("/raw-materials/:id", s.getRawMaterial)
	v1.DELETE("/bom-lines/:id", s.removeBOMLine)

	v1.POST("/reservations", s.createReservation)
	v1.GET("/reservations/:id", s.getReservation)
	v1.PUT("/reservations/:id/status", s.setReservationStatus)

	mos := v1.Group("/manufacturing-orders")
	mos.POST("", s.createMO)
	mos.GET("", s.listMOs)
	mos.GET("/:id", s.getMO)
	mos.GET("/:id/shortages", s.moShortages)
	mos.GET("/:id/quality-control", s.listQC)
	mos.GET("/:id/deletion-audits", s.moDeletionAudits)
	mos.POST("/:id/start", s.startMO)
	mos.POST("/:id/complete", s.completeMO)
	mos.POST("/:id/cancel", s.cancelMO)
	mos.DELETE("/:id", s.deleteMO)

	v1.GET("/quality-control/:id", s.getQC)
	v1.POST("/quality-control/:id/accept", s.acceptQC)
	v1.POST("/quality-control/:id/reject", s.rejectQC)

	quotations := v1.Group("/quotations")
	quotations.POST("", s.createQuotation)
	quotations.GET("/:id", s.getQuotation)
	quotations.POST("/:id/send", s.sendQuotation)
	quotations.POST("/:id/accept", s.acceptQuotation)
	quotations.POST("/:id/reject", s.rejectQuotation)
	quotations.POST("/:id/expire", s.expireQuotation)
	quotations.POST("/:id/convert", s.convertQuotation)

	orders := v1.Group("/sales-orders")
	orders.GET("/:id", s.getSalesOrder)
	orders.POST("/:id/confirm", s.confirmSalesOrder)
	orders.POST("/:id/ship", s.shipSalesOrder)
	orders.POST("/:id/cancel", s.cancelSalesOrder)

	inventory := v1.Group("/inventory")
	inventory.GET("/transactions", s.inventoryHistory)
	inventory.POST("/adjustments", s.adjustStock)
	inventory.GET("/reconcile/:kind/:id", s.reconcile)

	v1.GET("/notifications", s.listNotifications)
	v1.POST("/notifications/:id/read", s.markNotificationRead)

	return r
}

func (s *Server) health(c *gin.Context) {
	if err := s.app.DB.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "http request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// actor returns the acting user, or nil when the header is absent.
func actor(c *gin.Context) *string {
	if id := c.GetHeader(HeaderUserID); id != "" {
		return &id
	}
	return nil
}

func pagination(c *gin.Context) models.Pagination {
	page := models.DefaultPagination()
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		page.PageSize = v
	}
	return page
}
