package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/services/ledger"
)

func (s *Server) inventoryHistory(c *gin.Context) {
	filter := models.TransactionFilter{
		ItemKind:      models.ItemKind(c.Query("item_kind")),
		ItemID:        c.Query("item_id"),
		ReferenceType: c.Query("reference_type"),
		ReferenceID:   c.Query("reference_id"),
	}
	if v := c.Query("type"); v != "" {
		typ := models.TransactionType(v)
		if !typ.Valid() {
			badRequest(c, "unknown transaction type "+v)
			return
		}
		filter.Type = &typ
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.StartDate}, {"to", &filter.EndDate}} {
		v := c.Query(q.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, q.name+" must be an RFC3339 timestamp")
			return
		}
		*q.dst = &t
	}

	list, err := s.app.Ledger.History(c.Request.Context(), filter, pagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adjustStock(c *gin.Context) {
	var adj ledger.Adjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	adj.CreatedBy = actor(c)

	res, err := s.app.Ledger.Adjust(c.Request.Context(), adj)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) reconcile(c *gin.Context) {
	id, ok := pathID(c, "item")
	if !ok {
		return
	}

	rec, err := s.app.Ledger.Reconcile(c.Request.Context(), models.ItemKind(c.Param("kind")), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec, "balanced": rec.Balanced()})
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================

const defaultNotificationLimit = 50

func (s *Server) listNotifications(c *gin.Context) {
	userID := c.GetHeader(HeaderUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": HeaderUserID + " header is required"})
		return
	}

	limit := defaultNotificationLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	unread := c.Query("unread") == "true"

	list, err := s.app.Notifications.ListForUser(c.Request.Context(), userID, unread, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "notification")
	if !ok {
		return
	}

	userID := c.GetHeader(HeaderUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": HeaderUserID + " header is required"})
		return
	}

	if err := s.app.Notifications.MarkRead(c.Request.Context(), userID, id, s.app.Clock.Now()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
