package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/services/manufacturing"
)

func (s *Server) createMO(c *gin.Context) {
	var input manufacturing.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	input.CreatedBy = actor(c)

	mo, err := s.app.Manufacturing.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mo)
}

func (s *Server) listMOs(c *gin.Context) {
	filter := models.MOFilter{
		ProductID:    c.Query("product_id"),
		QuotationID:  c.Query("quotation_id"),
		SalesOrderID: c.Query("sales_order_id"),
	}
	if v := c.Query("status"); v != "" {
		status := models.MOStatus(v)
		if !status.Valid() {
			badRequest(c, "unknown status "+v)
			return
		}
		filter.Status = &status
	}

	list, err := s.app.Manufacturing.List(c.Request.Context(), filter, pagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getMO(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	mo, err := s.app.Manufacturing.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mo)
}

func (s *Server) moShortages(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	reqs, err := s.app.Manufacturing.Shortages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requirements": reqs})
}

func (s *Server) moDeletionAudits(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	audits, err := s.app.Manufacturing.DeletionAudits(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits})
}

func (s *Server) startMO(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	mo, err := s.app.Manufacturing.Start(c.Request.Context(), id, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mo)
}

func (s *Server) completeMO(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	done, err := s.app.Manufacturing.MarkComplete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, done)
}

func (s *Server) cancelMO(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	mo, err := s.app.Manufacturing.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mo)
}

type deleteRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) deleteMO(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	var req deleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	audit, err := s.app.Manufacturing.Delete(c.Request.Context(), id, actor(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// ============================================================================
// QUALITY CONTROL
// ============================================================================

func (s *Server) listQC(c *gin.Context) {
	id, ok := pathID(c, "manufacturing order")
	if !ok {
		return
	}

	inspection, err := s.app.Quality.ListForMO(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inspection)
}

func (s *Server) getQC(c *gin.Context) {
	id, ok := pathID(c, "quality control record")
	if !ok {
		return
	}

	rec, err := s.app.Quality.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type decisionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (s *Server) acceptQC(c *gin.Context) {
	s.decideQC(c, true)
}

func (s *Server) rejectQC(c *gin.Context) {
	s.decideQC(c, false)
}

func (s *Server) decideQC(c *gin.Context, accept bool) {
	id, ok := pathID(c, "quality control record")
	if !ok {
		return
	}

	inspector := c.GetHeader(HeaderUserID)
	if inspector == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": HeaderUserID + " header is required"})
		return
	}

	var req decisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	var (
		d   any
		err error
	)
	if accept {
		d, err = s.app.Quality.Accept(c.Request.Context(), id, inspector, req.Notes)
	} else {
		d, err = s.app.Quality.Reject(c.Request.Context(), id, inspector, req.Reason)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
