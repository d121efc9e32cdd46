package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantops/plantops/internal/services/sales"
)

func (s *Server) createQuotation(c *gin.Context) {
	var input sales.CreateQuotationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	q, err := s.app.Sales.CreateQuotation(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (s *Server) getQuotation(c *gin.Context) {
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	q, err := s.app.Sales.GetQuotation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) sendQuotation(c *gin.Context) {
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	q, err := s.app.Sales.Send(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type acceptRequest struct {
	CreateMO bool `json:"create_mo"`
}

func (s *Server) acceptQuotation(c *gin.Context) {
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	var req acceptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	acc, err := s.app.Sales.Accept(c.Request.Context(), id, req.CreateMO, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (s *Server) rejectQuotation(c *gin.Context) {
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	closure, err := s.app.Sales.Reject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, closure)
}

func (s *Server) expireQuotation(c *gin.Context) {
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	closure, err := s.app.Sales.Expire(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, closure)
}

func (s *Server) convertQuotation(c *gin.Context) {
	id, ok := pathID(c, "quotation")
	if !ok {
		return
	}

	so, err := s.app.Sales.ConvertToSalesOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, so)
}

func (s *Server) getSalesOrder(c *gin.Context) {
	id, ok := pathID(c, "sales order")
	if !ok {
		return
	}

	so, err := s.app.Sales.GetSalesOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, so)
}

func (s *Server) confirmSalesOrder(c *gin.Context) {
	id, ok := pathID(c, "sales order")
	if !ok {
		return
	}

	so, err := s.app.Sales.ConfirmSalesOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, so)
}

func (s *Server) shipSalesOrder(c *gin.Context) {
	id, ok := pathID(c, "sales order")
	if !ok {
		return
	}

	closure, err := s.app.Sales.OnShipment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, closure)
}

func (s *Server) cancelSalesOrder(c *gin.Context) {
	id, ok := pathID(c, "sales order")
	if !ok {
		return
	}

	closure, err := s.app.Sales.CancelSalesOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, closure)
}
