package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/plantops/plantops/internal/models"
	"github.com/plantops/plantops/internal/services/catalog"
	"github.com/plantops/plantops/internal/services/reservations"
)

func (s *Server) createProduct(c *gin.Context) {
	var input catalog.CreateProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	input.CreatedBy = actor(c)

	p, err := s.app.Catalog.CreateProduct(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listProducts(c *gin.Context) {
	list, err := s.app.Catalog.ListProducts(c.Request.Context(), pagination(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getProduct(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	p, err := s.app.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) checkAvailability(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	qty, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		badRequest(c, "quantity must be a decimal number")
		return
	}

	a, err := s.app.BOM.CheckAvailability(c.Request.Context(), id, qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) availableToPromise(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	a, err := s.app.Reservations.AvailableToPromise(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) listProductReservations(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	list, err := s.app.Reservations.ListForProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": list})
}

func (s *Server) listBOM(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	lines, err := s.app.Catalog.ListBOM(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (s *Server) addBOMLine(c *gin.Context) {
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	var input catalog.AddBOMLineInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	input.ProductID = id

	line, err := s.app.Catalog.AddBOMLine(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (s *Server) removeBOMLine(c *gin.Context) {
	id, ok := pathID(c, "bom line")
	if !ok {
		return
	}

	if err := s.app.Catalog.RemoveBOMLine(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createRawMaterial(c *gin.Context) {
	var input catalog.CreateRawMaterialInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	input.CreatedBy = actor(c)

	m, err := s.app.Catalog.CreateRawMaterial(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) listRawMaterials(c *gin.Context) {
	list, err := s.app.Catalog.ListRawMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raw_materials": list})
}

func (s *Server) getRawMaterial(c *gin.Context) {
	id, ok := pathID(c, "raw material")
	if !ok {
		return
	}

	m, err := s.app.Catalog.GetRawMaterial(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ============================================================================
// RESERVATIONS
// ============================================================================

func (s *Server) createReservation(c *gin.Context) {
	var input reservations.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := s.app.Reservations.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) getReservation(c *gin.Context) {
	id, ok := pathID(c, "reservation")
	if !ok {
		return
	}

	res, err := s.app.Reservations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type statusRequest struct {
	Status models.ReservationStatus `json:"status"`
}

func (s *Server) setReservationStatus(c *gin.Context) {
	id, ok := pathID(c, "reservation")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := s.app.Reservations.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
