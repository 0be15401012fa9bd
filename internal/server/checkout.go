package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tokenworks/tokenledger/internal/checkout"
)

func (s *Server) ListCheckoutPacks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packs": s.checkoutSvc.Packs()})
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req checkout.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.checkoutSvc.CreateSession(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}
