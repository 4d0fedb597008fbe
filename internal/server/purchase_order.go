package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	purchaseorderdomain "github.com/smallbiznis/procura/internal/purchaseorder/domain"
)

func (s *Server) CreatePurchaseOrder(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req purchaseorderdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseOrderSvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) EditPurchaseOrder(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req purchaseorderdomain.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseOrderSvc.Edit(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssuePurchaseOrder(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.purchaseOrderSvc.Issue(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPurchaseOrderByID(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.purchaseOrderSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPurchaseOrders(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req purchaseorderdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseOrderSvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.PurchaseOrders, "page_info": resp.PageInfo})
}
