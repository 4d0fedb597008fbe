package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	purchaserequestdomain "github.com/smallbiznis/procura/internal/purchaserequest/domain"
)

type approvePurchaseRequestRequest struct {
	Comment string `json:"comment"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreatePurchaseRequest(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req purchaserequestdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseRequestSvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) EditPurchaseRequest(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req purchaserequestdomain.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseRequestSvc.Edit(c.Request.Context(), actor, id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitPurchaseRequest(c *gin.Context) {
	s.purchaseRequestAction(c, s.purchaseRequestSvc.Submit)
}

func (s *Server) ReviewPurchaseRequest(c *gin.Context) {
	s.purchaseRequestAction(c, s.purchaseRequestSvc.Review)
}

func (s *Server) ApprovePurchaseRequest(c *gin.Context) {
	var req approvePurchaseRequestRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	s.purchaseRequestAction(c, func(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*purchaserequestdomain.PurchaseRequest, error) {
		return s.purchaseRequestSvc.Approve(ctx, actor, id, req.Comment)
	})
}

func (s *Server) RejectPurchaseRequest(c *gin.Context) {
	var req rejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	s.purchaseRequestAction(c, func(ctx context.Context, actor identitydomain.Actor, id snowflake.ID) (*purchaserequestdomain.PurchaseRequest, error) {
		return s.purchaseRequestSvc.Reject(ctx, actor, id, req.Reason)
	})
}

func (s *Server) purchaseRequestAction(c *gin.Context, apply func(context.Context, identitydomain.Actor, snowflake.ID) (*purchaserequestdomain.PurchaseRequest, error)) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := apply(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPurchaseRequestByID(c *gin.Context) {
	s.purchaseRequestAction(c, s.purchaseRequestSvc.Get)
}

func (s *Server) ListPurchaseRequests(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req purchaserequestdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseRequestSvc.List(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.PurchaseRequests, "page_info": resp.PageInfo})
}

func (s *Server) ListPurchaseRequestApprovals(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := s.purchaseRequestSvc.ListApprovals(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
