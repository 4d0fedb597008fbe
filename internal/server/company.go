package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	companydomain "github.com/smallbiznis/procura/internal/company/domain"
)

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (s *Server) CreateCompany(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req companydomain.CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.companySvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCompany(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	resp, err := s.companySvc.Get(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMembers(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	resp, err := s.companySvc.ListMembers(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InviteMember(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req companydomain.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.companySvc.Invite(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListInvitations(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	resp, err := s.companySvc.ListInvitations(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}

	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.companySvc.AcceptInvitation(c.Request.Context(), actor, req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
