package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mls-delivery/internal/services"
	"mls-delivery/internal/transport/httpdto"
)

type MembershipHandler struct {
	service *services.MembershipService
}

func NewMembershipHandler(service *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{service: service}
}

func (h *MembershipHandler) AddMember(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid group id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid client_id", "INVALID_REQUEST"))
		return
	}
	var keyPackageID *uuid.UUID
	if req.KeyPackageID != "" {
		kpID, err := uuid.Parse(req.KeyPackageID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid key_package_id", "INVALID_REQUEST"))
			return
		}
		keyPackageID = &kpID
	}
	m, err := h.service.AddMember(c.Request.Context(), groupID, clientID, req.Role, keyPackageID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMembership(m)))
}

func (h *MembershipHandler) Remove(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	m, err := h.service.RemoveMember(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMembership(m)))
}

func (h *MembershipHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMembership(m)))
}

func (h *MembershipHandler) ListByGroup(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid group id", "INVALID_REQUEST"))
		return
	}
	ms, err := h.service.ListByGroup(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMemberships(ms)))
}

func (h *MembershipHandler) ListByClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Query("client_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid client_id", "INVALID_REQUEST"))
		return
	}
	ms, err := h.service.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMemberships(ms)))
}

// ActiveRecipients reports the delivery set for a group as of an epoch; the
// epoch defaults to 0 meaning "members present since genesis".
func (h *MembershipHandler) ActiveRecipients(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid group id", "INVALID_REQUEST"))
		return
	}
	var asOfEpoch uint64
	if raw := c.Query("as_of_epoch"); raw != "" {
		asOfEpoch, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid as_of_epoch", "INVALID_REQUEST"))
			return
		}
	}
	recipients, err := h.service.ActiveRecipients(c.Request.Context(), groupID, asOfEpoch)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := httpdto.ActiveRecipientsResponse{
		GroupID:    groupID.String(),
		AsOfEpoch:  asOfEpoch,
		Recipients: make([]string, 0, len(recipients)),
	}
	for _, r := range recipients {
		resp.Recipients = append(resp.Recipients, r.String())
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
