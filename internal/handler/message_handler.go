package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mls-delivery/internal/services"
	"mls-delivery/internal/transport/httpdto"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) StoreProposal(c *gin.Context) {
	var req httpdto.StoreProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	groupID, senderID, payload, ok := parseStoreCommon(c, req.GroupID, req.SenderID, req.Payload)
	if !ok {
		return
	}
	m, err := h.service.StoreProposal(c.Request.Context(), groupID, senderID, payload, req.ProposalType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m)))
}

func (h *MessageHandler) StoreCommit(c *gin.Context) {
	var req httpdto.StoreCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	groupID, senderID, payload, ok := parseStoreCommon(c, req.GroupID, req.SenderID, req.Payload)
	if !ok {
		return
	}
	m, err := h.service.StoreCommit(c.Request.Context(), groupID, senderID, payload, req.Epoch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m)))
}

func (h *MessageHandler) StoreWelcome(c *gin.Context) {
	var req httpdto.StoreWelcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	groupID, senderID, payload, ok := parseStoreCommon(c, req.GroupID, req.SenderID, req.Payload)
	if !ok {
		return
	}
	recipients := make([]uuid.UUID, 0, len(req.Recipients))
	for _, raw := range req.Recipients {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recipient id", "INVALID_REQUEST"))
			return
		}
		recipients = append(recipients, id)
	}
	m, err := h.service.StoreWelcome(c.Request.Context(), groupID, senderID, payload, recipients)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(m)))
}

func (h *MessageHandler) Fetch(c *gin.Context) {
	var req httpdto.FetchMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid client_id", "INVALID_REQUEST"))
		return
	}
	var groupID *uuid.UUID
	if req.GroupID != "" {
		gID, err := uuid.Parse(req.GroupID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid group_id", "INVALID_REQUEST"))
			return
		}
		groupID = &gID
	}
	msgs, err := h.service.Fetch(c.Request.Context(), clientID, groupID, req.IncludeRead)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMessages(msgs)))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req httpdto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid client_id", "INVALID_REQUEST"))
		return
	}
	ids := make([]uuid.UUID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
			return
		}
		ids = append(ids, id)
	}
	if err := h.service.MarkRead(c.Request.Context(), clientID, ids); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{Marked: len(ids)}))
}

func parseStoreCommon(c *gin.Context, rawGroup, rawSender, rawPayload string) (groupID, senderID uuid.UUID, payload []byte, ok bool) {
	var err error
	groupID, err = uuid.Parse(rawGroup)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid group_id", "INVALID_REQUEST"))
		return
	}
	senderID, err = uuid.Parse(rawSender)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid sender_id", "INVALID_REQUEST"))
		return
	}
	payload, err = base64.StdEncoding.DecodeString(rawPayload)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid payload", "INVALID_REQUEST"))
		return
	}
	ok = true
	return
}
