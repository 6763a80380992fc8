package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mls-delivery/internal/services"
	"mls-delivery/internal/transport/httpdto"
)

type GroupHandler struct {
	service *services.GroupService
}

func NewGroupHandler(service *services.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	creatorID, err := uuid.Parse(req.CreatorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid creator_id", "INVALID_REQUEST"))
		return
	}
	state, err := base64.StdEncoding.DecodeString(req.InitialState)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid initial_state", "INVALID_REQUEST"))
		return
	}
	group, err := h.service.Create(c.Request.Context(), creatorID, state)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromGroup(group)))
}

func (h *GroupHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	group, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(group)))
}

// List supports filtering by member or creator; member_id takes precedence.
func (h *GroupHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("member_id"); raw != "" {
		memberID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid member_id", "INVALID_REQUEST"))
			return
		}
		groups, err := h.service.ListByMember(ctx, memberID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroups(groups)))
		return
	}
	creatorID, err := uuid.Parse(c.Query("creator_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("member_id or creator_id required", "INVALID_REQUEST"))
		return
	}
	groups, err := h.service.ListByCreator(ctx, creatorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroups(groups)))
}

func (h *GroupHandler) AdvanceEpoch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.AdvanceEpochRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	state, err := base64.StdEncoding.DecodeString(req.NewState)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid new_state", "INVALID_REQUEST"))
		return
	}
	epoch, err := h.service.AdvanceEpoch(c.Request.Context(), id, req.ExpectedEpoch, state)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AdvanceEpochResponse{
		GroupID: id.String(),
		Epoch:   epoch,
	}))
}

func (h *GroupHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
