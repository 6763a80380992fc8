package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mls-delivery/internal/services"
	"mls-delivery/internal/transport/httpdto"
)

type KeyPackageHandler struct {
	service *services.KeyPackageService
}

func NewKeyPackageHandler(service *services.KeyPackageService) *KeyPackageHandler {
	return &KeyPackageHandler{service: service}
}

func (h *KeyPackageHandler) Publish(c *gin.Context) {
	var req httpdto.PublishKeyPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid client_id", "INVALID_REQUEST"))
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid data", "INVALID_REQUEST"))
		return
	}
	kp, err := h.service.Publish(c.Request.Context(), clientID, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromKeyPackage(kp)))
}

func (h *KeyPackageHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	kp, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromKeyPackage(kp)))
}

func (h *KeyPackageHandler) ListByClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Query("client_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid client_id", "INVALID_REQUEST"))
		return
	}
	kps, err := h.service.List(c.Request.Context(), clientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromKeyPackages(kps)))
}

// Reserve atomically consumes a key package: concurrent reservations of the
// same id see exactly one success.
func (h *KeyPackageHandler) Reserve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid id", "INVALID_REQUEST"))
		return
	}
	data, err := h.service.Reserve(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ReservedKeyPackageResponse{
		ID:   id.String(),
		Data: base64.StdEncoding.EncodeToString(data),
	}))
}
