package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/services"
)

type ServerHandler struct {
	service *services.ServerService
}

func NewServerHandler(service *services.ServerService) *ServerHandler {
	return &ServerHandler{service: service}
}

func (h *ServerHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/", h.List)
	group.GET("/:namespace", h.List)
	group.POST("/", h.Create)
	group.PUT("/:name", h.Update)
	group.DELETE("/", h.Delete)
}

// List handles GET /kubeapi/servers and GET /kubeapi/servers/:namespace
func (h *ServerHandler) List(c *gin.Context) {
	servers, err := h.service.List(c.Request.Context(), c.Param("namespace"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": servers})
}

// Create handles POST /kubeapi/servers
func (h *ServerHandler) Create(c *gin.Context) {
	var req models.CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	server, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("virtual server %s created in namespace %s", server.Metadata.Name, server.Metadata.Namespace),
		"data":    server,
	})
}

// Update handles PUT /kubeapi/servers/:name with a VirtualServer spec body.
func (h *ServerHandler) Update(c *gin.Context) {
	var spec models.VirtualServerSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		respondBindError(c, err)
		return
	}

	server, err := h.service.Update(c.Request.Context(), c.Param("name"), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("virtual server %s in namespace %s updated", server.Metadata.Name, server.Metadata.Namespace),
		"data":    server,
	})
}

// Delete handles DELETE /kubeapi/servers?name=
func (h *ServerHandler) Delete(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		respondError(c, errMissingName)
		return
	}

	meta, err := h.service.Delete(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("virtual server %s deleted from namespace %s", meta.Name, meta.Namespace)})
}
