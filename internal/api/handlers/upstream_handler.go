package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/services"
)

type UpstreamHandler struct {
	service *services.UpstreamService
}

func NewUpstreamHandler(service *services.UpstreamService) *UpstreamHandler {
	return &UpstreamHandler{service: service}
}

func (h *UpstreamHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/", h.List)
	group.GET("/:namespace", h.List)
	group.POST("/", h.Create)
	group.PUT("/:name", h.Update)
	group.DELETE("/", h.Delete)
}

// List handles GET /kubeapi/upstreams and GET /kubeapi/upstreams/:namespace
func (h *UpstreamHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Param("namespace"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Create handles POST /kubeapi/upstreams
func (h *UpstreamHandler) Create(c *gin.Context) {
	var req models.UpstreamCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("upstream %s created in namespace %s", req.Name, req.Namespace)})
}

// Update handles PUT /kubeapi/upstreams/:name
func (h *UpstreamHandler) Update(c *gin.Context) {
	var req models.UpstreamUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.service.Update(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("upstream %s in namespace %s updated", item.Name, item.Namespace),
		"data":    item,
	})
}

// Delete handles DELETE /kubeapi/upstreams?name=
func (h *UpstreamHandler) Delete(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		respondError(c, errMissingName)
		return
	}

	item, err := h.service.Delete(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("upstream %s deleted from namespace %s", item.Name, item.Namespace)})
}
