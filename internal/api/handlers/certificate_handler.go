package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/services"
)

type CertificateHandler struct {
	service *services.CertificateService
}

func NewCertificateHandler(service *services.CertificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

func (h *CertificateHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/", h.Create)
	group.GET("/", h.List)
	group.GET("/:namespace", h.List)
	group.DELETE("/", h.Delete)
}

// Create handles POST /kubeapi/certs
func (h *CertificateHandler) Create(c *gin.Context) {
	var req models.CertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": []models.CertificateItem{item}})
}

// List handles GET /kubeapi/certs and GET /kubeapi/certs/:namespace
func (h *CertificateHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Param("namespace"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Delete handles DELETE /kubeapi/certs?name=
func (h *CertificateHandler) Delete(c *gin.Context) {
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
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("TLS secret %s deleted from namespace %s", item.Name, item.Namespace)})
}
