package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/services"
)

type OidcHandler struct {
	service *services.OidcService
}

func NewOidcHandler(service *services.OidcService) *OidcHandler {
	return &OidcHandler{service: service}
}

// List handles GET /kubeapi/oidc
func (h *OidcHandler) List(c *gin.Context) {
	policies, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policies})
}
