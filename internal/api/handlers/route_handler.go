package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/models"
)

// CreateRoute handles POST /kubeapi/routes. Routes are attached to servers
// through the server spec; this endpoint only validates and echoes a route.
func CreateRoute(c *gin.Context) {
	var route models.RouteItem
	if err := c.ShouldBindJSON(&route); err != nil {
		respondBindError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"route-name": route.Name,
		"spec":       route,
	})
}
