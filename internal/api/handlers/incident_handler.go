package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/services"
)

type IncidentHandler struct {
	service *services.IncidentService
}

func NewIncidentHandler(service *services.IncidentService) *IncidentHandler {
	return &IncidentHandler{service: service}
}

func (h *IncidentHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/", h.List)
	group.POST("/reconcile", h.Reconcile)
}

// List handles GET /kubeapi/incidents?open=true
func (h *IncidentHandler) List(c *gin.Context) {
	openOnly, _ := strconv.ParseBool(c.DefaultQuery("open", "false"))

	incidents, err := h.service.List(c.Request.Context(), openOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": incidents})
}

// Reconcile handles POST /kubeapi/incidents/reconcile. Incidents that could
// not be repaired are reported alongside the summary.
func (h *IncidentHandler) Reconcile(c *gin.Context) {
	report, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"data": report, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
