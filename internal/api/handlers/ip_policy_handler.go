package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/services"
)

// IPPolicyRequest is the body of create and update calls. AllowIP is read by
// /ipallow and DenyIP by /ipdeny.
type IPPolicyRequest struct {
	PolicyName string   `json:"PolicyName"`
	AllowIP    []string `json:"AllowIP"`
	DenyIP     []string `json:"DenyIP"`
	ApplyRange string   `json:"ApplyRange" binding:"required"`
}

func (r IPPolicyRequest) addresses(mode models.AccessMode) []string {
	if mode == models.AccessDeny {
		return r.DenyIP
	}
	return r.AllowIP
}

type IPPolicyHandler struct {
	service *services.PolicySyncService
}

func NewIPPolicyHandler(service *services.PolicySyncService) *IPPolicyHandler {
	return &IPPolicyHandler{service: service}
}

// RegisterRoutes mounts the handler on group, e.g. /kubeapi/ipallow.
func (h *IPPolicyHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/", h.List)
	group.GET("/:id", h.Get)
	group.POST("/", h.Create)
	group.PUT("/:policy_name", h.Update)
	group.DELETE("/:policy_name", h.Delete)
}

// List handles GET /kubeapi/ip{allow,deny}
func (h *IPPolicyHandler) List(c *gin.Context) {
	policies, err := h.service.ListPolicies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policies})
}

// Get handles GET /kubeapi/ip{allow,deny}/:id where id is the cluster UID.
func (h *IPPolicyHandler) Get(c *gin.Context) {
	policy, err := h.service.GetPolicy(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": policy})
}

// Create handles POST /kubeapi/ip{allow,deny}
func (h *IPPolicyHandler) Create(c *gin.Context) {
	var req IPPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	mode := h.service.Mode()
	result, err := h.service.CreatePolicy(c.Request.Context(), req.PolicyName, req.addresses(mode), models.ApplyRange(req.ApplyRange))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("policy %s created", result.Policy.ResourceName),
		"data":    result,
	})
}

// Update handles PUT /kubeapi/ip{allow,deny}/:policy_name
func (h *IPPolicyHandler) Update(c *gin.Context) {
	var req IPPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	mode := h.service.Mode()
	result, err := h.service.UpdatePolicy(c.Request.Context(), c.Param("policy_name"), req.addresses(mode), models.ApplyRange(req.ApplyRange))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("policy %s updated", result.Policy.ResourceName),
		"data":    result,
	})
}

// Delete handles DELETE /kubeapi/ip{allow,deny}/:policy_name
func (h *IPPolicyHandler) Delete(c *gin.Context) {
	result, err := h.service.DeletePolicy(c.Request.Context(), c.Param("policy_name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("policy %s deleted", result.Policy.ResourceName),
		"data":    result,
	})
}
