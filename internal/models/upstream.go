package models

// UpstreamItem is a backend Service exposed as a gateway upstream.
type UpstreamItem struct {
	UID       string  `json:"uid"`
	Name      string  `json:"name"`
	Namespace string  `json:"namespace"`
	Ports     []int32 `json:"ports"`
}

// UpstreamCreateRequest creates a selector-less Service plus Endpoints pointing at external IPs.
type UpstreamCreateRequest struct {
	Name        string   `json:"name" binding:"required"`
	Namespace   string   `json:"namespace" binding:"required"`
	ExternalIPs []string `json:"external_ips" binding:"required,min=1,dive,ip"`
	ServicePort int32    `json:"service_port" binding:"required,min=1,max=65535"`
	TargetPort  int32    `json:"target_port" binding:"required,min=1,max=65535"`
}

// UpstreamUpdateRequest replaces the ports and addresses of an external upstream.
type UpstreamUpdateRequest struct {
	ExternalIPs []string `json:"external_ips" binding:"required,min=1,dive,ip"`
	ServicePort int32    `json:"service_port" binding:"required,min=1,max=65535"`
	TargetPort  int32    `json:"target_port" binding:"required,min=1,max=65535"`
}
