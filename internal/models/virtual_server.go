package models

// DefaultPolicyNamespace is where the ingress controller's Policy resources live.
const DefaultPolicyNamespace = "nginx-ingress"

// PolicyRef points a VirtualServer or route at a Policy resource.
type PolicyRef struct {
	Name      string `json:"name" binding:"required"`
	Namespace string `json:"namespace,omitempty"`
}

// Upstream maps a VirtualServer upstream name to a Service port.
type Upstream struct {
	Name    string `json:"name" binding:"required"`
	Service string `json:"service" binding:"required"`
	Port    int64  `json:"port" binding:"required,min=1,max=65535"`
}

// Route is a VirtualServer path with its action. Action is passed through
// untouched (pass, proxy, redirect or return).
type Route struct {
	Path     string      `json:"path" binding:"required"`
	Policies []PolicyRef `json:"policies,omitempty"`
	Action   interface{} `json:"action"`
}

// TLSRedirect configures HTTP to HTTPS redirection.
type TLSRedirect struct {
	Enable bool  `json:"enable"`
	Code   int64 `json:"code,omitempty" binding:"omitempty,oneof=301 302 307 308"`
}

// TLS references the Secret holding the server certificate.
type TLS struct {
	Secret   string       `json:"secret" binding:"required"`
	Redirect *TLSRedirect `json:"redirect,omitempty"`
}

// VirtualServerSpec mirrors the fields of the k8s.nginx.org/v1 VirtualServer spec this API manages.
type VirtualServerSpec struct {
	Host      string      `json:"host" binding:"required"`
	TLS       *TLS        `json:"tls,omitempty"`
	Policies  []PolicyRef `json:"policies,omitempty"`
	Upstreams []Upstream  `json:"upstreams" binding:"required,dive"`
	Routes    []Route     `json:"routes,omitempty" binding:"dive"`
}

// CreateServerRequest creates a VirtualServer.
type CreateServerRequest struct {
	Name      string            `json:"name" binding:"required"`
	Namespace string            `json:"namespace" binding:"required"`
	Spec      VirtualServerSpec `json:"spec"`
}

// VirtualServerMetadata identifies a VirtualServer.
type VirtualServerMetadata struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// VirtualServer is the API view of a VirtualServer resource.
type VirtualServer struct {
	Metadata VirtualServerMetadata `json:"metadata"`
	Spec     VirtualServerSpec     `json:"spec"`
}

// Defaults fills policy namespaces the caller omitted.
func (s *VirtualServerSpec) Defaults() {
	for i := range s.Policies {
		if s.Policies[i].Namespace == "" {
			s.Policies[i].Namespace = DefaultPolicyNamespace
		}
	}
	for r := range s.Routes {
		for i := range s.Routes[r].Policies {
			if s.Routes[r].Policies[i].Namespace == "" {
				s.Routes[r].Policies[i].Namespace = DefaultPolicyNamespace
			}
		}
	}
}
