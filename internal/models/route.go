package models

// RouteAction forwards matched requests to a named upstream.
type RouteAction struct {
	Pass string `json:"pass" binding:"required"`
}

// RouteItem describes a route before it is attached to a server.
type RouteItem struct {
	Name     string      `json:"name" binding:"required"`
	Path     string      `json:"path"`
	Policies []PolicyRef `json:"policies"`
	Action   RouteAction `json:"action"`
}

// OidcPolicy summarises a Policy resource carrying an OIDC block.
type OidcPolicy struct {
	UID       string                 `json:"uid"`
	Name      string                 `json:"name"`
	Namespace string                 `json:"namespace"`
	Oidc      map[string]interface{} `json:"oidc"`
}
