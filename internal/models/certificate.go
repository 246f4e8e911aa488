package models

// CertificateRequest creates a kubernetes.io/tls Secret named "<name>-cert".
type CertificateRequest struct {
	Name      string `json:"name" binding:"required"`
	Namespace string `json:"namespace" binding:"required"`
	TLSCrt    string `json:"tls_crt" binding:"required"`
	TLSKey    string `json:"tls_key" binding:"required"`
}

// CertificateItem summarises one TLS Secret.
type CertificateItem struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	UID       string `json:"uid,omitempty"`
	Type      string `json:"type,omitempty"`
	Status    string `json:"status,omitempty"`
}
