package models

import "strings"

// AccessMode selects whether a policy allow-lists or deny-lists its addresses.
type AccessMode string

const (
	AccessAllow AccessMode = "allow"
	AccessDeny  AccessMode = "deny"
)

// Suffix is appended to the caller's policy name to form the cluster resource name.
func (m AccessMode) Suffix() string { return "-ip-" + string(m) }

// TypeLabel is the value of the "type" label on the cluster resource.
func (m AccessMode) TypeLabel() string { return "ip-" + string(m) }

// Field is the key under spec.accessControl holding the address list.
func (m AccessMode) Field() string { return string(m) }

// ApplyRange is the NGINX context a policy is meant for. It is recorded in the
// policy database but does not change how the cluster resource is written.
type ApplyRange string

const (
	ApplyRangeHTTP     ApplyRange = "http"
	ApplyRangeServer   ApplyRange = "server"
	ApplyRangeLocation ApplyRange = "location"
)

// ValidApplyRanges lists accepted ApplyRange values.
var ValidApplyRanges = []ApplyRange{ApplyRangeHTTP, ApplyRangeServer, ApplyRangeLocation}

// IsValid reports whether r is one of ValidApplyRanges.
func (r ApplyRange) IsValid() bool {
	for _, v := range ValidApplyRanges {
		if r == v {
			return true
		}
	}
	return false
}

// AccessPolicy is one IP access-control rule kept in both the cluster and the policy database.
type AccessPolicy struct {
	PolicyName   string     `json:"policy_name"`
	ResourceName string     `json:"resource_name"`
	Mode         AccessMode `json:"mode"`
	IPs          []string   `json:"ips"`
	ApplyRange   ApplyRange `json:"apply_range"`
	ClusterUID   string     `json:"cluster_uid,omitempty"`
}

// NewAccessPolicy derives the resource name from the policy name and mode.
func NewAccessPolicy(name string, mode AccessMode, ips []string, applyRange ApplyRange) AccessPolicy {
	name = strings.TrimSpace(name)
	return AccessPolicy{
		PolicyName:   name,
		ResourceName: name + mode.Suffix(),
		Mode:         mode,
		IPs:          ips,
		ApplyRange:   applyRange,
	}
}

// PolicyNameFromResource strips the mode suffix. ok is false when the resource
// does not belong to mode.
func PolicyNameFromResource(resource string, mode AccessMode) (string, bool) {
	if !strings.HasSuffix(resource, mode.Suffix()) {
		return "", false
	}
	return strings.TrimSuffix(resource, mode.Suffix()), true
}
