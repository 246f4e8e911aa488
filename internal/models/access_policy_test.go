package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAccessPolicy_DerivesResourceName(t *testing.T) {
	p := NewAccessPolicy(" demo ", AccessAllow, []string{"10.0.0.1/32", "10.0.0.1/32"}, ApplyRangeServer)
	assert.Equal(t, "demo", p.PolicyName)
	assert.Equal(t, "demo-ip-allow", p.ResourceName)
	assert.Equal(t, []string{"10.0.0.1/32", "10.0.0.1/32"}, p.IPs, "duplicates are passed through")

	deny := NewAccessPolicy("demo", AccessDeny, nil, ApplyRangeHTTP)
	assert.Equal(t, "demo-ip-deny", deny.ResourceName)
	assert.Equal(t, "ip-deny", AccessDeny.TypeLabel())
	assert.Equal(t, "deny", AccessDeny.Field())
}

func TestPolicyNameFromResource(t *testing.T) {
	name, ok := PolicyNameFromResource("demo-ip-allow", AccessAllow)
	assert.True(t, ok)
	assert.Equal(t, "demo", name)

	_, ok = PolicyNameFromResource("demo-ip-deny", AccessAllow)
	assert.False(t, ok)
}

func TestApplyRange_IsValid(t *testing.T) {
	for _, r := range ValidApplyRanges {
		assert.True(t, r.IsValid(), r)
	}
	assert.False(t, ApplyRange("global").IsValid())
	assert.False(t, ApplyRange("").IsValid())
}

func TestVirtualServerSpec_Defaults(t *testing.T) {
	spec := VirtualServerSpec{
		Policies: []PolicyRef{{Name: "a"}, {Name: "b", Namespace: "custom"}},
		Routes:   []Route{{Path: "/", Policies: []PolicyRef{{Name: "c"}}}},
	}
	spec.Defaults()
	assert.Equal(t, DefaultPolicyNamespace, spec.Policies[0].Namespace)
	assert.Equal(t, "custom", spec.Policies[1].Namespace)
	assert.Equal(t, DefaultPolicyNamespace, spec.Routes[0].Policies[0].Namespace)
}
