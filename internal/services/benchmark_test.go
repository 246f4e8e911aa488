package services

import (
	"testing"

	"github.com/VEEP09/xc-test-apim/internal/models"
)

func BenchmarkIsValidCIDR(b *testing.B) {
	values := []string{"192.168.10.0/24", "10.0.0.1", "2001:db8::/32", "not-an-ip"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		isValidCIDR(values[i%len(values)])
	}
}

func BenchmarkValidatePolicy(b *testing.B) {
	svc := NewPolicySyncService(nil, nil, models.AccessAllow)
	policy := models.NewAccessPolicy("demo", models.AccessAllow,
		[]string{"192.168.10.0/24", "10.0.0.1", "172.16.0.0/12"}, models.ApplyRangeHTTP)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = svc.validate(policy)
	}
}
