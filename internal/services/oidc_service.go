package services

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/VEEP09/xc-test-apim/internal/models"
)

// OidcService lists Policy resources that carry an OIDC block. It is read-only.
type OidcService struct {
	cluster PolicyResources
}

func NewOidcService(cluster PolicyResources) *OidcService {
	return &OidcService{cluster: cluster}
}

func (s *OidcService) List(ctx context.Context) ([]models.OidcPolicy, error) {
	list, err := s.cluster.List(ctx, "")
	if err != nil {
		return nil, clusterError("list", "policies", err)
	}

	policies := make([]models.OidcPolicy, 0)
	for i := range list.Items {
		item := &list.Items[i]
		oidc, found, err := unstructured.NestedMap(item.Object, "spec", "oidc")
		if err != nil || !found {
			continue
		}
		policies = append(policies, models.OidcPolicy{
			UID:       string(item.GetUID()),
			Name:      item.GetName(),
			Namespace: item.GetNamespace(),
			Oidc:      oidc,
		})
	}
	return policies, nil
}
