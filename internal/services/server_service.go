package services

import (
	"context"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/models"
)

// ServerService manages NGINX VirtualServer resources.
type ServerService struct {
	resources *kube.ResourceClient
}

func NewServerService(resources *kube.ResourceClient) *ServerService {
	return &ServerService{resources: resources}
}

// List returns VirtualServers in namespace, or in every namespace when it is empty.
func (s *ServerService) List(ctx context.Context, namespace string) ([]models.VirtualServer, error) {
	list, err := s.resources.List(ctx, namespace, "")
	if err != nil {
		return nil, clusterError("list", "virtualservers", err)
	}

	servers := make([]models.VirtualServer, 0, len(list.Items))
	for i := range list.Items {
		vs, err := kube.VirtualServerFromUnstructured(&list.Items[i])
		if err != nil {
			logger.Component("servers").WithError(err).Warn("skipping unreadable virtual server")
			continue
		}
		servers = append(servers, vs)
	}
	return servers, nil
}

// Create submits a new VirtualServer. Policy references without a namespace
// point at the ingress controller's namespace.
func (s *ServerService) Create(ctx context.Context, req models.CreateServerRequest) (models.VirtualServer, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Namespace) == "" {
		return models.VirtualServer{}, &ValidationError{Field: "name", Reason: "name and namespace are required"}
	}
	if req.Spec.Host == "" {
		return models.VirtualServer{}, &ValidationError{Field: "spec.host", Reason: "must not be empty"}
	}
	req.Spec.Defaults()

	obj, err := kube.VirtualServerManifest(req.Namespace, req.Name, req.Spec)
	if err != nil {
		return models.VirtualServer{}, &ValidationError{Field: "spec", Reason: err.Error()}
	}

	created, err := s.resources.Create(ctx, req.Namespace, obj)
	if err != nil {
		return models.VirtualServer{}, clusterError("create", req.Name, err)
	}

	logger.Component("servers").WithField("server", req.Name).WithField("namespace", req.Namespace).Info("virtual server created")
	return kube.VirtualServerFromUnstructured(created)
}

// Update replaces the spec of the VirtualServer called name, searching all
// namespaces, at the resourceVersion it was read at.
func (s *ServerService) Update(ctx context.Context, name string, spec models.VirtualServerSpec) (models.VirtualServer, error) {
	current, err := s.find(ctx, name)
	if err != nil {
		return models.VirtualServer{}, err
	}
	spec.Defaults()

	obj := current.DeepCopy()
	if err := kube.SetVirtualServerSpec(obj, spec); err != nil {
		return models.VirtualServer{}, &ValidationError{Field: "spec", Reason: err.Error()}
	}

	updated, err := s.resources.Update(ctx, obj.GetNamespace(), obj)
	if err != nil {
		return models.VirtualServer{}, clusterError("update", name, err)
	}
	return kube.VirtualServerFromUnstructured(updated)
}

// Delete removes the VirtualServer called name, searching all namespaces.
func (s *ServerService) Delete(ctx context.Context, name string) (models.VirtualServerMetadata, error) {
	current, err := s.find(ctx, name)
	if err != nil {
		return models.VirtualServerMetadata{}, err
	}

	meta := models.VirtualServerMetadata{UID: string(current.GetUID()), Name: current.GetName(), Namespace: current.GetNamespace()}
	if err := s.resources.Delete(ctx, meta.Namespace, meta.Name, meta.UID); err != nil {
		if kube.IsNotFound(err) {
			return meta, &ClusterNotFoundError{Resource: kube.KindVirtualServer, Name: name}
		}
		return meta, clusterError("delete", name, err)
	}
	return meta, nil
}

func (s *ServerService) find(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	list, err := s.resources.List(ctx, "", "")
	if err != nil {
		return nil, clusterError("list", "virtualservers", err)
	}
	for i := range list.Items {
		if list.Items[i].GetName() == name {
			return &list.Items[i], nil
		}
	}
	return nil, &ClusterNotFoundError{Resource: kube.KindVirtualServer, Name: name}
}
