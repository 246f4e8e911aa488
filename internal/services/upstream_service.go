package services

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"

	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/models"
)

const (
	upstreamLabel         = "upstream"
	upstreamLabelExternal = "external"
)

// UpstreamService exposes Services as gateway upstreams and manages external
// upstreams: a selector-less Service paired with hand-written Endpoints.
type UpstreamService struct {
	core kubernetes.Interface
}

func NewUpstreamService(core kubernetes.Interface) *UpstreamService {
	return &UpstreamService{core: core}
}

// List returns Services in namespace, or in every namespace when it is empty.
func (s *UpstreamService) List(ctx context.Context, namespace string) ([]models.UpstreamItem, error) {
	list, err := s.core.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, clusterError("list", "services", err)
	}

	items := make([]models.UpstreamItem, 0, len(list.Items))
	for _, svc := range list.Items {
		ports := make([]int32, 0, len(svc.Spec.Ports))
		for _, p := range svc.Spec.Ports {
			ports = append(ports, p.Port)
		}
		items = append(items, models.UpstreamItem{
			UID:       string(svc.UID),
			Name:      svc.Name,
			Namespace: svc.Namespace,
			Ports:     ports,
		})
	}
	return items, nil
}

// Create writes the Service and then its Endpoints. The Service is removed
// again when the Endpoints cannot be created.
func (s *UpstreamService) Create(ctx context.Context, req models.UpstreamCreateRequest) error {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: req.Namespace,
			Labels:    map[string]string{upstreamLabel: upstreamLabelExternal},
		},
		Spec: corev1.ServiceSpec{Ports: servicePorts(req.ServicePort, req.TargetPort)},
	}
	if _, err := s.core.CoreV1().Services(req.Namespace).Create(ctx, svc, metav1.CreateOptions{FieldManager: kube.FieldManager}); err != nil {
		return clusterError("create", "service "+req.Name, err)
	}

	ep := &corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: req.Name, Namespace: req.Namespace},
		Subsets:    endpointSubsets(req.ExternalIPs, req.TargetPort),
	}
	if _, err := s.core.CoreV1().Endpoints(req.Namespace).Create(ctx, ep, metav1.CreateOptions{FieldManager: kube.FieldManager}); err != nil {
		if delErr := s.core.CoreV1().Services(req.Namespace).Delete(context.WithoutCancel(ctx), req.Name, metav1.DeleteOptions{}); delErr != nil && !kube.IsNotFound(delErr) {
			logger.Component("upstreams").WithError(delErr).WithField("service", req.Name).Error("failed to remove service after endpoints create failed")
		}
		return clusterError("create", "endpoints "+req.Name, err)
	}

	logger.Component("upstreams").WithField("service", req.Name).WithField("namespace", req.Namespace).Info("external upstream created")
	return nil
}

// Update replaces ports and addresses of the external upstream called name.
// Both objects are written at the resourceVersion they were read at.
func (s *UpstreamService) Update(ctx context.Context, name string, req models.UpstreamUpdateRequest) (models.UpstreamItem, error) {
	svc, err := s.findExternal(ctx, name)
	if err != nil {
		return models.UpstreamItem{}, err
	}

	ep, err := s.core.CoreV1().Endpoints(svc.Namespace).Get(ctx, svc.Name, metav1.GetOptions{})
	if err != nil {
		if kube.IsNotFound(err) {
			return models.UpstreamItem{}, &ClusterNotFoundError{Resource: "Endpoints", Name: name}
		}
		return models.UpstreamItem{}, clusterError("get", "endpoints "+name, err)
	}

	previousPorts := append([]corev1.ServicePort(nil), svc.Spec.Ports...)
	svc.Spec.Ports = servicePorts(req.ServicePort, req.TargetPort)
	updated, err := s.core.CoreV1().Services(svc.Namespace).Update(ctx, svc, metav1.UpdateOptions{FieldManager: kube.FieldManager})
	if err != nil {
		return models.UpstreamItem{}, clusterError("update", "service "+name, err)
	}

	ep.Subsets = endpointSubsets(req.ExternalIPs, req.TargetPort)
	if _, err := s.core.CoreV1().Endpoints(svc.Namespace).Update(ctx, ep, metav1.UpdateOptions{FieldManager: kube.FieldManager}); err != nil {
		restore := updated.DeepCopy()
		restore.Spec.Ports = previousPorts
		if _, restoreErr := s.core.CoreV1().Services(svc.Namespace).Update(context.WithoutCancel(ctx), restore, metav1.UpdateOptions{FieldManager: kube.FieldManager}); restoreErr != nil {
			logger.Component("upstreams").WithError(restoreErr).WithField("service", svc.Name).Error("failed to restore service ports after endpoints update failed")
		}
		return models.UpstreamItem{}, clusterError("update", "endpoints "+name, err)
	}

	return models.UpstreamItem{
		UID:       string(updated.UID),
		Name:      updated.Name,
		Namespace: updated.Namespace,
		Ports:     []int32{req.ServicePort},
	}, nil
}

// Delete removes the Endpoints and then the Service of the external upstream
// called name.
func (s *UpstreamService) Delete(ctx context.Context, name string) (models.UpstreamItem, error) {
	svc, err := s.findExternal(ctx, name)
	if err != nil {
		return models.UpstreamItem{}, err
	}

	epErr := s.core.CoreV1().Endpoints(svc.Namespace).Delete(ctx, svc.Name, metav1.DeleteOptions{})
	if epErr != nil && !kube.IsNotFound(epErr) {
		return models.UpstreamItem{}, clusterError("delete", "endpoints "+name, epErr)
	}
	svcErr := s.core.CoreV1().Services(svc.Namespace).Delete(ctx, svc.Name, metav1.DeleteOptions{})
	if svcErr != nil && !kube.IsNotFound(svcErr) {
		return models.UpstreamItem{}, clusterError("delete", "service "+name, svcErr)
	}
	if kube.IsNotFound(epErr) && kube.IsNotFound(svcErr) {
		return models.UpstreamItem{}, &ClusterNotFoundError{Resource: "upstream", Name: name}
	}

	return models.UpstreamItem{UID: string(svc.UID), Name: svc.Name, Namespace: svc.Namespace}, nil
}

func (s *UpstreamService) findExternal(ctx context.Context, name string) (*corev1.Service, error) {
	list, err := s.core.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s", upstreamLabel, upstreamLabelExternal),
	})
	if err != nil {
		return nil, clusterError("list", "services", err)
	}
	for i := range list.Items {
		if list.Items[i].Name == name {
			return &list.Items[i], nil
		}
	}
	return nil, &ClusterNotFoundError{Resource: "external upstream", Name: name}
}

func servicePorts(port, target int32) []corev1.ServicePort {
	return []corev1.ServicePort{{Port: port, TargetPort: intstr.FromInt32(target)}}
}

func endpointSubsets(ips []string, port int32) []corev1.EndpointSubset {
	addresses := make([]corev1.EndpointAddress, 0, len(ips))
	for _, ip := range ips {
		addresses = append(addresses, corev1.EndpointAddress{IP: ip})
	}
	return []corev1.EndpointSubset{{
		Addresses: addresses,
		Ports:     []corev1.EndpointPort{{Port: port}},
	}}
}
