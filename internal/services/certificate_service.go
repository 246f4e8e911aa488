package services

import (
	"context"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/models"
)

const certSecretSuffix = "-cert"

// CertificateService manages kubernetes.io/tls Secrets referenced by servers.
// Certificate contents are stored as given.
type CertificateService struct {
	core kubernetes.Interface
}

func NewCertificateService(core kubernetes.Interface) *CertificateService {
	return &CertificateService{core: core}
}

// Create stores req as the Secret "<name>-cert".
func (s *CertificateService) Create(ctx context.Context, req models.CertificateRequest) (models.CertificateItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Namespace == "" || req.TLSCrt == "" || req.TLSKey == "" {
		return models.CertificateItem{}, &ValidationError{Field: "certificate", Reason: "name, namespace, tls_crt and tls_key are required"}
	}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name + certSecretSuffix,
			Namespace: req.Namespace,
		},
		Type: corev1.SecretTypeTLS,
		Data: map[string][]byte{
			corev1.TLSCertKey:       []byte(req.TLSCrt),
			corev1.TLSPrivateKeyKey: []byte(req.TLSKey),
		},
	}

	created, err := s.core.CoreV1().Secrets(req.Namespace).Create(ctx, secret, metav1.CreateOptions{FieldManager: kube.FieldManager})
	if err != nil {
		return models.CertificateItem{}, clusterError("create", secret.Name, err)
	}

	logger.Component("certs").WithField("secret", created.Name).WithField("namespace", created.Namespace).Info("tls secret created")
	return models.CertificateItem{
		Name:      name,
		Namespace: created.Namespace,
		UID:       string(created.UID),
		Type:      string(created.Type),
		Status:    "Created",
	}, nil
}

// List returns TLS Secrets in namespace, or in every namespace when it is empty.
func (s *CertificateService) List(ctx context.Context, namespace string) ([]models.CertificateItem, error) {
	secrets, err := s.listTLS(ctx, namespace)
	if err != nil {
		return nil, err
	}
	items := make([]models.CertificateItem, 0, len(secrets))
	for _, secret := range secrets {
		items = append(items, models.CertificateItem{
			Name:      secret.Name,
			Namespace: secret.Namespace,
			UID:       string(secret.UID),
			Type:      string(secret.Type),
		})
	}
	return items, nil
}

// Delete removes the first TLS Secret named name or "<name>-cert", searching
// all namespaces.
func (s *CertificateService) Delete(ctx context.Context, name string) (models.CertificateItem, error) {
	secrets, err := s.listTLS(ctx, metav1.NamespaceAll)
	if err != nil {
		return models.CertificateItem{}, err
	}

	for _, secret := range secrets {
		if secret.Name != name && secret.Name != name+certSecretSuffix {
			continue
		}
		err := s.core.CoreV1().Secrets(secret.Namespace).Delete(ctx, secret.Name, metav1.DeleteOptions{})
		if err != nil {
			if kube.IsNotFound(err) {
				return models.CertificateItem{}, &ClusterNotFoundError{Resource: "TLS secret", Name: name}
			}
			return models.CertificateItem{}, clusterError("delete", secret.Name, err)
		}
		return models.CertificateItem{Name: secret.Name, Namespace: secret.Namespace, UID: string(secret.UID), Status: "Deleted"}, nil
	}
	return models.CertificateItem{}, &ClusterNotFoundError{Resource: "TLS secret", Name: name}
}

func (s *CertificateService) listTLS(ctx context.Context, namespace string) ([]corev1.Secret, error) {
	list, err := s.core.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "type=" + string(corev1.SecretTypeTLS),
	})
	if err != nil {
		return nil, clusterError("list", "secrets", err)
	}

	// Field selectors are not honoured by every client; filter again.
	secrets := make([]corev1.Secret, 0, len(list.Items))
	for _, secret := range list.Items {
		if secret.Type == corev1.SecretTypeTLS {
			secrets = append(secrets, secret)
		}
	}
	return secrets, nil
}
