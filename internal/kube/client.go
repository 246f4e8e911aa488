// Package kube wraps the Kubernetes API: the typed clientset for core objects
// and a dynamic client for the NGINX ingress custom resources.
package kube

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/VEEP09/xc-test-apim/internal/config"
	"github.com/VEEP09/xc-test-apim/internal/version"
)

// Clients bundles the clients every resource service needs.
type Clients struct {
	Core    kubernetes.Interface
	Dynamic dynamic.Interface
}

// NewClients builds both clients from one rest.Config.
func NewClients(cfg config.Config) (*Clients, error) {
	restCfg, err := RestConfig(cfg)
	if err != nil {
		return nil, err
	}

	core, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}
	return &Clients{Core: core, Dynamic: dyn}, nil
}

// RestConfig resolves how to reach the API server. A kubeconfig file wins,
// then an explicit server address authenticated with the token file, then the
// in-cluster service account.
func RestConfig(cfg config.Config) (*rest.Config, error) {
	var (
		restCfg *rest.Config
		err     error
	)

	switch {
	case cfg.KubeConfigPath != "":
		restCfg, err = clientcmd.BuildConfigFromFlags(cfg.KubeAPIServer, cfg.KubeConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load kubeconfig %s: %w", cfg.KubeConfigPath, err)
		}
	case cfg.KubeAPIServer != "":
		restCfg = &rest.Config{
			Host:            cfg.KubeAPIServer,
			BearerTokenFile: cfg.KubeTokenPath,
		}
		caFile := filepath.Join(filepath.Dir(cfg.KubeTokenPath), "ca.crt")
		if _, statErr := os.Stat(caFile); statErr == nil {
			restCfg.TLSClientConfig.CAFile = caFile
		}
	default:
		restCfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("load in-cluster config: %w", err)
		}
		if cfg.KubeTokenPath != "" && cfg.KubeTokenPath != config.DefaultTokenPath {
			restCfg.BearerToken = ""
			restCfg.BearerTokenFile = cfg.KubeTokenPath
		}
	}

	if cfg.KubeInsecure {
		restCfg.TLSClientConfig.Insecure = true
		restCfg.TLSClientConfig.CAFile = ""
		restCfg.TLSClientConfig.CAData = nil
	}
	restCfg.Timeout = cfg.RequestTimeout
	restCfg.UserAgent = version.Name + "/" + version.Version
	return restCfg, nil
}
