package kube

import (
	"fmt"
	"strings"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientConfig selects where API credentials come from.
type ClientConfig struct {
	Kubeconfig string
	Context    string
	InCluster  bool
}

// Client is a clientset plus the kubeconfig cluster name, when known.
type Client struct {
	Clientset kubernetes.Interface
	// ContextCluster is the cluster of the selected kubeconfig context;
	// empty for in-cluster credentials.
	ContextCluster string
}

// NewClient builds a clientset from the service account or kubeconfig.
func NewClient(cfg ClientConfig) (*Client, error) {
	restCfg, cluster, err := restConfig(cfg)
	if err != nil {
		return nil, err
	}
	restCfg.UserAgent = "k8swatchdog"
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return &Client{Clientset: cs, ContextCluster: cluster}, nil
}

func restConfig(cfg ClientConfig) (*rest.Config, string, error) {
	if cfg.InCluster {
		rc, err := rest.InClusterConfig()
		if err != nil {
			return nil, "", fmt.Errorf("in-cluster config: %w", err)
		}
		return rc, "", nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if p := strings.TrimSpace(cfg.Kubeconfig); p != "" {
		rules.ExplicitPath = p
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	rc, err := loader.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return rc, contextCluster(loader, cfg.Context), nil
}

// contextCluster returns the cluster of the named (or current) context.
func contextCluster(loader clientcmd.ClientConfig, name string) string {
	raw, err := loader.RawConfig()
	if err != nil {
		return ""
	}
	if name == "" {
		name = raw.CurrentContext
	}
	if ctx, ok := raw.Contexts[name]; ok && ctx != nil {
		return ctx.Cluster
	}
	return ""
}
