package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/easyscale/easyscale/pkg/models"
)

// ClientInterface is the narrow port the controller uses to talk to
// the cluster. The decision engine never sees it; the controller feeds
// the retrieved replica count in and reports the outcome back.
type ClientInterface interface {
	GetCurrentReplicas(ctx context.Context, key models.ResourceKey) (int32, error)
	SetReplicas(ctx context.Context, key models.ResourceKey, replicas int32, dryRun bool) error
	Exists(ctx context.Context, key models.ResourceKey) (bool, error)
}

// Client wraps a Kubernetes clientset with replica get/set operations
// for Deployments and StatefulSets.
type Client struct {
	clientset kubernetes.Interface
}

var _ ClientInterface = (*Client)(nil)

// NewClient builds a client from the in-cluster service account when
// running inside a pod, falling back to kubeconfig for development.
func NewClient(kubeconfigPath string) (*Client, error) {
	cfg, err := buildConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return &Client{clientset: clientset}, nil
}

// NewClientFromClientset wraps an existing clientset; tests use this
// with the fake clientset.
func NewClientFromClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// NewDynamicClient builds a dynamic client against the same config
// resolution as NewClient. The rule CRD source uses it to list
// ScalingSchedule custom resources.
func NewDynamicClient(kubeconfigPath string) (dynamic.Interface, error) {
	cfg, err := buildConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}

	client, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return client, nil
}

func buildConfig(kubeconfigPath string) (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}

	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfigPath = filepath.Join(home, ".kube", "config")
		}
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubernetes config: %w", err)
	}
	return cfg, nil
}

func (c *Client) GetCurrentReplicas(ctx context.Context, key models.ResourceKey) (int32, error) {
	switch key.Kind {
	case models.KindDeployment:
		deployment, err := c.clientset.AppsV1().Deployments(key.Namespace).Get(ctx, key.Name, metav1.GetOptions{})
		if err != nil {
			return 0, fmt.Errorf("failed to get %s: %w", key, err)
		}
		if deployment.Spec.Replicas == nil {
			return 1, nil
		}
		return *deployment.Spec.Replicas, nil

	case models.KindStatefulSet:
		statefulSet, err := c.clientset.AppsV1().StatefulSets(key.Namespace).Get(ctx, key.Name, metav1.GetOptions{})
		if err != nil {
			return 0, fmt.Errorf("failed to get %s: %w", key, err)
		}
		if statefulSet.Spec.Replicas == nil {
			return 1, nil
		}
		return *statefulSet.Spec.Replicas, nil

	default:
		return 0, fmt.Errorf("unsupported kind %q", key.Kind)
	}
}

func (c *Client) SetReplicas(ctx context.Context, key models.ResourceKey, replicas int32, dryRun bool) error {
	opts := metav1.UpdateOptions{}
	if dryRun {
		opts.DryRun = []string{metav1.DryRunAll}
	}

	switch key.Kind {
	case models.KindDeployment:
		deployments := c.clientset.AppsV1().Deployments(key.Namespace)
		deployment, err := deployments.Get(ctx, key.Name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", key, err)
		}
		deployment.Spec.Replicas = &replicas
		if _, err := deployments.Update(ctx, deployment, opts); err != nil {
			return fmt.Errorf("failed to scale %s: %w", key, err)
		}
		return nil

	case models.KindStatefulSet:
		statefulSets := c.clientset.AppsV1().StatefulSets(key.Namespace)
		statefulSet, err := statefulSets.Get(ctx, key.Name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", key, err)
		}
		statefulSet.Spec.Replicas = &replicas
		if _, err := statefulSets.Update(ctx, statefulSet, opts); err != nil {
			return fmt.Errorf("failed to scale %s: %w", key, err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported kind %q", key.Kind)
	}
}

func (c *Client) Exists(ctx context.Context, key models.ResourceKey) (bool, error) {
	var err error
	switch key.Kind {
	case models.KindDeployment:
		_, err = c.clientset.AppsV1().Deployments(key.Namespace).Get(ctx, key.Name, metav1.GetOptions{})
	case models.KindStatefulSet:
		_, err = c.clientset.AppsV1().StatefulSets(key.Namespace).Get(ctx, key.Name, metav1.GetOptions{})
	default:
		return false, fmt.Errorf("unsupported kind %q", key.Kind)
	}

	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return true, nil
}
