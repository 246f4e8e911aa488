package kube

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/metrics"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

const upstreamName = "kube"

// ErrMissingUID is returned when the API server answers without metadata.uid.
var ErrMissingUID = errors.New("kube: resource has no uid")

// ResourceClient performs calls against one custom resource type. Reads,
// patches, updates and deletes are retried on transient failures; creates are
// not, since a create that timed out may still have been applied.
type ResourceClient struct {
	client  dynamic.Interface
	gvr     schema.GroupVersionResource
	backoff util.Backoff
}

// NewResourceClient binds client to gvr.
func NewResourceClient(client dynamic.Interface, gvr schema.GroupVersionResource, backoff util.Backoff) *ResourceClient {
	return &ResourceClient{client: client, gvr: gvr, backoff: backoff}
}

func (c *ResourceClient) namespaced(namespace string) dynamic.ResourceInterface {
	if namespace == "" {
		return c.client.Resource(c.gvr)
	}
	return c.client.Resource(c.gvr).Namespace(namespace)
}

// Get fetches one object.
func (c *ResourceClient) Get(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error) {
	var obj *unstructured.Unstructured
	err := c.call(ctx, "get", true, func(ctx context.Context) error {
		var err error
		obj, err = c.namespaced(namespace).Get(ctx, name, metav1.GetOptions{})
		return err
	})
	return obj, err
}

// List returns the objects matching selector; an empty namespace lists across
// all namespaces.
func (c *ResourceClient) List(ctx context.Context, namespace, selector string) (*unstructured.UnstructuredList, error) {
	var list *unstructured.UnstructuredList
	err := c.call(ctx, "list", true, func(ctx context.Context) error {
		var err error
		list, err = c.namespaced(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
		return err
	})
	return list, err
}

// Create submits obj once.
func (c *ResourceClient) Create(ctx context.Context, namespace string, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	var created *unstructured.Unstructured
	err := c.call(ctx, "create", false, func(ctx context.Context) error {
		var err error
		created, err = c.namespaced(namespace).Create(ctx, obj, metav1.CreateOptions{FieldManager: FieldManager})
		return err
	})
	return created, err
}

// Update replaces obj; obj must carry the resourceVersion it was read at.
func (c *ResourceClient) Update(ctx context.Context, namespace string, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	var updated *unstructured.Unstructured
	err := c.call(ctx, "update", true, func(ctx context.Context) error {
		var err error
		updated, err = c.namespaced(namespace).Update(ctx, obj, metav1.UpdateOptions{FieldManager: FieldManager})
		return err
	})
	return updated, err
}

// MergePatch applies a JSON merge patch.
func (c *ResourceClient) MergePatch(ctx context.Context, namespace, name string, patch []byte) (*unstructured.Unstructured, error) {
	var patched *unstructured.Unstructured
	err := c.call(ctx, "patch", true, func(ctx context.Context) error {
		var err error
		patched, err = c.namespaced(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{FieldManager: FieldManager})
		return err
	})
	return patched, err
}

// Delete removes an object. A non-empty uid becomes a precondition so a
// resource recreated under the same name is left alone.
func (c *ResourceClient) Delete(ctx context.Context, namespace, name, uid string) error {
	opts := metav1.DeleteOptions{}
	if uid != "" {
		opts.Preconditions = metav1.NewUIDPreconditions(uid)
	}
	return c.call(ctx, "delete", true, func(ctx context.Context) error {
		return c.namespaced(namespace).Delete(ctx, name, opts)
	})
}

func (c *ResourceClient) call(ctx context.Context, op string, retryable bool, fn func(context.Context) error) error {
	backoff := c.backoff
	if !retryable {
		backoff.MaxRetries = 0
	}

	return backoff.Do(ctx, IsTransient, func(ctx context.Context) error {
		err := fn(ctx)
		switch {
		case err == nil:
			metrics.IncUpstreamRequest(upstreamName, "2xx")
		case StatusCode(err) != 0:
			metrics.IncUpstreamRequest(upstreamName, strconv.Itoa(StatusCode(err)/100)+"xx")
		default:
			metrics.IncUpstreamRequest(upstreamName, "error")
		}
		if err != nil && IsTransient(err) {
			logger.Component(upstreamName).WithFields(logrus.Fields{
				"op":       op,
				"resource": c.gvr.Resource,
			}).WithError(err).Warn("transient cluster API failure")
		}
		return err
	})
}

// UID returns metadata.uid or ErrMissingUID.
func UID(obj *unstructured.Unstructured) (string, error) {
	if obj == nil || obj.GetUID() == "" {
		return "", ErrMissingUID
	}
	return string(obj.GetUID()), nil
}

// PolicyClient is a ResourceClient for Policy objects in one namespace.
type PolicyClient struct {
	resources *ResourceClient
	namespace string
}

// NewPolicyClient binds Policy calls to namespace.
func NewPolicyClient(client dynamic.Interface, namespace string, backoff util.Backoff) *PolicyClient {
	return &PolicyClient{resources: NewResourceClient(client, PolicyGVR, backoff), namespace: namespace}
}

// Namespace returns the namespace policies are written to.
func (p *PolicyClient) Namespace() string { return p.namespace }

func (p *PolicyClient) Get(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	return p.resources.Get(ctx, p.namespace, name)
}

func (p *PolicyClient) Create(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return p.resources.Create(ctx, p.namespace, obj)
}

func (p *PolicyClient) MergePatch(ctx context.Context, name string, patch []byte) (*unstructured.Unstructured, error) {
	return p.resources.MergePatch(ctx, p.namespace, name, patch)
}

func (p *PolicyClient) Delete(ctx context.Context, name, uid string) error {
	return p.resources.Delete(ctx, p.namespace, name, uid)
}

func (p *PolicyClient) List(ctx context.Context, selector string) (*unstructured.UnstructuredList, error) {
	return p.resources.List(ctx, p.namespace, selector)
}
