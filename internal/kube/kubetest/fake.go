// Package kubetest builds fake Kubernetes clients that behave closely enough to
// the API server for service tests: created objects receive a UID and custom
// resources can be listed.
package kubetest

import (
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"github.com/VEEP09/xc-test-apim/internal/kube"
)

var listKinds = map[schema.GroupVersionResource]string{
	kube.PolicyGVR:        "PolicyList",
	kube.VirtualServerGVR: "VirtualServerList",
}

// NewDynamicClient returns a dynamic fake seeded with objects.
func NewDynamicClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	client := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds, objects...)
	client.PrependReactor("create", "*", assignUID(client.Tracker()))
	return client
}

// NewClientset returns a typed fake seeded with objects.
func NewClientset(objects ...runtime.Object) *fake.Clientset {
	client := fake.NewSimpleClientset(objects...)
	client.PrependReactor("create", "*", assignUID(client.Tracker()))
	return client
}

// NewClients bundles both fakes.
func NewClients() (*kube.Clients, *fake.Clientset, *dynamicfake.FakeDynamicClient) {
	core := NewClientset()
	dyn := NewDynamicClient()
	return &kube.Clients{Core: core, Dynamic: dyn}, core, dyn
}

func assignUID(tracker clienttesting.ObjectTracker) clienttesting.ReactionFunc {
	return func(action clienttesting.Action) (bool, runtime.Object, error) {
		create, ok := action.(clienttesting.CreateAction)
		if !ok {
			return false, nil, nil
		}
		obj := create.GetObject().DeepCopyObject()
		accessor, err := meta.Accessor(obj)
		if err != nil {
			return false, nil, nil
		}
		if accessor.GetUID() == "" {
			accessor.SetUID(types.UID(uuid.NewString()))
		}
		if accessor.GetNamespace() == "" {
			accessor.SetNamespace(action.GetNamespace())
		}
		if err := tracker.Create(action.GetResource(), obj, action.GetNamespace()); err != nil {
			return true, nil, err
		}
		return true, obj, nil
	}
}
