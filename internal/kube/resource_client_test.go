package kube_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	clienttesting "k8s.io/client-go/testing"

	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/kube/kubetest"
	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

const ns = "nginx-ingress"

var fastBackoff = util.Backoff{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestPolicyClient_Lifecycle(t *testing.T) {
	dyn := kubetest.NewDynamicClient()
	policies := kube.NewPolicyClient(dyn, ns, fastBackoff)
	ctx := context.Background()
	assert.Equal(t, ns, policies.Namespace())

	created, err := policies.Create(ctx, kube.AccessPolicyManifest("demo-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.NoError(t, err)
	uid, err := kube.UID(created)
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	got, err := policies.Get(ctx, "demo-ip-allow")
	require.NoError(t, err)
	assert.Equal(t, uid, string(got.GetUID()))

	patch, err := kube.AccessPolicyPatch(models.AccessAllow, []string{"10.0.0.2", "10.0.0.3"})
	require.NoError(t, err)
	patched, err := policies.MergePatch(ctx, "demo-ip-allow", patch)
	require.NoError(t, err)
	ips, ok := kube.AccessControlIPs(patched, models.AccessAllow)
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3"}, ips)
	assert.Equal(t, uid, string(patched.GetUID()))

	list, err := policies.List(ctx, "type=ip-allow")
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	require.NoError(t, policies.Delete(ctx, "demo-ip-allow", uid))
	_, err = policies.Get(ctx, "demo-ip-allow")
	assert.True(t, kube.IsNotFound(err))
}

func TestPolicyClient_CreateDuplicateConflicts(t *testing.T) {
	dyn := kubetest.NewDynamicClient()
	policies := kube.NewPolicyClient(dyn, ns, fastBackoff)
	ctx := context.Background()

	_, err := policies.Create(ctx, kube.AccessPolicyManifest("demo-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.NoError(t, err)
	_, err = policies.Create(ctx, kube.AccessPolicyManifest("demo-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.Error(t, err)
	assert.Equal(t, 409, kube.StatusCode(err))
}

func TestPolicyClient_DeleteSendsUIDPrecondition(t *testing.T) {
	dyn := kubetest.NewDynamicClient()
	policies := kube.NewPolicyClient(dyn, ns, fastBackoff)
	ctx := context.Background()

	created, err := policies.Create(ctx, kube.AccessPolicyManifest("demo-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.NoError(t, err)

	var seen string
	dyn.PrependReactor("delete", "policies", func(action clienttesting.Action) (bool, runtime.Object, error) {
		del := action.(clienttesting.DeleteAction)
		if p := del.GetDeleteOptions().Preconditions; p != nil && p.UID != nil {
			seen = string(*p.UID)
		}
		return false, nil, nil
	})

	require.NoError(t, policies.Delete(ctx, "demo-ip-allow", string(created.GetUID())))
	assert.Equal(t, string(created.GetUID()), seen)
}

func TestResourceClient_RetriesTransientReads(t *testing.T) {
	dyn := kubetest.NewDynamicClient()
	policies := kube.NewPolicyClient(dyn, ns, fastBackoff)
	ctx := context.Background()

	_, err := policies.Create(ctx, kube.AccessPolicyManifest("demo-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.NoError(t, err)

	calls := 0
	dyn.PrependReactor("get", "policies", func(action clienttesting.Action) (bool, runtime.Object, error) {
		calls++
		if calls == 1 {
			return true, nil, apierrors.NewServiceUnavailable("apiserver restarting")
		}
		return false, nil, nil
	})

	_, err = policies.Get(ctx, "demo-ip-allow")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestResourceClient_NeverRetriesCreate(t *testing.T) {
	dyn := kubetest.NewDynamicClient()
	policies := kube.NewPolicyClient(dyn, ns, fastBackoff)

	calls := 0
	dyn.PrependReactor("create", "policies", func(action clienttesting.Action) (bool, runtime.Object, error) {
		calls++
		return true, nil, apierrors.NewInternalError(assert.AnError)
	})

	_, err := policies.Create(context.Background(), kube.AccessPolicyManifest("demo-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.Error(t, err)
	assert.Equal(t, 500, kube.StatusCode(err))
	assert.Equal(t, 1, calls)
}

func TestResourceClient_VirtualServersAcrossNamespaces(t *testing.T) {
	dyn := kubetest.NewDynamicClient()
	servers := kube.NewResourceClient(dyn, kube.VirtualServerGVR, fastBackoff)
	ctx := context.Background()

	for _, namespace := range []string{"default", "shop"} {
		obj, err := kube.VirtualServerManifest(namespace, "cafe", models.VirtualServerSpec{
			Host:      "cafe.example.com",
			Upstreams: []models.Upstream{{Name: "backend", Service: "svc", Port: 80}},
		})
		require.NoError(t, err)
		_, err = servers.Create(ctx, namespace, obj)
		require.NoError(t, err)
	}

	all, err := servers.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	shop, err := servers.List(ctx, "shop", "")
	require.NoError(t, err)
	require.Len(t, shop.Items, 1)

	current := shop.Items[0].DeepCopy()
	require.NoError(t, kube.SetVirtualServerSpec(current, models.VirtualServerSpec{
		Host:      "shop.example.com",
		Upstreams: []models.Upstream{{Name: "backend", Service: "svc", Port: 8080}},
	}))
	updated, err := servers.Update(ctx, "shop", current)
	require.NoError(t, err)
	vs, err := kube.VirtualServerFromUnstructured(updated)
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", vs.Spec.Host)
}

func TestUID(t *testing.T) {
	_, err := kube.UID(nil)
	assert.ErrorIs(t, err, kube.ErrMissingUID)

	obj := kube.AccessPolicyManifest("x-ip-deny", models.AccessDeny, []string{"1.1.1.1"})
	_, err = kube.UID(obj)
	assert.ErrorIs(t, err, kube.ErrMissingUID)
}
