package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	clienttesting "k8s.io/client-go/testing"

	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/metrics"
	"github.com/VEEP09/xc-test-apim/internal/models"
)

func TestIncidentService_RecordAndList(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{UUID: "a", Kind: models.IncidentDeleteOrphan, ClusterUID: "uid-a"}))
	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{UUID: "b", Kind: models.IncidentUpdateStale, Resolved: true}))

	all, err := f.incidents.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := f.incidents.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0].UUID)
}

func TestIncidentService_ReconcileStaleRow(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	created, err := f.allow.CreatePolicy(ctx, "demo", []string{"10.0.0.1"}, models.ApplyRangeHTTP)
	require.NoError(t, err)
	uid := created.Policy.ClusterUID

	f.db.Fail(http.MethodPut, http.StatusInternalServerError)
	_, err = f.allow.UpdatePolicy(ctx, "demo", []string{"10.0.0.2", "10.0.0.3"}, models.ApplyRangeServer)
	require.Error(t, err)
	f.db.Recover()

	before := metrics.ReconcileCount("resolved")
	report, err := f.incidents.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Processed: 1, Resolved: 1}, report)
	assert.Equal(t, before+1, metrics.ReconcileCount("resolved"))

	row, ok := f.db.Row(uid)
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3"}, row.IPArr)
	assert.Equal(t, "server", row.ApplyRange)
	assert.Empty(t, f.openIncidents(t))
}

func TestIncidentService_ReconcileStaleRowOfDeletedPolicy(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.db.Put(ipac.Record{PolicyName: "gone-ip-allow", ID: "uid-gone", IPArr: []string{"10.0.0.1"}})
	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{
		UUID: "stale", Kind: models.IncidentUpdateStale, Mode: models.AccessAllow,
		ResourceName: "gone-ip-allow", ClusterUID: "uid-gone",
	}))

	_, err := f.incidents.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.db.Len())
}

func TestIncidentService_ReconcileOrphanRow(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	f.db.Put(ipac.Record{PolicyName: "old-ip-deny", ID: "uid-old", IPArr: []string{"1.1.1.1"}})
	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{
		UUID: "orphan", Kind: models.IncidentDeleteOrphan, Mode: models.AccessDeny,
		ResourceName: "old-ip-deny", ClusterUID: "uid-old",
	}))

	report, err := f.incidents.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 0, f.db.Len())

	all, err := f.incidents.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)
	assert.NotNil(t, all[0].ResolvedAt)
	assert.Equal(t, 1, all[0].Attempts)
}

func TestIncidentService_ReconcileOrphanClusterResource(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	created, err := f.policies.Create(ctx, kube.AccessPolicyManifest("leak-ip-allow", models.AccessAllow, []string{"10.0.0.1"}))
	require.NoError(t, err)
	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{
		UUID: "leak", Kind: models.IncidentCreateRollbackFailed, Mode: models.AccessAllow,
		ResourceName: "leak-ip-allow", ClusterUID: string(created.GetUID()),
	}))

	report, err := f.incidents.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolved)

	_, err = f.policies.Get(ctx, "leak-ip-allow")
	assert.True(t, kube.IsNotFound(err))
}

func TestIncidentService_ReconcileFailureKeepsIncidentOpen(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()

	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{
		UUID: "orphan", Kind: models.IncidentDeleteOrphan, ResourceName: "x-ip-allow", ClusterUID: "uid-x",
	}))
	require.NoError(t, f.incidents.Record(ctx, &models.SyncIncident{
		UUID: "leak", Kind: models.IncidentCreateRollbackFailed, ResourceName: "y-ip-allow", ClusterUID: "uid-y",
	}))
	f.db.Fail(http.MethodDelete, http.StatusInternalServerError)
	f.dyn.PrependReactor("delete", "policies", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewServiceUnavailable("down")
	})

	report, err := f.incidents.Reconcile(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Equal(t, ReconcileReport{Processed: 2, Failed: 2}, report)

	open := f.openIncidents(t)
	require.Len(t, open, 2)
	for _, incident := range open {
		assert.Equal(t, 1, incident.Attempts)
		assert.NotEmpty(t, incident.LastError)
	}
}

func TestIncidentService_ReconcileUnknownKind(t *testing.T) {
	f := newSyncFixture(t)
	require.NoError(t, f.incidents.Record(context.Background(), &models.SyncIncident{UUID: "odd", Kind: "mystery"}))

	_, err := f.incidents.Reconcile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown incident kind")
}

func TestIncidentService_Schedule(t *testing.T) {
	f := newSyncFixture(t)

	require.NoError(t, f.incidents.Schedule(""))
	assert.Empty(t, f.incidents.Cron.Entries())

	require.NoError(t, f.incidents.Schedule("@every 1h"))
	assert.Len(t, f.incidents.Cron.Entries(), 1)
	f.incidents.Stop()

	assert.Error(t, f.incidents.Schedule("not a schedule"))
}

func TestIsInconsistent(t *testing.T) {
	assert.True(t, IsInconsistent(&PartialUpdateError{Err: errors.New("x")}))
	assert.True(t, IsInconsistent(&PartialDeleteError{Err: errors.New("x")}))
	assert.True(t, IsInconsistent(&DatabaseWriteError{RolledBack: false}))
	assert.False(t, IsInconsistent(&DatabaseWriteError{RolledBack: true}))
	assert.True(t, IsInconsistent(&DatabaseWriteError{RolledBack: true, RowMayExist: true}))
	assert.False(t, IsInconsistent(&ClusterWriteError{StatusCode: 409}))
	assert.False(t, IsInconsistent(nil))
}
