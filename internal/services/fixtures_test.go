package services

import (
	"context"
	"sync"
	"testing"
	"time"

	dynamicfake "k8s.io/client-go/dynamic/fake"

	"github.com/VEEP09/xc-test-apim/internal/database"
	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/ipac/ipactest"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/kube/kubetest"
	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

const testNamespace = "nginx-ingress"

var testBackoff = util.Backoff{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(_ context.Context, title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

type syncFixture struct {
	dyn       *dynamicfake.FakeDynamicClient
	policies  *kube.PolicyClient
	db        *ipactest.Server
	index     *ipac.Client
	incidents *IncidentService
	notifier  *recordingNotifier
	allow     *PolicySyncService
	deny      *PolicySyncService
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	f := &syncFixture{
		dyn:      kubetest.NewDynamicClient(),
		db:       ipactest.NewServer(),
		notifier: &recordingNotifier{},
	}
	t.Cleanup(f.db.Close)

	f.policies = kube.NewPolicyClient(f.dyn, testNamespace, testBackoff)
	f.index = ipac.NewClient(f.db.BaseURL(), 2*time.Second, testBackoff)
	f.incidents = NewIncidentService(database.OpenTestDB(t), f.policies, f.index, 2*time.Second)

	opts := []PolicySyncOption{
		WithIncidentRecorder(f.incidents),
		WithNotifier(f.notifier),
		WithTimeout(2 * time.Second),
	}
	f.allow = NewPolicySyncService(f.policies, f.index, models.AccessAllow, opts...)
	f.deny = NewPolicySyncService(f.policies, f.index, models.AccessDeny, opts...)
	return f
}

func (f *syncFixture) openIncidents(t *testing.T) []models.SyncIncident {
	t.Helper()
	incidents, err := f.incidents.List(context.Background(), true)
	if err != nil {
		t.Fatalf("list incidents: %v", err)
	}
	return incidents
}
