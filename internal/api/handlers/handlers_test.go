package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/VEEP09/xc-test-apim/internal/database"
	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/ipac/ipactest"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/kube/kubetest"
	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/services"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

type testEnv struct {
	router    *gin.Engine
	core      *fake.Clientset
	dyn       *dynamicfake.FakeDynamicClient
	db        *ipactest.Server
	incidents *services.IncidentService
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		core: kubetest.NewClientset(),
		dyn:  kubetest.NewDynamicClient(),
		db:   ipactest.NewServer(),
	}
	t.Cleanup(env.db.Close)

	backoff := util.Backoff{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	policies := kube.NewPolicyClient(env.dyn, "nginx-ingress", backoff)
	index := ipac.NewClient(env.db.BaseURL(), 2*time.Second, backoff)
	env.incidents = services.NewIncidentService(database.OpenTestDB(t), policies, index, 2*time.Second)

	opts := []services.PolicySyncOption{services.WithIncidentRecorder(env.incidents), services.WithTimeout(2 * time.Second)}
	allow := NewIPPolicyHandler(services.NewPolicySyncService(policies, index, models.AccessAllow, opts...))
	deny := NewIPPolicyHandler(services.NewPolicySyncService(policies, index, models.AccessDeny, opts...))

	router := gin.New()
	api := router.Group("/kubeapi")
	allow.RegisterRoutes(api.Group("/ipallow"))
	deny.RegisterRoutes(api.Group("/ipdeny"))
	NewCertificateHandler(services.NewCertificateService(env.core)).RegisterRoutes(api.Group("/certs"))
	NewUpstreamHandler(services.NewUpstreamService(env.core)).RegisterRoutes(api.Group("/upstreams"))
	NewServerHandler(services.NewServerService(kube.NewResourceClient(env.dyn, kube.VirtualServerGVR, backoff))).RegisterRoutes(api.Group("/servers"))
	NewIncidentHandler(env.incidents).RegisterRoutes(api.Group("/incidents"))
	api.GET("/oidc/", NewOidcHandler(services.NewOidcService(policies)).List)
	api.POST("/routes/", CreateRoute)

	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
