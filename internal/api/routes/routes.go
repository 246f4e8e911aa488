package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/VEEP09/xc-test-apim/internal/api/handlers"
	"github.com/VEEP09/xc-test-apim/internal/config"
	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/metrics"
	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/services"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

const maxRetryDelay = 2 * time.Second

// Services holds every service behind the HTTP surface. The reconcile CLI
// command builds the same set without a router.
type Services struct {
	Allow        *services.PolicySyncService
	Deny         *services.PolicySyncService
	Incidents    *services.IncidentService
	Notifier     *services.NotificationService
	Certificates *services.CertificateService
	Upstreams    *services.UpstreamService
	Servers      *services.ServerService
	Oidc         *services.OidcService
}

// NewServices wires the policy coordinator, the incident journal and the
// plain resource services from configuration.
func NewServices(cfg config.Config, clients *kube.Clients, db *gorm.DB) *Services {
	backoff := util.Backoff{MaxRetries: cfg.RetryMax, BaseDelay: cfg.RetryBaseDelay, MaxDelay: maxRetryDelay}

	policies := kube.NewPolicyClient(clients.Dynamic, cfg.Namespace, backoff)
	index := ipac.NewClient(cfg.PolicyDBURL, cfg.RequestTimeout, backoff)
	notifier := services.NewNotificationService(cfg.NotifyURLs)
	incidents := services.NewIncidentService(db, policies, index, cfg.RequestTimeout)

	opts := []services.PolicySyncOption{
		services.WithIncidentRecorder(incidents),
		services.WithNotifier(notifier),
		services.WithTimeout(cfg.RequestTimeout),
	}

	return &Services{
		Allow:        services.NewPolicySyncService(policies, index, models.AccessAllow, opts...),
		Deny:         services.NewPolicySyncService(policies, index, models.AccessDeny, opts...),
		Incidents:    incidents,
		Notifier:     notifier,
		Certificates: services.NewCertificateService(clients.Core),
		Upstreams:    services.NewUpstreamService(clients.Core),
		Servers:      services.NewServerService(kube.NewResourceClient(clients.Dynamic, kube.VirtualServerGVR, backoff)),
		Oidc:         services.NewOidcService(policies),
	}
}

// Register mounts /health, /metrics and the /kubeapi groups.
func Register(router *gin.Engine, svc *Services, registry *prometheus.Registry) {
	router.GET("/health", handlers.HealthHandler)

	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/kubeapi")

	handlers.NewIPPolicyHandler(svc.Allow).RegisterRoutes(api.Group("/ipallow"))
	handlers.NewIPPolicyHandler(svc.Deny).RegisterRoutes(api.Group("/ipdeny"))
	handlers.NewCertificateHandler(svc.Certificates).RegisterRoutes(api.Group("/certs"))
	handlers.NewUpstreamHandler(svc.Upstreams).RegisterRoutes(api.Group("/upstreams"))
	handlers.NewServerHandler(svc.Servers).RegisterRoutes(api.Group("/servers"))
	handlers.NewIncidentHandler(svc.Incidents).RegisterRoutes(api.Group("/incidents"))

	api.GET("/oidc/", handlers.NewOidcHandler(svc.Oidc).List)
	api.POST("/routes/", handlers.CreateRoute)
}
