package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/metrics"
	"github.com/VEEP09/xc-test-apim/internal/models"
)

// ReconcileReport summarises one sweep over open incidents.
type ReconcileReport struct {
	Processed int `json:"processed"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
}

// IncidentService journals dual-write inconsistencies and repairs them.
type IncidentService struct {
	DB   *gorm.DB
	Cron *cron.Cron

	cluster PolicyResources
	index   PolicyIndex
	timeout time.Duration
}

// NewIncidentService builds the journal over db. cluster and index are used by
// Reconcile only.
func NewIncidentService(db *gorm.DB, cluster PolicyResources, index PolicyIndex, timeout time.Duration) *IncidentService {
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	return &IncidentService{
		DB:      db,
		Cron:    cron.New(),
		cluster: cluster,
		index:   index,
		timeout: timeout,
	}
}

// Record stores a new incident.
func (s *IncidentService) Record(ctx context.Context, incident *models.SyncIncident) error {
	if err := s.DB.WithContext(ctx).Create(incident).Error; err != nil {
		return fmt.Errorf("record incident: %w", err)
	}
	logger.Component("incidents").WithField("kind", incident.Kind).
		WithField("resource", incident.ResourceName).Warn("sync incident recorded")
	return nil
}

// List returns incidents newest first.
func (s *IncidentService) List(ctx context.Context, openOnly bool) ([]models.SyncIncident, error) {
	var incidents []models.SyncIncident
	query := s.DB.WithContext(ctx).Order("created_at desc")
	if openOnly {
		query = query.Where("resolved = ?", false)
	}
	if err := query.Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

// Schedule runs Reconcile on spec and starts the scheduler. An empty spec
// leaves the scheduler idle.
func (s *IncidentService) Schedule(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := s.Cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*s.timeout)
		defer cancel()
		if _, err := s.Reconcile(ctx); err != nil {
			logger.Component("incidents").WithError(err).Warn("scheduled reconcile left incidents open")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconcile %q: %w", spec, err)
	}
	s.Cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (s *IncidentService) Stop() {
	<-s.Cron.Stop().Done()
}

// Reconcile tries to repair every open incident. Errors of individual
// incidents are collected; the sweep always visits all of them.
func (s *IncidentService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	open, err := s.List(ctx, true)
	if err != nil {
		return report, err
	}

	var result *multierror.Error
	for i := range open {
		incident := &open[i]
		report.Processed++

		fixErr := s.repair(ctx, incident)
		if fixErr != nil {
			report.Failed++
			metrics.IncReconcile("failed")
			incident.Attempts++
			incident.LastError = fixErr.Error()
			result = multierror.Append(result, fmt.Errorf("%s %s: %w", incident.Kind, incident.ResourceName, fixErr))
		} else {
			report.Resolved++
			metrics.IncReconcile("resolved")
			now := time.Now()
			incident.Attempts++
			incident.Resolved = true
			incident.ResolvedAt = &now
			incident.LastError = ""
		}

		if err := s.DB.WithContext(ctx).Save(incident).Error; err != nil {
			result = multierror.Append(result, fmt.Errorf("save incident %s: %w", incident.UUID, err))
		}
	}

	logger.Component("incidents").WithField("processed", report.Processed).
		WithField("resolved", report.Resolved).WithField("failed", report.Failed).Info("reconcile sweep finished")
	return report, result.ErrorOrNil()
}

func (s *IncidentService) repair(ctx context.Context, incident *models.SyncIncident) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch incident.Kind {
	case models.IncidentCreateRollbackFailed:
		err := s.cluster.Delete(ctx, incident.ResourceName, incident.ClusterUID)
		// 409 means the UID precondition failed: the orphan is gone and a new
		// resource took its name.
		if err == nil || kube.IsNotFound(err) || kube.StatusCode(err) == http.StatusConflict {
			return nil
		}
		return err

	case models.IncidentDeleteOrphan:
		return s.deleteRow(ctx, incident.ClusterUID)

	case models.IncidentUpdateStale:
		current, err := s.cluster.Get(ctx, incident.ResourceName)
		if kube.IsNotFound(err) {
			return s.deleteRow(ctx, incident.ClusterUID)
		}
		if err != nil {
			return err
		}
		if string(current.GetUID()) != incident.ClusterUID {
			return s.deleteRow(ctx, incident.ClusterUID)
		}
		ips, _ := kube.AccessControlIPs(current, incident.Mode)
		return s.index.Update(ctx, incident.ClusterUID, ipac.Record{
			PolicyName: incident.ResourceName,
			ID:         incident.ClusterUID,
			IPArr:      ips,
			ApplyRange: string(incident.ApplyRange),
		})
	}
	return fmt.Errorf("unknown incident kind %q", incident.Kind)
}

func (s *IncidentService) deleteRow(ctx context.Context, uid string) error {
	if err := s.index.Delete(ctx, uid); err != nil && !errors.Is(err, ipac.ErrNotFound) {
		return err
	}
	return nil
}
