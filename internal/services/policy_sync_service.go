package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/VEEP09/xc-test-apim/internal/ipac"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/metrics"
	"github.com/VEEP09/xc-test-apim/internal/models"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

const (
	upstreamCluster  = "cluster API"
	upstreamPolicyDB = "policy database"

	defaultSyncTimeout = 15 * time.Second
)

// PolicyResources is the cluster side of the dual write.
type PolicyResources interface {
	Get(ctx context.Context, name string) (*unstructured.Unstructured, error)
	Create(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	MergePatch(ctx context.Context, name string, patch []byte) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, name, uid string) error
	List(ctx context.Context, selector string) (*unstructured.UnstructuredList, error)
}

// PolicyIndex is the policy database side of the dual write.
type PolicyIndex interface {
	List(ctx context.Context) ([]ipac.Record, error)
	Get(ctx context.Context, id string) (*ipac.Record, error)
	Create(ctx context.Context, rec ipac.Record) error
	Update(ctx context.Context, id string, rec ipac.Record) error
	Delete(ctx context.Context, id string) error
}

// IncidentRecorder journals inconsistencies left by a failed dual write.
type IncidentRecorder interface {
	Record(ctx context.Context, incident *models.SyncIncident) error
}

// Notifier alerts operators; implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Outcome classifies a mutating operation.
type Outcome string

const (
	OutcomeFullSuccess    Outcome = "full_success"
	OutcomeClusterFailure Outcome = "cluster_failure"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeRejected       Outcome = "rejected"
)

// ClusterState describes what the operation left in the cluster.
type ClusterState string

const (
	ClusterUnchanged  ClusterState = "unchanged"
	ClusterCreated    ClusterState = "created"
	ClusterRolledBack ClusterState = "rolled_back"
	ClusterOrphaned   ClusterState = "orphaned"
	ClusterUpdated    ClusterState = "updated"
	ClusterDeleted    ClusterState = "deleted"
)

// SyncResult is returned alongside the error of every mutating operation.
type SyncResult struct {
	Outcome      Outcome             `json:"outcome"`
	Policy       models.AccessPolicy `json:"policy"`
	ClusterState ClusterState        `json:"cluster_state"`
	DatabaseErr  error               `json:"-"`
}

// PolicySyncOption customises a PolicySyncService.
type PolicySyncOption func(*PolicySyncService)

// WithIncidentRecorder journals partial failures.
func WithIncidentRecorder(r IncidentRecorder) PolicySyncOption {
	return func(s *PolicySyncService) { s.incidents = r }
}

// WithNotifier alerts operators about partial failures.
func WithNotifier(n Notifier) PolicySyncOption {
	return func(s *PolicySyncService) { s.notifier = n }
}

// WithTimeout bounds each operation, including its compensation step.
func WithTimeout(d time.Duration) PolicySyncOption {
	return func(s *PolicySyncService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// PolicySyncService keeps IP access policies consistent between NGINX Policy
// resources and the policy database. The cluster is written first; the
// database row is keyed by the UID the cluster assigned.
type PolicySyncService struct {
	cluster   PolicyResources
	index     PolicyIndex
	mode      models.AccessMode
	timeout   time.Duration
	incidents IncidentRecorder
	notifier  Notifier
}

// NewPolicySyncService builds a coordinator for one access mode.
func NewPolicySyncService(cluster PolicyResources, index PolicyIndex, mode models.AccessMode, opts ...PolicySyncOption) *PolicySyncService {
	s := &PolicySyncService{
		cluster: cluster,
		index:   index,
		mode:    mode,
		timeout: defaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the access mode this coordinator manages.
func (s *PolicySyncService) Mode() models.AccessMode { return s.mode }

func (s *PolicySyncService) log(op string, policy models.AccessPolicy) *logrus.Entry {
	return logger.Component("policy-sync").WithFields(logrus.Fields{
		"op":       op,
		"mode":     s.mode,
		"resource": util.SanitizeForLog(policy.ResourceName),
	})
}

// CreatePolicy creates the cluster Policy and then the database row. When the
// database write fails the cluster resource is deleted again. A create that
// failed without a definite answer is checked by reading the row back.
func (s *PolicySyncService) CreatePolicy(ctx context.Context, name string, ips []string, applyRange models.ApplyRange) (SyncResult, error) {
	policy := models.NewAccessPolicy(name, s.mode, ips, applyRange)
	result := SyncResult{Policy: policy, ClusterState: ClusterUnchanged}
	log := s.log("create", policy)

	if err := s.validate(policy); err != nil {
		return s.finish("create", result, OutcomeRejected), err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.cluster.Get(ctx, policy.ResourceName)
	switch {
	case err == nil:
		return s.finish("create", result, OutcomeClusterFailure), &ClusterWriteError{
			Op:         "create",
			Resource:   policy.ResourceName,
			StatusCode: http.StatusConflict,
			Message:    fmt.Sprintf("policy %q already exists", policy.ResourceName),
		}
	case !kube.IsNotFound(err):
		return s.finish("create", result, OutcomeClusterFailure), clusterError("get", policy.ResourceName, err)
	}

	created, err := s.cluster.Create(ctx, kube.AccessPolicyManifest(policy.ResourceName, s.mode, policy.IPs))
	if err != nil {
		return s.finish("create", result, OutcomeClusterFailure), clusterError("create", policy.ResourceName, err)
	}
	result.ClusterState = ClusterCreated

	uid, err := kube.UID(created)
	if err != nil {
		rollbackErr := s.rollbackCreate(ctx, policy, "")
		result.ClusterState = rollbackState(rollbackErr)
		return s.finish("create", result, OutcomeClusterFailure), &ClusterWriteError{
			Op:         "create",
			Resource:   policy.ResourceName,
			StatusCode: http.StatusBadGateway,
			Message:    "cluster API returned the policy without a uid",
			Err:        err,
		}
	}
	policy.ClusterUID = uid
	result.Policy = policy

	if ctxErr := ctx.Err(); ctxErr != nil {
		rollbackErr := s.rollbackCreate(ctx, policy, uid)
		result.ClusterState = rollbackState(rollbackErr)
		if rollbackErr != nil {
			s.reportIncident(ctx, policy, models.IncidentCreateRollbackFailed, rollbackErr)
		}
		return s.finish("create", result, OutcomeClusterFailure), &ClusterWriteError{
			Op:         "create",
			Resource:   policy.ResourceName,
			StatusCode: http.StatusGatewayTimeout,
			Message:    "request ended before the policy database was written",
			Err:        ctxErr,
		}
	}

	if err := s.index.Create(ctx, toRecord(policy)); err != nil {
		var rowMayExist bool
		if code := ipac.StatusCode(err); code == 0 || code >= http.StatusInternalServerError {
			committed, verifyErr := s.rowCommitted(ctx, uid)
			if committed {
				log.WithError(err).WithField("uid", uid).Warn("policy database create answered with an error but the row was committed")
				return s.finish("create", result, OutcomeFullSuccess), nil
			}
			if verifyErr != nil {
				log.WithError(verifyErr).Error("could not verify policy database row after failed create")
				rowMayExist = true
			}
		}

		result.DatabaseErr = err
		rollbackErr := s.rollbackCreate(ctx, policy, uid)
		result.ClusterState = rollbackState(rollbackErr)

		dbErr := &DatabaseWriteError{
			Op:          "create",
			StatusCode:  ipac.StatusCode(err),
			Err:         err,
			RolledBack:  rollbackErr == nil,
			RollbackErr: rollbackErr,
			RowMayExist: rowMayExist,
		}
		if rollbackErr != nil {
			log.WithError(rollbackErr).Error("rollback of cluster policy failed; resource is orphaned")
			s.reportIncident(ctx, policy, models.IncidentCreateRollbackFailed, dbErr)
		}
		if rowMayExist {
			log.WithError(err).Error("policy database row may be orphaned")
			s.reportIncident(ctx, policy, models.IncidentDeleteOrphan, dbErr)
		}
		if !dbErr.Inconsistent() {
			log.WithError(err).Warn("policy database create failed; cluster policy rolled back")
		}
		return s.finish("create", result, OutcomePartialFailure), dbErr
	}

	log.WithField("uid", uid).Info("policy created")
	return s.finish("create", result, OutcomeFullSuccess), nil
}

// UpdatePolicy replaces the address list of an existing policy in the cluster
// and then overwrites the database row.
func (s *PolicySyncService) UpdatePolicy(ctx context.Context, name string, ips []string, applyRange models.ApplyRange) (SyncResult, error) {
	policy := models.NewAccessPolicy(name, s.mode, ips, applyRange)
	result := SyncResult{Policy: policy, ClusterState: ClusterUnchanged}
	log := s.log("update", policy)

	if err := s.validate(policy); err != nil {
		return s.finish("update", result, OutcomeRejected), err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	patch, err := kube.AccessPolicyPatch(s.mode, policy.IPs)
	if err != nil {
		return s.finish("update", result, OutcomeRejected), fmt.Errorf("build patch: %w", err)
	}

	patched, err := s.cluster.MergePatch(ctx, policy.ResourceName, patch)
	if err != nil {
		if kube.IsNotFound(err) {
			return s.finish("update", result, OutcomeClusterFailure), &ClusterNotFoundError{Resource: kube.KindPolicy, Name: policy.ResourceName}
		}
		return s.finish("update", result, OutcomeClusterFailure), clusterError("patch", policy.ResourceName, err)
	}
	result.ClusterState = ClusterUpdated

	uid, err := kube.UID(patched)
	if err != nil {
		return s.finish("update", result, OutcomePartialFailure), &PartialUpdateError{Policy: policy.ResourceName, Err: err}
	}
	policy.ClusterUID = uid
	result.Policy = policy

	if err := s.index.Update(ctx, uid, toRecord(policy)); err != nil {
		result.DatabaseErr = err
		partial := &PartialUpdateError{Policy: policy.ResourceName, Err: err}
		log.WithError(err).Error("policy database update failed; row is stale")
		s.reportIncident(ctx, policy, models.IncidentUpdateStale, partial)
		return s.finish("update", result, OutcomePartialFailure), partial
	}

	log.WithField("uid", uid).Info("policy updated")
	return s.finish("update", result, OutcomeFullSuccess), nil
}

// DeletePolicy removes the cluster Policy and then its database row. The UID
// is read before the delete so the row can be found afterwards.
func (s *PolicySyncService) DeletePolicy(ctx context.Context, name string) (SyncResult, error) {
	policy := models.NewAccessPolicy(name, s.mode, nil, "")
	result := SyncResult{Policy: policy, ClusterState: ClusterUnchanged}
	log := s.log("delete", policy)

	if err := s.validateName(policy); err != nil {
		return s.finish("delete", result, OutcomeRejected), err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	current, err := s.cluster.Get(ctx, policy.ResourceName)
	if err != nil {
		if kube.IsNotFound(err) {
			return s.finish("delete", result, OutcomeClusterFailure), &ClusterNotFoundError{Resource: kube.KindPolicy, Name: policy.ResourceName}
		}
		return s.finish("delete", result, OutcomeClusterFailure), clusterError("get", policy.ResourceName, err)
	}
	uid, err := kube.UID(current)
	if err != nil {
		return s.finish("delete", result, OutcomeClusterFailure), &ClusterWriteError{
			Op:         "delete",
			Resource:   policy.ResourceName,
			StatusCode: http.StatusBadGateway,
			Message:    "cluster API returned the policy without a uid",
			Err:        err,
		}
	}
	policy.ClusterUID = uid
	if ips, ok := kube.AccessControlIPs(current, s.mode); ok {
		policy.IPs = ips
	}
	result.Policy = policy

	if err := s.cluster.Delete(ctx, policy.ResourceName, uid); err != nil {
		if !kube.IsNotFound(err) {
			return s.finish("delete", result, OutcomeClusterFailure), clusterError("delete", policy.ResourceName, err)
		}
		// Gone between the read and the delete; its row still has to go.
		log.WithField("uid", uid).Warn("cluster policy already deleted")
	}
	result.ClusterState = ClusterDeleted

	if err := s.index.Delete(ctx, uid); err != nil && !errors.Is(err, ipac.ErrNotFound) {
		result.DatabaseErr = err
		partial := &PartialDeleteError{Policy: policy.ResourceName, UID: uid, Err: err}
		log.WithError(err).Error("policy database delete failed; row is orphaned")
		s.reportIncident(ctx, policy, models.IncidentDeleteOrphan, partial)
		return s.finish("delete", result, OutcomePartialFailure), partial
	}

	log.WithField("uid", uid).Info("policy deleted")
	return s.finish("delete", result, OutcomeFullSuccess), nil
}

// ListPolicies returns the database rows of this access mode.
func (s *PolicySyncService) ListPolicies(ctx context.Context) ([]models.AccessPolicy, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.index.List(ctx)
	if err != nil {
		return nil, databaseReadError(err)
	}

	policies := make([]models.AccessPolicy, 0, len(rows))
	for _, row := range rows {
		if policy, ok := s.fromRecord(row); ok {
			policies = append(policies, policy)
		}
	}
	return policies, nil
}

// GetPolicy returns the database row stored under the cluster UID id.
func (s *PolicySyncService) GetPolicy(ctx context.Context, id string) (models.AccessPolicy, error) {
	if strings.TrimSpace(id) == "" {
		return models.AccessPolicy{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := s.index.Get(ctx, id)
	if err != nil {
		return models.AccessPolicy{}, databaseReadError(err)
	}
	policy, ok := s.fromRecord(*row)
	if !ok {
		return models.AccessPolicy{}, ErrPolicyNotFound
	}
	return policy, nil
}

func (s *PolicySyncService) validate(policy models.AccessPolicy) error {
	if err := s.validateName(policy); err != nil {
		return err
	}
	if len(policy.IPs) == 0 {
		return &ValidationError{Field: "ips", Reason: "at least one address is required"}
	}
	for _, ip := range policy.IPs {
		if !isValidCIDR(ip) {
			return &ValidationError{Field: "ips", Reason: fmt.Sprintf("%q is not an IP address or CIDR", ip)}
		}
	}
	if !policy.ApplyRange.IsValid() {
		return &ValidationError{Field: "apply_range", Reason: fmt.Sprintf("%q is not one of http, server, location", policy.ApplyRange)}
	}
	return nil
}

func (s *PolicySyncService) validateName(policy models.AccessPolicy) error {
	if policy.PolicyName == "" {
		return &ValidationError{Field: "policy_name", Reason: "must not be empty"}
	}
	if errs := validation.IsDNS1123Subdomain(policy.ResourceName); len(errs) > 0 {
		return &ValidationError{Field: "policy_name", Reason: strings.Join(errs, "; ")}
	}
	return nil
}

// isValidCIDR accepts a single address or CIDR notation.
func isValidCIDR(value string) bool {
	if ip := net.ParseIP(value); ip != nil {
		return true
	}
	_, _, err := net.ParseCIDR(value)
	return err == nil
}

// rollbackCreate deletes a freshly created resource on a context that
// survives cancellation of the request. A resource that is already gone
// counts as rolled back.
func (s *PolicySyncService) rollbackCreate(ctx context.Context, policy models.AccessPolicy, uid string) error {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.cluster.Delete(rollbackCtx, policy.ResourceName, uid)
	if err == nil || kube.IsNotFound(err) {
		return nil
	}
	return err
}

// rowCommitted looks up the row of a create whose answer was lost. A nil
// error with false means the row is definitely absent.
func (s *PolicySyncService) rowCommitted(ctx context.Context, uid string) (bool, error) {
	verifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	row, err := s.index.Get(verifyCtx, uid)
	switch {
	case err == nil:
		return row.ID == uid, nil
	case errors.Is(err, ipac.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func rollbackState(rollbackErr error) ClusterState {
	if rollbackErr != nil {
		return ClusterOrphaned
	}
	return ClusterRolledBack
}

func (s *PolicySyncService) reportIncident(ctx context.Context, policy models.AccessPolicy, kind models.IncidentKind, cause error) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if s.incidents != nil {
		incident := &models.SyncIncident{
			UUID:         uuid.NewString(),
			Kind:         kind,
			Mode:         s.mode,
			PolicyName:   policy.PolicyName,
			ResourceName: policy.ResourceName,
			ClusterUID:   policy.ClusterUID,
			ApplyRange:   policy.ApplyRange,
			Detail:       cause.Error(),
		}
		if err := s.incidents.Record(detached, incident); err != nil {
			s.log("incident", policy).WithError(err).Error("failed to journal sync incident")
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(detached,
			fmt.Sprintf("Policy %s inconsistent (%s)", policy.ResourceName, kind),
			cause.Error())
	}
}

func (s *PolicySyncService) finish(op string, result SyncResult, outcome Outcome) SyncResult {
	result.Outcome = outcome
	metrics.IncPolicySync(string(s.mode)+"_"+op, string(outcome))
	return result
}

func (s *PolicySyncService) fromRecord(row ipac.Record) (models.AccessPolicy, bool) {
	name, ok := models.PolicyNameFromResource(row.PolicyName, s.mode)
	if !ok {
		return models.AccessPolicy{}, false
	}
	return models.AccessPolicy{
		PolicyName:   name,
		ResourceName: row.PolicyName,
		Mode:         s.mode,
		IPs:          row.IPArr,
		ApplyRange:   models.ApplyRange(row.ApplyRange),
		ClusterUID:   row.ID,
	}, true
}

func toRecord(policy models.AccessPolicy) ipac.Record {
	return ipac.Record{
		PolicyName: policy.ResourceName,
		ID:         policy.ClusterUID,
		IPArr:      policy.IPs,
		ApplyRange: string(policy.ApplyRange),
	}
}

// clusterError classifies a failed cluster call. Errors without an API status
// mean the API server was not reached.
func clusterError(op, resource string, err error) error {
	code := kube.StatusCode(err)
	if code == 0 {
		return &UpstreamUnavailableError{Upstream: upstreamCluster, Err: err}
	}
	return &ClusterWriteError{Op: op, Resource: resource, StatusCode: code, Message: kube.Message(err), Err: err}
}

func databaseReadError(err error) error {
	if errors.Is(err, ipac.ErrNotFound) {
		return ErrPolicyNotFound
	}
	var transportErr *ipac.TransportError
	if errors.As(err, &transportErr) {
		return &UpstreamUnavailableError{Upstream: upstreamPolicyDB, Err: err}
	}
	return err
}
