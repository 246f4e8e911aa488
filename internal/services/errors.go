package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPolicyNotFound is returned when the policy database has no matching row.
var ErrPolicyNotFound = errors.New("policy not found")

// ValidationError rejects input before any downstream call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ClusterWriteError reports a failed cluster API write. The policy database
// was not touched.
type ClusterWriteError struct {
	Op         string
	Resource   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ClusterWriteError) Error() string {
	return fmt.Sprintf("cluster %s %s failed (status %d): %s", e.Op, e.Resource, e.StatusCode, e.Message)
}

func (e *ClusterWriteError) Unwrap() error { return e.Err }

// IsConflict reports whether the resource already existed.
func (e *ClusterWriteError) IsConflict() bool { return e.StatusCode == http.StatusConflict }

// ClusterNotFoundError reports that the named cluster resource does not exist.
type ClusterNotFoundError struct {
	Resource string
	Name     string
}

func (e *ClusterNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Name)
}

// DatabaseWriteError reports that the cluster write succeeded but the policy
// database write did not. RolledBack tells whether the cluster resource was
// removed again. RowMayExist is set when the database may have committed
// the row before its answer was lost.
type DatabaseWriteError struct {
	Op          string
	StatusCode  int
	Err         error
	RolledBack  bool
	RollbackErr error
	RowMayExist bool
}

func (e *DatabaseWriteError) Error() string {
	msg := fmt.Sprintf("policy database %s failed: %v", e.Op, e.Err)
	if e.RowMayExist {
		msg += "; database row may exist"
	}
	if e.RolledBack {
		return msg + "; cluster resource rolled back"
	}
	return fmt.Sprintf("%s; rollback failed: %v", msg, e.RollbackErr)
}

func (e *DatabaseWriteError) Unwrap() error { return e.Err }

// Inconsistent reports whether one side may hold a record the other side
// does not know about.
func (e *DatabaseWriteError) Inconsistent() bool { return !e.RolledBack || e.RowMayExist }

// PartialUpdateError reports an updated cluster resource whose database row
// still holds the previous addresses.
type PartialUpdateError struct {
	Policy string
	Err    error
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("policy %q updated in cluster but database update failed: %v", e.Policy, e.Err)
}

func (e *PartialUpdateError) Unwrap() error { return e.Err }

// PartialDeleteError reports a deleted cluster resource whose database row
// is orphaned.
type PartialDeleteError struct {
	Policy string
	UID    string
	Err    error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("policy %q deleted from cluster but database row %s remains: %v", e.Policy, e.UID, e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

// UpstreamUnavailableError reports that a collaborator could not be reached.
type UpstreamUnavailableError struct {
	Upstream string
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// IsInconsistent reports whether err leaves the cluster and the policy
// database disagreeing.
func IsInconsistent(err error) bool {
	var partialUpdate *PartialUpdateError
	var partialDelete *PartialDeleteError
	var dbWrite *DatabaseWriteError
	switch {
	case errors.As(err, &partialUpdate), errors.As(err, &partialDelete):
		return true
	case errors.As(err, &dbWrite):
		return dbWrite.Inconsistent()
	}
	return false
}
