// Package tenant manages the lifecycle of per-project issue partitions.
// Storage is a single partitioned table keyed by (project_id, local_id)
// with a registry row per partition, so partition lifetime can be bound
// exactly to project lifetime without one schema object per tenant.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
)

// ErrAlreadyProvisioned reports a second Provision call for the same
// project id. Project ids are unique and monotonically assigned, so this
// is a caller bug, not a condition to paper over.
var ErrAlreadyProvisioned = errors.New("issue partition already provisioned")

type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// WithTx returns a copy of the manager bound to the given transaction.
func (m *Manager) WithTx(tx *gorm.DB) *Manager {
	return &Manager{db: tx}
}

// Provision allocates the issue partition for a freshly created project.
func (m *Manager) Provision(ctx context.Context, projectID uint) error {
	partition := model.IssuePartition{ProjectID: projectID}
	err := m.db.WithContext(ctx).Create(&partition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return fmt.Errorf("project %d: %w", projectID, ErrAlreadyProvisioned)
		}
		return apperr.Storage(err)
	}
	return nil
}

// Decommission irreversibly deletes the partition and everything in it.
// Callers must run it only after the project row itself is deleted and
// must treat project-delete plus decommission as one logical unit; issue
// mutations on the tenant have to be drained first.
func (m *Manager) Decommission(ctx context.Context, projectID uint) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var partition model.IssuePartition
		if err := tx.Where("project_id = ?", projectID).First(&partition).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		if err := tx.Where("project_id = ?", projectID).
			Delete(&model.IssueComment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("project_id = ?", projectID).
			Delete(&model.Issue{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&partition).Error
	})
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return apperr.Storage(err)
	}
	return err
}

// Exists reports whether the project's partition is live. Issue creation
// checks it so an issue can never land outside a provisioned partition.
func (m *Manager) Exists(ctx context.Context, projectID uint) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&model.IssuePartition{}).
		Where("project_id = ?", projectID).Count(&count).Error
	if err != nil {
		return false, apperr.Storage(err)
	}
	return count > 0, nil
}

// isUniqueViolation matches driver-specific duplicate key errors that
// gorm does not translate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
