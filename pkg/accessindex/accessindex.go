// Package accessindex maintains the materialized (project, user) →
// visibility mapping. The index is a synchronously maintained cache with
// zero tolerated staleness: every project-visibility or team-membership
// mutation applies its delta before the request returns, and every
// project-level access decision reads this table alone.
package accessindex

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
)

// Filter narrows AccessibleProjectIDs.
type Filter string

const (
	FilterMine    Filter = "mine"    // entries owned by the user
	FilterPublic  Filter = "public"  // entries of public projects, any user
	FilterPrivate Filter = "private" // user's entries on private projects
	FilterAll     Filter = "all"     // user's entries or public projects
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithTx returns a copy of the service bound to the given transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// Seed inserts the creator's own entry at project creation.
func (s *Service) Seed(ctx context.Context, projectID, creatorID uint, isPublic bool) error {
	entry := model.ProjectUserSearch{
		ProjectID: projectID,
		UserID:    creatorID,
		IsPublic:  isPublic,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&entry).Error
	return apperr.Storage(err)
}

// SyncTeamMembers inserts one entry per member of teamID, skipping
// excludeUserID (normally the admin, already seeded). Repeating the call
// is a no-op for pairs that already exist.
func (s *Service) SyncTeamMembers(ctx context.Context, projectID, teamID uint, isPublic bool, excludeUserID uint) error {
	var members []model.TeamMember
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).Find(&members).Error; err != nil {
		return apperr.Storage(err)
	}

	entries := lo.FilterMap(members, func(m model.TeamMember, _ int) (model.ProjectUserSearch, bool) {
		if m.UserID == excludeUserID {
			return model.ProjectUserSearch{}, false
		}
		return model.ProjectUserSearch{
			ProjectID: projectID,
			UserID:    m.UserID,
			IsPublic:  isPublic,
		}, true
	})
	if len(entries) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&entries).Error
	return apperr.Storage(err)
}

// ApplyTeamReassignment applies the delta of moving a project from
// oldTeamID to newTeamID: members of the old team lose their entries
// (except the admin), members of the new team gain theirs.
func (s *Service) ApplyTeamReassignment(ctx context.Context, projectID uint, oldTeamID, newTeamID *uint, adminID uint, isPublic bool) error {
	if oldTeamID != nil && (newTeamID == nil || *oldTeamID != *newTeamID) {
		var oldMembers []model.TeamMember
		if err := s.db.WithContext(ctx).
			Where("team_id = ?", *oldTeamID).Find(&oldMembers).Error; err != nil {
			return apperr.Storage(err)
		}
		uids := lo.FilterMap(oldMembers, func(m model.TeamMember, _ int) (uint, bool) {
			return m.UserID, m.UserID != adminID
		})
		if len(uids) > 0 {
			if err := s.db.WithContext(ctx).Unscoped().
				Where("project_id = ? AND user_id IN ?", projectID, uids).
				Delete(&model.ProjectUserSearch{}).Error; err != nil {
				return apperr.Storage(err)
			}
		}
	}
	if newTeamID != nil {
		return s.SyncTeamMembers(ctx, projectID, *newTeamID, isPublic, adminID)
	}
	return nil
}

// TransferAdmin applies the delta of handing the project to a new admin:
// the new admin gains an entry, the old admin keeps theirs only through
// team membership.
func (s *Service) TransferAdmin(ctx context.Context, projectID uint, oldAdminID, newAdminID uint, teamID *uint, isPublic bool) error {
	if oldAdminID == newAdminID {
		return nil
	}
	if err := s.Seed(ctx, projectID, newAdminID, isPublic); err != nil {
		return err
	}
	if teamID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.TeamMember{}).
			Where("team_id = ? AND user_id = ?", *teamID, oldAdminID).
			Count(&count).Error; err != nil {
			return apperr.Storage(err)
		}
		if count > 0 {
			return nil
		}
	}
	err := s.db.WithContext(ctx).Unscoped().
		Where("project_id = ? AND user_id = ?", projectID, oldAdminID).
		Delete(&model.ProjectUserSearch{}).Error
	return apperr.Storage(err)
}

// PropagateVisibility overwrites the mirrored flag on every entry of the
// project. Runs in the same request that changed the project's own flag,
// so readers never observe a stale mirror.
func (s *Service) PropagateVisibility(ctx context.Context, projectID uint, isPublic bool) error {
	err := s.db.WithContext(ctx).Model(&model.ProjectUserSearch{}).
		Where("project_id = ?", projectID).
		Update("is_public", isPublic).Error
	return apperr.Storage(err)
}

// AccessibleProjectIDs returns the distinct project ids the filter admits.
// No ordering guarantee.
func (s *Service) AccessibleProjectIDs(ctx context.Context, userID uint, filter Filter) ([]uint, error) {
	q := s.db.WithContext(ctx).Model(&model.ProjectUserSearch{}).Distinct("project_id")
	switch filter {
	case FilterMine:
		q = q.Where("user_id = ?", userID)
	case FilterPublic:
		q = q.Where("is_public = ?", true)
	case FilterPrivate:
		q = q.Where("user_id = ? AND is_public = ?", userID, false)
	default: // FilterAll
		q = q.Where("user_id = ? OR is_public = ?", userID, true)
	}

	var ids []uint
	if err := q.Pluck("project_id", &ids).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	return ids, nil
}

// HasAccess reports whether an entry exists for (projectID, userID) or any
// entry for projectID carries visibility=true. Both arms are indexed point
// lookups, never a scan.
func (s *Service) HasAccess(ctx context.Context, projectID, userID uint) (bool, error) {
	var entry model.ProjectUserSearch
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND (user_id = ? OR is_public = ?)", projectID, userID, true).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage(err)
	}
	return true, nil
}

// RemoveMember deletes the user's entries for every project governed by
// teamID. The project admin keeps their entry even when they leave the
// team.
func (s *Service) RemoveMember(ctx context.Context, teamID, userID uint) error {
	var projects []model.Project
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).Find(&projects).Error; err != nil {
		return apperr.Storage(err)
	}
	pids := lo.FilterMap(projects, func(p model.Project, _ int) (uint, bool) {
		return p.ID, p.AdminID != userID
	})
	if len(pids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Unscoped().
		Where("project_id IN ? AND user_id = ?", pids, userID).
		Delete(&model.ProjectUserSearch{}).Error
	return apperr.Storage(err)
}

// DropProject removes every entry of a deleted project. No entry may
// outlive its project.
func (s *Service) DropProject(ctx context.Context, projectID uint) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("project_id = ?", projectID).
		Delete(&model.ProjectUserSearch{}).Error
	return apperr.Storage(err)
}
