// Package access is the thin predicate layer gating every issue request:
// project visibility comes from the access index, issue-level mutation
// rights from the creator/assignee/admin relation.
package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
	"github.com/quarrel-lab/quarrel/pkg/issues"
)

type Checker struct {
	db     *gorm.DB
	index  *accessindex.Service
	engine *issues.Engine
}

func NewChecker(db *gorm.DB, index *accessindex.Service, engine *issues.Engine) *Checker {
	return &Checker{db: db, index: index, engine: engine}
}

// CanAccessProject answers "can user U see/use project P" from the
// materialized index alone.
func (c *Checker) CanAccessProject(ctx context.Context, projectID, userID uint) (bool, error) {
	return c.index.HasAccess(ctx, projectID, userID)
}

// CanMutateIssue reports whether the user is the issue's creator, its
// current assignee, or the project's admin. Project membership by itself
// grants no mutation rights.
func (c *Checker) CanMutateIssue(ctx context.Context, projectID, userID, issueID uint) (bool, error) {
	issue, err := c.engine.Get(ctx, projectID, issueID)
	if err != nil {
		return false, err
	}
	if issue.CreatorID == userID {
		return true, nil
	}
	if issue.AssignTo != nil && *issue.AssignTo == userID {
		return true, nil
	}

	var project model.Project
	err = c.db.WithContext(ctx).First(&project, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperr.ErrNotFound
	}
	if err != nil {
		return false, apperr.Storage(err)
	}
	return project.AdminID == userID, nil
}
