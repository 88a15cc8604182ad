// Package issues applies typed mutations to a project's issue partition
// and decides when assignment and comment notifications fire.
package issues

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
	"github.com/quarrel-lab/quarrel/pkg/logutils"
	"github.com/quarrel-lab/quarrel/pkg/metrics"
	"github.com/quarrel-lab/quarrel/pkg/notify"
	"github.com/quarrel-lab/quarrel/pkg/tenant"
)

// appendRetries bounds the optimistic sequence-claim loop of AppendComment.
const appendRetries = 5

type Engine struct {
	db         *gorm.DB
	tenants    *tenant.Manager
	dispatcher notify.Dispatcher
}

func NewEngine(db *gorm.DB, tenants *tenant.Manager, dispatcher notify.Dispatcher) *Engine {
	return &Engine{db: db, tenants: tenants, dispatcher: dispatcher}
}

// Create validates the payload, allocates the next local id of the
// project's partition and inserts the issue. An open issue created with an
// assignee other than the actor emits an assignment notification.
func (e *Engine) Create(ctx context.Context, projectID uint, actor Actor, req CreateRequest) (uint, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	exists, err := e.tenants.Exists(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, apperr.ErrNotFound
	}

	var localID uint
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// atomic increment-and-read keeps local ids unique under
		// concurrent creates on the same partition
		var partition model.IssuePartition
		res := tx.Model(&partition).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "next_local_id"}}}).
			Where("project_id = ?", projectID).
			UpdateColumn("next_local_id", gorm.Expr("next_local_id + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		localID = partition.NextLocalID

		issue := model.Issue{
			ProjectID:   projectID,
			LocalID:     localID,
			Title:       req.Title,
			Description: req.Description,
			Attachments: req.Attachments,
			CreatorID:   actor.ID,
			AssignTo:    req.AssignTo,
			Priority:    req.Priority,
			Type:        req.Type,
			IsOpen:      req.IsOpen,
		}
		return tx.Create(&issue).Error
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, err
		}
		return 0, apperr.Storage(err)
	}
	metrics.IssueMutations.WithLabelValues("create").Inc()

	if req.AssignTo != nil && *req.AssignTo != actor.ID && req.IsOpen {
		e.emitAssign(ctx, notify.AssignNotification{
			RecipientID: *req.AssignTo,
			Priority:    req.Priority,
			ActorName:   actor.Name,
			ProjectID:   projectID,
			IssueID:     localID,
		})
	}
	return localID, nil
}

// Get fetches one issue by its partition-local id.
func (e *Engine) Get(ctx context.Context, projectID, issueID uint) (*model.Issue, error) {
	var issue model.Issue
	err := e.db.WithContext(ctx).
		Where("project_id = ? AND local_id = ?", projectID, issueID).
		First(&issue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &issue, nil
}

// List returns every issue of the partition.
func (e *Engine) List(ctx context.Context, projectID uint) ([]model.Issue, error) {
	var issues []model.Issue
	err := e.db.WithContext(ctx).
		Where("project_id = ?", projectID).Find(&issues).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return issues, nil
}

// Comments returns the issue's comment log in append order.
func (e *Engine) Comments(ctx context.Context, projectID, issueID uint) ([]model.IssueComment, error) {
	var comments []model.IssueComment
	err := e.db.WithContext(ctx).
		Where("project_id = ? AND issue_local_id = ?", projectID, issueID).
		Order("seq").Find(&comments).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return comments, nil
}

// AppendComment appends one record to the issue's comment log. The append
// claims the next per-issue sequence number; a concurrent append losing
// the claim retries with a fresh number, so no comment is ever silently
// dropped. If the issue currently has an assignee, a comment notification
// goes out after the append commits.
func (e *Engine) AppendComment(ctx context.Context, projectID, issueID, authorID uint, body string) error {
	if body == "" {
		return apperr.ValidationField("comment", "comment must not be empty")
	}

	issue, err := e.Get(ctx, projectID, issueID)
	if err != nil {
		return err
	}

	var lastErr error
	for range appendRetries {
		var maxSeq uint
		row := e.db.WithContext(ctx).Model(&model.IssueComment{}).
			Where("project_id = ? AND issue_local_id = ?", projectID, issueID).
			Select("COALESCE(MAX(seq), 0)")
		if err := row.Scan(&maxSeq).Error; err != nil {
			return apperr.Storage(err)
		}

		comment := model.IssueComment{
			ProjectID:    projectID,
			IssueLocalID: issueID,
			Seq:          maxSeq + 1,
			AuthorID:     authorID,
			Body:         body,
		}
		lastErr = e.db.WithContext(ctx).Create(&comment).Error
		if lastErr == nil {
			metrics.IssueMutations.WithLabelValues("comment").Inc()
			if issue.AssignTo != nil {
				e.emitComment(ctx, notify.CommentNotification{
					RecipientID: *issue.AssignTo,
					Comment:     body,
					ProjectID:   projectID,
					IssueID:     issueID,
				})
			}
			return nil
		}
		// sequence number lost to a concurrent append, claim the next one
	}
	return apperr.Storage(lastErr)
}

// SetOpenState flips the open flag. The modification timestamp and the
// flag are two sequential writes; a reader may transiently observe a
// fresh timestamp with the old flag.
func (e *Engine) SetOpenState(ctx context.Context, projectID, issueID uint, isOpen bool) error {
	q := e.db.WithContext(ctx).Model(&model.Issue{}).
		Where("project_id = ? AND local_id = ?", projectID, issueID)

	res := q.UpdateColumn("updated_at", time.Now())
	if res.Error != nil {
		return apperr.Storage(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}

	err := e.db.WithContext(ctx).Model(&model.Issue{}).
		Where("project_id = ? AND local_id = ?", projectID, issueID).
		UpdateColumn("is_open", isOpen).Error
	if err != nil {
		return apperr.Storage(err)
	}
	metrics.IssueMutations.WithLabelValues("toggle").Inc()
	return nil
}

// Update applies a whitelisted partial update. When the assignee changes
// to a different non-null user and the issue ends up open, an assignment
// notification goes to the new assignee, unless the actor assigned the
// issue to themselves.
func (e *Engine) Update(ctx context.Context, projectID, issueID uint, actor Actor, patch UpdatePatch) (*model.Issue, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	prev, err := e.Get(ctx, projectID, issueID)
	if err != nil {
		return nil, err
	}

	updates := patch.fields()
	if len(updates) == 0 {
		return prev, nil
	}

	err = e.db.WithContext(ctx).Model(&model.Issue{}).
		Where("project_id = ? AND local_id = ?", projectID, issueID).
		Updates(updates).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	metrics.IssueMutations.WithLabelValues("update").Inc()

	cur, err := e.Get(ctx, projectID, issueID)
	if err != nil {
		return nil, err
	}

	if cur.AssignTo != nil && *cur.AssignTo != actor.ID && cur.IsOpen &&
		(prev.AssignTo == nil || *prev.AssignTo != *cur.AssignTo) {
		e.emitAssign(ctx, notify.AssignNotification{
			RecipientID: *cur.AssignTo,
			Priority:    cur.Priority,
			ActorName:   actor.Name,
			ProjectID:   projectID,
			IssueID:     issueID,
		})
	}
	return cur, nil
}

// Delete permanently removes the issue and its comment log.
func (e *Engine) Delete(ctx context.Context, projectID, issueID uint) error {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().
			Where("project_id = ? AND local_id = ?", projectID, issueID).
			Delete(&model.Issue{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return tx.Where("project_id = ? AND issue_local_id = ?", projectID, issueID).
			Delete(&model.IssueComment{}).Error
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Storage(err)
	}
	metrics.IssueMutations.WithLabelValues("delete").Inc()
	return nil
}

// Notification emission is decoupled from the mutation: a dispatch failure
// is logged and counted, never surfaced to the caller.
func (e *Engine) emitAssign(ctx context.Context, n notify.AssignNotification) {
	if err := e.dispatcher.DispatchAssign(ctx, n); err != nil {
		metrics.NotificationsEmitted.WithLabelValues("assign", "error").Inc()
		logutils.Log.WithFields(logutils.Fields{
			"recipient": n.RecipientID,
			"project":   n.ProjectID,
			"issue":     n.IssueID,
		}).Warn("assign notification failed: ", err)
		return
	}
	metrics.NotificationsEmitted.WithLabelValues("assign", "ok").Inc()
}

func (e *Engine) emitComment(ctx context.Context, n notify.CommentNotification) {
	if err := e.dispatcher.DispatchComment(ctx, n); err != nil {
		metrics.NotificationsEmitted.WithLabelValues("comment", "error").Inc()
		logutils.Log.WithFields(logutils.Fields{
			"recipient": n.RecipientID,
			"project":   n.ProjectID,
			"issue":     n.IssueID,
		}).Warn("comment notification failed: ", err)
		return
	}
	metrics.NotificationsEmitted.WithLabelValues("comment", "ok").Inc()
}
