// Package reconciler runs a scheduled consistency sweep over the access
// index. The index is maintained synchronously on every mutation; the
// sweep is a safety net that repairs whatever an interrupted request or a
// manual database edit left behind.
package reconciler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/pkg/logutils"
	"github.com/quarrel-lab/quarrel/pkg/metrics"
)

type Reconciler struct {
	db   *gorm.DB
	cron *cron.Cron
}

func New(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db, cron: cron.New()}
}

// Start schedules the sweep. The schedule uses the cron package's
// syntax, e.g. "@every 10m".
func (r *Reconciler) Start(spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		if err := r.ReconcileAll(context.Background()); err != nil {
			logutils.Log.Error("access index sweep failed: ", err)
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Reconciler) Stop() {
	r.cron.Stop()
}

// ReconcileAll sweeps every live project.
func (r *Reconciler) ReconcileAll(ctx context.Context) error {
	var projects []model.Project
	if err := r.db.WithContext(ctx).Find(&projects).Error; err != nil {
		return err
	}
	for i := range projects {
		if err := r.ReconcileProject(ctx, &projects[i]); err != nil {
			logutils.Log.WithFields(logutils.Fields{
				"project": projects[i].ID,
			}).Error("reconcile failed: ", err)
		}
	}
	return nil
}

// ReconcileProject recomputes {admin} ∪ team members for one project and
// diffs it against the index: missing rows are inserted, strays deleted,
// the mirrored visibility flag realigned.
func (r *Reconciler) ReconcileProject(ctx context.Context, project *model.Project) error {
	want := map[uint]struct{}{project.AdminID: {}}
	if project.TeamID != nil {
		var members []model.TeamMember
		if err := r.db.WithContext(ctx).
			Where("team_id = ?", *project.TeamID).Find(&members).Error; err != nil {
			return err
		}
		for _, m := range members {
			want[m.UserID] = struct{}{}
		}
	}

	var entries []model.ProjectUserSearch
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", project.ID).Find(&entries).Error; err != nil {
		return err
	}
	have := lo.SliceToMap(entries, func(e model.ProjectUserSearch) (uint, model.ProjectUserSearch) {
		return e.UserID, e
	})

	for uid := range want {
		if _, ok := have[uid]; ok {
			continue
		}
		entry := model.ProjectUserSearch{
			ProjectID: project.ID,
			UserID:    uid,
			IsPublic:  project.IsPublic,
		}
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
				DoNothing: true,
			}).
			Create(&entry).Error; err != nil {
			return err
		}
		metrics.IndexReconcileFixes.WithLabelValues("insert").Inc()
	}

	for uid, entry := range have {
		if _, ok := want[uid]; !ok {
			if err := r.db.WithContext(ctx).Unscoped().Delete(&entry).Error; err != nil {
				return err
			}
			metrics.IndexReconcileFixes.WithLabelValues("delete").Inc()
			continue
		}
		if entry.IsPublic != project.IsPublic {
			if err := r.db.WithContext(ctx).Model(&entry).
				Update("is_public", project.IsPublic).Error; err != nil {
				return err
			}
			metrics.IndexReconcileFixes.WithLabelValues("realign").Inc()
		}
	}
	return nil
}
