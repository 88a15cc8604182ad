package reconciler

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/dao/query"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, query.Migrate(db))
	return db
}

func TestReconcileProjectRepairsDrift(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	teamID := uint(5)
	project := model.Project{
		Name: "alpha", IsPublic: true, CreatorID: 10, AdminID: 10, TeamID: &teamID,
	}
	require.NoError(t, db.Create(&project).Error)
	require.NoError(t, db.Create(&model.TeamMember{TeamID: teamID, UserID: 10}).Error)
	require.NoError(t, db.Create(&model.TeamMember{TeamID: teamID, UserID: 11}).Error)

	// drifted index: member 11 missing, stray user 99 present, admin's
	// visibility flag out of sync
	require.NoError(t, db.Create(&model.ProjectUserSearch{
		ProjectID: project.ID, UserID: 10, IsPublic: false,
	}).Error)
	require.NoError(t, db.Create(&model.ProjectUserSearch{
		ProjectID: project.ID, UserID: 99, IsPublic: true,
	}).Error)

	require.NoError(t, New(db).ReconcileProject(ctx, &project))

	var entries []model.ProjectUserSearch
	require.NoError(t, db.Where("project_id = ?", project.ID).
		Order("user_id").Find(&entries).Error)
	uids := lo.Map(entries, func(e model.ProjectUserSearch, _ int) uint { return e.UserID })
	assert.Equal(t, []uint{10, 11}, uids)
	for _, e := range entries {
		assert.True(t, e.IsPublic)
	}
}

func TestReconcileProjectWithoutTeam(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	project := model.Project{Name: "solo", IsPublic: false, CreatorID: 10, AdminID: 10}
	require.NoError(t, db.Create(&project).Error)

	require.NoError(t, New(db).ReconcileProject(ctx, &project))

	var entries []model.ProjectUserSearch
	require.NoError(t, db.Where("project_id = ?", project.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(10), entries[0].UserID)
}

func TestReconcileAllIsStableOnCleanState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	project := model.Project{Name: "clean", IsPublic: false, CreatorID: 10, AdminID: 10}
	require.NoError(t, db.Create(&project).Error)
	require.NoError(t, db.Create(&model.ProjectUserSearch{
		ProjectID: project.ID, UserID: 10, IsPublic: false,
	}).Error)

	r := New(db)
	require.NoError(t, r.ReconcileAll(ctx))
	require.NoError(t, r.ReconcileAll(ctx))

	var count int64
	require.NoError(t, db.Model(&model.ProjectUserSearch{}).
		Where("project_id = ?", project.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
