package tenant

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/dao/query"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
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

func TestProvisionAndExists(t *testing.T) {
	db := newTestDB(t)
	mgr := NewManager(db)
	ctx := context.Background()

	exists, err := mgr.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, mgr.Provision(ctx, 1))

	exists, err = mgr.Exists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProvisionTwiceFails(t *testing.T) {
	db := newTestDB(t)
	mgr := NewManager(db)
	ctx := context.Background()

	require.NoError(t, mgr.Provision(ctx, 1))
	err := mgr.Provision(ctx, 1)
	require.ErrorIs(t, err, ErrAlreadyProvisioned)
}

func TestDecommissionCascades(t *testing.T) {
	db := newTestDB(t)
	mgr := NewManager(db)
	ctx := context.Background()

	require.NoError(t, mgr.Provision(ctx, 1))
	require.NoError(t, mgr.Provision(ctx, 2))

	require.NoError(t, db.Create(&model.Issue{
		ProjectID: 1, LocalID: 1, Title: "a", Description: "b", CreatorID: 10, IsOpen: true,
	}).Error)
	require.NoError(t, db.Create(&model.IssueComment{
		ProjectID: 1, IssueLocalID: 1, Seq: 1, AuthorID: 10, Body: "hi",
	}).Error)
	require.NoError(t, db.Create(&model.Issue{
		ProjectID: 2, LocalID: 1, Title: "a", Description: "b", CreatorID: 10, IsOpen: true,
	}).Error)

	require.NoError(t, mgr.Decommission(ctx, 1))

	exists, err := mgr.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)

	var issues int64
	require.NoError(t, db.Unscoped().Model(&model.Issue{}).
		Where("project_id = ?", 1).Count(&issues).Error)
	assert.Zero(t, issues)

	var comments int64
	require.NoError(t, db.Model(&model.IssueComment{}).
		Where("project_id = ?", 1).Count(&comments).Error)
	assert.Zero(t, comments)

	// the other partition is untouched
	require.NoError(t, db.Model(&model.Issue{}).
		Where("project_id = ?", 2).Count(&issues).Error)
	assert.Equal(t, int64(1), issues)

	// a fresh partition for the same project id starts numbering at 1 again
	require.NoError(t, mgr.Provision(ctx, 1))
}

func TestDecommissionMissingPartition(t *testing.T) {
	db := newTestDB(t)
	mgr := NewManager(db)

	err := mgr.Decommission(context.Background(), 42)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
