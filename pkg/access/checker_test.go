package access

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
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
	"github.com/quarrel-lab/quarrel/pkg/issues"
	"github.com/quarrel-lab/quarrel/pkg/notify"
	"github.com/quarrel-lab/quarrel/pkg/tenant"
)

const (
	adminUID    = uint(10)
	memberUID   = uint(11)
	assigneeUID = uint(12)
	outsiderUID = uint(13)
)

// newFixture builds a private project (admin 10, member 11) with one issue
// created by the admin and assigned to user 12.
func newFixture(t *testing.T) (*Checker, uint, uint) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, query.Migrate(db))

	ctx := context.Background()
	project := model.Project{Name: "alpha", IsPublic: false, CreatorID: adminUID, AdminID: adminUID}
	require.NoError(t, db.Create(&project).Error)

	index := accessindex.NewService(db)
	require.NoError(t, index.Seed(ctx, project.ID, adminUID, false))
	require.NoError(t, db.Create(&model.ProjectUserSearch{
		ProjectID: project.ID, UserID: memberUID, IsPublic: false,
	}).Error)

	tenants := tenant.NewManager(db)
	require.NoError(t, tenants.Provision(ctx, project.ID))

	engine := issues.NewEngine(db, tenants, notify.NewLogDispatcher())
	issueID, err := engine.Create(ctx, project.ID, issues.Actor{ID: adminUID, Name: "admin"}, issues.CreateRequest{
		Title:       "tracked",
		Description: "something to do",
		AssignTo:    lo.ToPtr(assigneeUID),
		Priority:    1,
		Type:        1,
		IsOpen:      true,
	})
	require.NoError(t, err)

	return NewChecker(db, index, engine), project.ID, issueID
}

func TestCanAccessProject(t *testing.T) {
	checker, projectID, _ := newFixture(t)
	ctx := context.Background()

	for uid, want := range map[uint]bool{
		adminUID:    true,
		memberUID:   true,
		outsiderUID: false,
	} {
		got, err := checker.CanAccessProject(ctx, projectID, uid)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", uid)
	}
}

// Being assigned an issue does not put the assignee in the access index;
// they cannot see the project unless membership or visibility admits them.
func TestAssignmentGrantsNoVisibility(t *testing.T) {
	checker, projectID, _ := newFixture(t)

	ok, err := checker.CanAccessProject(context.Background(), projectID, assigneeUID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanMutateIssue(t *testing.T) {
	checker, projectID, issueID := newFixture(t)
	ctx := context.Background()

	for uid, want := range map[uint]bool{
		adminUID:    true,  // creator and project admin
		assigneeUID: true,  // current assignee
		memberUID:   false, // membership alone grants nothing
		outsiderUID: false,
	} {
		got, err := checker.CanMutateIssue(ctx, projectID, uid, issueID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", uid)
	}
}

func TestCanMutateMissingIssue(t *testing.T) {
	checker, projectID, _ := newFixture(t)

	_, err := checker.CanMutateIssue(context.Background(), projectID, adminUID, 99)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
