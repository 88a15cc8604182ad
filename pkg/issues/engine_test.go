package issues

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/dao/query"
	"github.com/quarrel-lab/quarrel/pkg/apperr"
	"github.com/quarrel-lab/quarrel/pkg/notify"
	"github.com/quarrel-lab/quarrel/pkg/tenant"
)

// fakeDispatcher records every notification; fail makes both dispatch
// methods error so the best-effort contract can be checked.
type fakeDispatcher struct {
	assigns  []notify.AssignNotification
	comments []notify.CommentNotification
	fail     bool
}

func (f *fakeDispatcher) DispatchAssign(_ context.Context, n notify.AssignNotification) error {
	if f.fail {
		return errors.New("dispatch down")
	}
	f.assigns = append(f.assigns, n)
	return nil
}

func (f *fakeDispatcher) DispatchComment(_ context.Context, n notify.CommentNotification) error {
	if f.fail {
		return errors.New("dispatch down")
	}
	f.comments = append(f.comments, n)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *fakeDispatcher) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, query.Migrate(db))

	dispatcher := &fakeDispatcher{}
	tenants := tenant.NewManager(db)
	require.NoError(t, tenants.Provision(context.Background(), 1))
	return NewEngine(db, tenants, dispatcher), db, dispatcher
}

var actor = Actor{ID: 10, Name: "alice"}

func someIssue() CreateRequest {
	return CreateRequest{
		Title:       "broken login",
		Description: "login fails with a 500",
		Priority:    2,
		Type:        1,
		IsOpen:      true,
	}
}

func TestCreateAllocatesLocalIDs(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	req := someIssue()
	req.Title = "second"
	second, err := e.Create(ctx, 1, actor, req)
	require.NoError(t, err)
	assert.Equal(t, uint(2), second)

	issue, err := e.Get(ctx, 1, first)
	require.NoError(t, err)
	assert.Equal(t, "broken login", issue.Title)
	assert.Equal(t, actor.ID, issue.CreatorID)
	assert.True(t, issue.IsOpen)
}

func TestCreateOnMissingPartition(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Create(context.Background(), 99, actor, someIssue())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	req := someIssue()
	req.Title = ""
	_, err := e.Create(ctx, 1, actor, req)
	_, ok := apperr.IsValidation(err)
	require.True(t, ok)

	req = someIssue()
	req.Title = "this title is way past the thirty character limit"
	_, err = e.Create(ctx, 1, actor, req)
	_, ok = apperr.IsValidation(err)
	require.True(t, ok)
}

func TestCreateAssignNotification(t *testing.T) {
	e, _, dispatcher := newTestEngine(t)
	ctx := context.Background()

	// no assignee, no notification
	_, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)
	assert.Empty(t, dispatcher.assigns)

	// self-assignment stays silent
	req := someIssue()
	req.Title = "self"
	req.AssignTo = lo.ToPtr(actor.ID)
	_, err = e.Create(ctx, 1, actor, req)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.assigns)

	// a closed issue never notifies its assignee
	req = someIssue()
	req.Title = "closed"
	req.AssignTo = lo.ToPtr(uint(20))
	req.IsOpen = false
	_, err = e.Create(ctx, 1, actor, req)
	require.NoError(t, err)
	assert.Empty(t, dispatcher.assigns)

	req = someIssue()
	req.Title = "for bob"
	req.AssignTo = lo.ToPtr(uint(20))
	id, err := e.Create(ctx, 1, actor, req)
	require.NoError(t, err)
	require.Len(t, dispatcher.assigns, 1)
	n := dispatcher.assigns[0]
	assert.Equal(t, uint(20), n.RecipientID)
	assert.Equal(t, "alice", n.ActorName)
	assert.Equal(t, uint(1), n.ProjectID)
	assert.Equal(t, id, n.IssueID)
	assert.Equal(t, 2, n.Priority)
}

func TestDispatchFailureDoesNotFailMutation(t *testing.T) {
	e, _, dispatcher := newTestEngine(t)
	dispatcher.fail = true

	req := someIssue()
	req.AssignTo = lo.ToPtr(uint(20))
	_, err := e.Create(context.Background(), 1, actor, req)
	require.NoError(t, err)
}

func TestAppendCommentSequence(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)

	require.NoError(t, e.AppendComment(ctx, 1, id, 10, "first"))
	require.NoError(t, e.AppendComment(ctx, 1, id, 11, "second"))
	require.NoError(t, e.AppendComment(ctx, 1, id, 10, "third"))

	comments, err := e.Comments(ctx, 1, id)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	for i, c := range comments {
		assert.Equal(t, uint(i+1), c.Seq)
	}
	bodies := lo.Map(comments, func(c model.IssueComment, _ int) string { return c.Body })
	assert.Equal(t, []string{"first", "second", "third"}, bodies)
}

func TestAppendCommentValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)

	err = e.AppendComment(ctx, 1, id, 10, "")
	_, ok := apperr.IsValidation(err)
	require.True(t, ok)

	err = e.AppendComment(ctx, 1, 99, 10, "hello")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAppendCommentNotifiesAssignee(t *testing.T) {
	e, _, dispatcher := newTestEngine(t)
	ctx := context.Background()

	unassigned, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)
	require.NoError(t, e.AppendComment(ctx, 1, unassigned, 10, "nobody to tell"))
	assert.Empty(t, dispatcher.comments)

	req := someIssue()
	req.Title = "assigned"
	req.AssignTo = lo.ToPtr(uint(20))
	assigned, err := e.Create(ctx, 1, actor, req)
	require.NoError(t, err)

	require.NoError(t, e.AppendComment(ctx, 1, assigned, 11, "ping"))
	require.Len(t, dispatcher.comments, 1)
	assert.Equal(t, uint(20), dispatcher.comments[0].RecipientID)
	assert.Equal(t, "ping", dispatcher.comments[0].Comment)
}

func TestSetOpenState(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)

	before, err := e.Get(ctx, 1, id)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.SetOpenState(ctx, 1, id, false))

	after, err := e.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.False(t, after.IsOpen)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	require.NoError(t, e.SetOpenState(ctx, 1, id, true))
	after, err = e.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, after.IsOpen)

	err = e.SetOpenState(ctx, 1, 99, true)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdatePatch(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)

	cur, err := e.Update(ctx, 1, id, actor, UpdatePatch{
		Title:    lo.ToPtr("renamed"),
		Priority: lo.ToPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", cur.Title)
	assert.Equal(t, 3, cur.Priority)
	// untouched fields survive the patch
	assert.Equal(t, "login fails with a 500", cur.Description)

	// empty patch is a no-op
	cur, err = e.Update(ctx, 1, id, actor, UpdatePatch{})
	require.NoError(t, err)
	assert.Equal(t, "renamed", cur.Title)

	_, err = e.Update(ctx, 1, id, actor, UpdatePatch{Title: lo.ToPtr("")})
	_, ok := apperr.IsValidation(err)
	require.True(t, ok)

	_, err = e.Update(ctx, 1, 99, actor, UpdatePatch{Title: lo.ToPtr("x")})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateAssignNotification(t *testing.T) {
	e, _, dispatcher := newTestEngine(t)
	ctx := context.Background()

	id, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)

	// assigning to someone else notifies them
	_, err = e.Update(ctx, 1, id, actor, UpdatePatch{AssignTo: lo.ToPtr(uint(20))})
	require.NoError(t, err)
	require.Len(t, dispatcher.assigns, 1)
	assert.Equal(t, uint(20), dispatcher.assigns[0].RecipientID)

	// re-saving the same assignee stays silent
	_, err = e.Update(ctx, 1, id, actor, UpdatePatch{AssignTo: lo.ToPtr(uint(20))})
	require.NoError(t, err)
	assert.Len(t, dispatcher.assigns, 1)

	// self-assignment stays silent
	_, err = e.Update(ctx, 1, id, actor, UpdatePatch{AssignTo: lo.ToPtr(actor.ID)})
	require.NoError(t, err)
	assert.Len(t, dispatcher.assigns, 1)

	// assignment on a closed issue stays silent
	require.NoError(t, e.SetOpenState(ctx, 1, id, false))
	_, err = e.Update(ctx, 1, id, actor, UpdatePatch{AssignTo: lo.ToPtr(uint(21))})
	require.NoError(t, err)
	assert.Len(t, dispatcher.assigns, 1)
}

func TestUpdateClearsAssignee(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	req := someIssue()
	req.AssignTo = lo.ToPtr(uint(20))
	id, err := e.Create(ctx, 1, actor, req)
	require.NoError(t, err)

	cur, err := e.Update(ctx, 1, id, actor, UpdatePatch{AssignTo: lo.ToPtr(uint(0))})
	require.NoError(t, err)
	assert.Nil(t, cur.AssignTo)
}

func TestDelete(t *testing.T) {
	e, db, _ := newTestEngine(t)
	ctx := context.Background()

	id, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)
	require.NoError(t, e.AppendComment(ctx, 1, id, 10, "soon gone"))

	require.NoError(t, e.Delete(ctx, 1, id))

	_, err = e.Get(ctx, 1, id)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var comments int64
	require.NoError(t, db.Model(&model.IssueComment{}).
		Where("project_id = ? AND issue_local_id = ?", 1, id).Count(&comments).Error)
	assert.Zero(t, comments)

	err = e.Delete(ctx, 1, id)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// local ids are never reused after a delete
	next, err := e.Create(ctx, 1, actor, someIssue())
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
}
