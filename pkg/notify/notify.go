// Package notify carries the notification contract: two tagged message
// variants delivered through an injected dispatcher. Delivery is
// best-effort and at-most-once; retry and backoff policy belongs to the
// dispatcher implementation, never to the mutation path that emits.
package notify

import (
	"context"
)

// AssignNotification is emitted when an open issue gains a new assignee.
type AssignNotification struct {
	RecipientID uint
	Priority    int
	ActorName   string
	ProjectID   uint
	IssueID     uint
}

// CommentNotification is emitted when a comment lands on an issue that
// currently has an assignee.
type CommentNotification struct {
	RecipientID uint
	Comment     string
	ProjectID   uint
	IssueID     uint
}

// Dispatcher is implemented by every notification transport. A dispatch
// error must not fail the mutation that triggered it.
type Dispatcher interface {
	DispatchAssign(ctx context.Context, n AssignNotification) error
	DispatchComment(ctx context.Context, n CommentNotification) error
}
