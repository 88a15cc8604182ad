package notify

import (
	"context"

	"github.com/quarrel-lab/quarrel/pkg/logutils"
)

// LogDispatcher writes notifications to the log. Used in development and
// whenever SMTP is not configured.
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) DispatchAssign(_ context.Context, n AssignNotification) error {
	logutils.Log.WithFields(logutils.Fields{
		"recipient": n.RecipientID,
		"priority":  n.Priority,
		"actor":     n.ActorName,
		"project":   n.ProjectID,
		"issue":     n.IssueID,
	}).Info("assign notification")
	return nil
}

func (d *LogDispatcher) DispatchComment(_ context.Context, n CommentNotification) error {
	logutils.Log.WithFields(logutils.Fields{
		"recipient": n.RecipientID,
		"project":   n.ProjectID,
		"issue":     n.IssueID,
	}).Info("comment notification")
	return nil
}
