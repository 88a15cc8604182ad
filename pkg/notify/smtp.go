package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
	"github.com/quarrel-lab/quarrel/pkg/config"
)

// SMTPDispatcher delivers notifications as mail. Recipients without a
// stored address are skipped silently; that user simply has nowhere to be
// notified.
type SMTPDispatcher struct {
	db     *gorm.DB
	dialer *gomail.Dialer
	sender string
}

func NewSMTPDispatcher(db *gorm.DB, conf *config.Config) *SMTPDispatcher {
	return &SMTPDispatcher{
		db:     db,
		dialer: gomail.NewDialer(conf.SMTP.Host, conf.SMTP.Port, conf.SMTP.User, conf.SMTP.Password),
		sender: conf.SMTP.Notify,
	}
}

func (d *SMTPDispatcher) DispatchAssign(ctx context.Context, n AssignNotification) error {
	subject := fmt.Sprintf("[quarrel] issue %d assigned to you", n.IssueID)
	body := fmt.Sprintf("%s assigned you issue %d (priority %d) in project %d.",
		n.ActorName, n.IssueID, n.Priority, n.ProjectID)
	return d.sendTo(ctx, n.RecipientID, subject, body)
}

func (d *SMTPDispatcher) DispatchComment(ctx context.Context, n CommentNotification) error {
	subject := fmt.Sprintf("[quarrel] new comment on issue %d", n.IssueID)
	body := fmt.Sprintf("A comment was added to issue %d in project %d:\n\n%s",
		n.IssueID, n.ProjectID, n.Comment)
	return d.sendTo(ctx, n.RecipientID, subject, body)
}

func (d *SMTPDispatcher) sendTo(ctx context.Context, uid uint, subject, body string) error {
	var user model.User
	if err := d.db.WithContext(ctx).First(&user, uid).Error; err != nil {
		return fmt.Errorf("resolve recipient %d: %w", uid, err)
	}
	if user.Email == nil || *user.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.sender)
	m.SetHeader("To", *user.Email)
	m.SetHeader("Subject", subject)
	// at-most-once delivery, so give dedup-capable receivers a stable id
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@quarrel>", uuid.NewString()))
	m.SetBody("text/plain", body)
	return d.dialer.DialAndSend(m)
}
