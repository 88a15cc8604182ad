package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IssuePartition is the registry row for a project's issue storage. Its
// lifetime equals the project's lifetime: provisioned right after project
// creation, dropped right after project deletion. Issue local ids are
// allocated from NextLocalID so each partition numbers its issues
// independently.
type IssuePartition struct {
	gorm.Model
	ProjectID   uint `gorm:"uniqueIndex;not null"`
	NextLocalID uint `gorm:"not null;default:0;comment:last local issue id handed out"`
}

// Issue lives inside exactly one partition, addressed by
// (ProjectID, LocalID). LocalID is monotonic per partition, so issue ids
// of different projects are independent and may collide.
type Issue struct {
	gorm.Model
	ProjectID   uint           `gorm:"uniqueIndex:idx_partition_issue;not null"`
	LocalID     uint           `gorm:"uniqueIndex:idx_partition_issue;not null"`
	Title       string         `gorm:"type:varchar(30);not null"`
	Description string         `gorm:"type:varchar(5000);not null"`
	Attachments datatypes.JSON `gorm:"comment:uploaded file references"`
	CreatorID   uint           `gorm:"index;not null"`
	AssignTo    *uint          `gorm:"index"`
	Priority    int            `gorm:"not null"`
	Type        int            `gorm:"not null"`
	IsOpen      bool           `gorm:"not null"`
}

// IssueComment is one record of an issue's append-only comment log. Seq is
// monotonic per issue and unique, so a concurrent append either wins its
// sequence number or retries with the next one; a comment is never
// silently overwritten.
type IssueComment struct {
	ID           uint `gorm:"primarykey"`
	ProjectID    uint `gorm:"uniqueIndex:idx_issue_comment_seq;not null"`
	IssueLocalID uint `gorm:"uniqueIndex:idx_issue_comment_seq;not null"`
	Seq          uint `gorm:"uniqueIndex:idx_issue_comment_seq;not null"`
	AuthorID     uint `gorm:"not null"`
	Body         string
	CreatedAt    time.Time
}
