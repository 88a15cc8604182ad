package model

import (
	"gorm.io/gorm"
)

type Project struct {
	gorm.Model
	Name        string  `gorm:"uniqueIndex;type:varchar(30);not null;comment:project name"`
	Description *string `gorm:"type:varchar(500);comment:project description"`
	IsPublic    bool    `gorm:"type:boolean;not null;comment:visible to every user"`
	CreatorID   uint    `gorm:"not null;comment:user who created the project"`
	AdminID     uint    `gorm:"not null;comment:project administrator"`
	TeamID      *uint   `gorm:"index;comment:team whose members may access the project"`
}

// ProjectUserSearch is the materialized access index: one row per
// (project, user) pair a membership or self grant produced, with the
// project's visibility flag mirrored onto every row. Access checks read
// this table only, never a live join over team membership.
type ProjectUserSearch struct {
	gorm.Model
	ProjectID uint `gorm:"uniqueIndex:idx_project_user;index:idx_project_public;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_project_user;not null"`
	IsPublic  bool `gorm:"index:idx_project_public;not null;comment:mirror of the project visibility flag"`
}

func (ProjectUserSearch) TableName() string {
	return "project_user_searches"
}
