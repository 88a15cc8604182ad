package model

import (
	"gorm.io/gorm"
)

type Team struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;type:varchar(32);not null;comment:team name"`
	Description *string
	CreatorID   uint `gorm:"not null;comment:user who created the team"`
	TeamMembers []TeamMember
}

// TeamMember is the (team, user) membership pair. Projects that name a
// team derive their access index entries from these rows.
type TeamMember struct {
	gorm.Model
	TeamID uint `gorm:"uniqueIndex:idx_team_user;not null"`
	UserID uint `gorm:"uniqueIndex:idx_team_user;not null"`
}
