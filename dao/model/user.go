package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	Name     string  `gorm:"uniqueIndex;type:varchar(32);not null;comment:username"`
	Nickname *string `gorm:"type:varchar(32);comment:display name"`
	Email    *string `gorm:"type:varchar(128);comment:notification address"`
	Password *string `gorm:"type:varchar(128);comment:bcrypt hash"`
	Role     Role    `gorm:"type:smallint;not null;comment:platform role (guest, user, admin)"`
	Status   Status  `gorm:"type:smallint;not null;comment:user status (pending, active, inactive)"`
}
