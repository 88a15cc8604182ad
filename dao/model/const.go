// Constants mapped to database columns.
// Gin rejects zero values for fields tagged `required`, so every enum
// starts at iota + 1 and the zero value stays invalid.
package model

// User role in the platform
type Role uint8

const (
	RoleGuest Role = iota + 1
	RoleUser
	RoleAdmin
)

// User and project status
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusActive
	StatusInactive
)
