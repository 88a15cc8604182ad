package query

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/quarrel-lab/quarrel/dao/model"
)

// Migrate runs the schema migrations. The initial migration creates every
// table; later schema changes get their own dated entries.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250614-init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Team{},
					&model.TeamMember{},
					&model.Project{},
					&model.ProjectUserSearch{},
					&model.IssuePartition{},
					&model.Issue{},
					&model.IssueComment{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					&model.IssueComment{},
					&model.Issue{},
					&model.IssuePartition{},
					&model.ProjectUserSearch{},
					&model.Project{},
					&model.TeamMember{},
					&model.Team{},
					&model.User{},
				)
			},
		},
	})
	return m.Migrate()
}
