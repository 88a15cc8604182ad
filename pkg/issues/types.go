package issues

import (
	"unicode/utf8"

	"gorm.io/datatypes"

	"github.com/quarrel-lab/quarrel/pkg/apperr"
)

const (
	maxTitleLen       = 30
	maxDescriptionLen = 5000
)

// Actor identifies the authenticated caller of a mutation.
type Actor struct {
	ID   uint
	Name string
}

// CreateRequest is the payload of Engine.Create.
type CreateRequest struct {
	Title       string
	Description string
	Attachments datatypes.JSON
	AssignTo    *uint
	Priority    int
	Type        int
	IsOpen      bool
}

func (r CreateRequest) validate() error {
	fields := map[string]string{}
	if r.Title == "" {
		fields["title"] = "title is required"
	} else if utf8.RuneCountInString(r.Title) > maxTitleLen {
		fields["title"] = "title must be at most 30 characters"
	}
	if r.Description == "" {
		fields["description"] = "description is required"
	} else if utf8.RuneCountInString(r.Description) > maxDescriptionLen {
		fields["description"] = "description must be at most 5000 characters"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// UpdatePatch is the whitelisted partial update of Engine.Update. Nil
// fields stay untouched. AssignTo pointing at zero clears the assignee;
// zero is never a valid user id.
type UpdatePatch struct {
	Title       *string
	Description *string
	IsOpen      *bool
	Priority    *int
	Type        *int
	AssignTo    *uint
	Attachments datatypes.JSON
}

func (p UpdatePatch) validate() error {
	fields := map[string]string{}
	if p.Title != nil && (*p.Title == "" || utf8.RuneCountInString(*p.Title) > maxTitleLen) {
		fields["title"] = "title must be 1 to 30 characters"
	}
	if p.Description != nil && utf8.RuneCountInString(*p.Description) > maxDescriptionLen {
		fields["description"] = "description must be at most 5000 characters"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

// fields builds the column map Updates applies. Only whitelisted columns
// ever appear here.
func (p UpdatePatch) fields() map[string]any {
	updates := map[string]any{}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.IsOpen != nil {
		updates["is_open"] = *p.IsOpen
	}
	if p.Priority != nil {
		updates["priority"] = *p.Priority
	}
	if p.Type != nil {
		updates["type"] = *p.Type
	}
	if p.AssignTo != nil {
		if *p.AssignTo == 0 {
			updates["assign_to"] = nil
		} else {
			updates["assign_to"] = *p.AssignTo
		}
	}
	if p.Attachments != nil {
		updates["attachments"] = p.Attachments
	}
	return updates
}
