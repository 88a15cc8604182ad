package payload

// Sort orders accepted by the project list endpoint.
type Sort string

const (
	SortNameAsc  Sort = "name_asc"
	SortNameDesc Sort = "name_desc"
	SortLatest   Sort = "latest"
	SortOldest   Sort = "oldest"
	SortPidDesc  Sort = "pid_desc"
)

const DefaultPerPage = 20

type (
	// ListReqQuery carries the shared pagination parameters (from query).
	ListReqQuery struct {
		Page    int `form:"page,default=1"`
		PerPage int `form:"per_page"`
	}

	Pagination struct {
		Total   int64 `json:"total"`
		PerPage int   `json:"per_page"`
		Page    int   `json:"page"`
		Count   int   `json:"count"`
	}

	ListResp[T any] struct {
		Data       []T        `json:"data"`
		Pagination Pagination `json:"pagination"`
	}
)

// Normalize clamps the pagination request to sane values; a missing or
// non-positive per_page falls back to the default.
func (q *ListReqQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
}
