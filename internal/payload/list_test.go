package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	q := ListReqQuery{}
	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPerPage, q.PerPage)

	q = ListReqQuery{Page: -3, PerPage: 0}
	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPerPage, q.PerPage)

	q = ListReqQuery{Page: 4, PerPage: 50}
	q.Normalize()
	assert.Equal(t, 4, q.Page)
	assert.Equal(t, 50, q.PerPage)
}
