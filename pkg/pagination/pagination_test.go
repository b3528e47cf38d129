package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	p, err := Parse(httptest.NewRequest("GET", "/api/v1/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), p)
	assert.Equal(t, 0, p.Offset())
}

func TestParse_Values(t *testing.T) {
	p, err := Parse(httptest.NewRequest("GET", "/api/v1/orders?page=3&per_page=50", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PerPage)
	assert.Equal(t, 100, p.Offset())
}

func TestParse_Invalid(t *testing.T) {
	for _, query := range []string{"page=0", "page=abc", "per_page=0", "per_page=101", "per_page=-3"} {
		t.Run(query, func(t *testing.T) {
			_, err := Parse(httptest.NewRequest("GET", "/api/v1/orders?"+query, nil))
			assert.Error(t, err)
		})
	}
}

func TestNewResult(t *testing.T) {
	r := NewResult([]string{"a", "b"}, 45, Params{Page: 2, PerPage: 20})
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)

	last := NewResult([]string{"a"}, 41, Params{Page: 3, PerPage: 20})
	assert.False(t, last.HasNext)
}

func TestNewResult_EmptyRendersEmptySlice(t *testing.T) {
	r := NewResult[int](nil, 0, DefaultParams())
	assert.NotNil(t, r.Data)
	assert.Equal(t, 0, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.False(t, r.HasPrev)
}
