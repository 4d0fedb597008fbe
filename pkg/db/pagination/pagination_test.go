package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id        int64
	createdAt time.Time
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
}

func TestTrimAndParseRoundTrip(t *testing.T) {
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	items := []row{{3, base}, {2, base.Add(-time.Minute)}, {1, base.Add(-2 * time.Minute)}}

	page, info := Trim(items, 2, func(r row) (int64, time.Time) { return r.id, r.createdAt })
	require.Len(t, page, 2)
	assert.True(t, info.HasMore)

	cursor, err := ParseToken(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor.ID)
	assert.True(t, cursor.CreatedAt.Equal(base.Add(-time.Minute)))
}

func TestTrimLastPage(t *testing.T) {
	page, info := Trim([]row{{1, time.Now()}}, 2, func(r row) (int64, time.Time) { return r.id, r.createdAt })
	assert.Len(t, page, 1)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	cursor, err := ParseToken("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)

	_, err = ParseToken("not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}
