package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	for in, want := range map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit} {
		assert.Equal(t, want, NormalizeLimit(in), "limit %d", in)
	}
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorTokenIsURLSafeAndReversible(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC), ID: uuid.New()}
	token := EncodeCursor(want)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")

	got, err := ParseCursor(token)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.Equal(t, want.ID, got.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("  ")
	assert.NoError(t, err)
	assert.Nil(t, c)

	short := base64.RawURLEncoding.EncodeToString([]byte("x|y"))
	for _, token := range []string{"!!!", short, "bm9waXBl"} {
		_, err := ParseCursor(token)
		assert.ErrorIs(t, err, errMalformedCursor, token)
	}
}

func TestPageOffsetAndMeta(t *testing.T) {
	p := Page{Page: 3, Limit: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 0, Page{}.Offset())
	assert.Equal(t, PageMeta{Page: 3, Limit: 20, Total: 41, Pages: 3}, MetaFor(p, 41))
	assert.Zero(t, MetaFor(Page{}, 0).Pages)
}
