package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-5))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(5000))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 8, 14, 9, 30, 0, 123456789, time.UTC)
	id := uuid.New()

	cursor, err := DecodeCursor(EncodeCursor(createdAt, id))
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, cursor.CreatedAt.Equal(createdAt))
	assert.Equal(t, id, cursor.ID)
}

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("   ")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursor_Malformed(t *testing.T) {
	_, err := DecodeCursor("not-base64!!!")
	assert.Error(t, err)

	_, err = DecodeCursor("bm8tcGlwZS1oZXJl") // decodes to "no-pipe-here"
	assert.Error(t, err)
}
