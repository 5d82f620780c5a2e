package assignment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSchemaContext(t *testing.T) {
	svc := seededService(t)

	sc, err := svc.LookupSchemaContext(context.Background(), "get-all-users")
	require.NoError(t, err)
	assert.Equal(t, "public", sc.Schema)
	assert.Equal(t, "users(id INT, name VARCHAR(100), email VARCHAR(100), created_at TIMESTAMP)", sc.Describe())

	_, err = svc.LookupSchemaContext(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceList(t *testing.T) {
	svc := seededService(t)

	out, err := svc.List(context.Background(), ListQuery{Difficulty: "medium", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.Page)
	assert.Equal(t, 20, out.PageSize)
}

func TestLoadSeed(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Defaults", func(t *testing.T) {
		items, err := LoadSeed(strings.NewReader(`
assignments:
  - title: A
    question: Q
    difficulty: easy
  - id: b
    title: B
    question: Q
    difficulty: hard
`), now)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.NotEmpty(t, items[0].ID)
		assert.Equal(t, "b", items[1].ID)
		assert.True(t, items[0].CreatedAt.After(items[1].CreatedAt))
	})

	t.Run("DuplicateID", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader(`
assignments:
  - {id: a, title: A, question: Q, difficulty: easy}
  - {id: a, title: B, question: Q, difficulty: easy}
`), now)
		assert.ErrorContains(t, err, "duplicate id")
	})

	t.Run("MissingFields", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader("assignments:\n  - {id: a}\n"), now)
		assert.Error(t, err)
	})

	t.Run("UnknownField", func(t *testing.T) {
		_, err := LoadSeed(strings.NewReader("assignments:\n  - {id: a, title: A, question: Q, difficulty: easy, points: 3}\n"), now)
		assert.Error(t, err)
	})
}
