package memstore

import (
	"context"
	"encoding/json"
	"scanq/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func add(t *testing.T, s *Store, payload string) int64 {
	t.Helper()
	id, err := s.Add(context.Background(), domain.QueuedScan{Payload: json.RawMessage(payload)})
	require.NoError(t, err)
	return id
}

func TestStore_AddAssignsIncreasingIDs(t *testing.T) {
	s := New()
	a := add(t, s, `{"id":1}`)
	b := add(t, s, `{"id":2}`)
	assert.Less(t, a, b)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_AddExplicitID(t *testing.T) {
	s := New()
	id, err := s.Add(context.Background(), domain.QueuedScan{ID: 10, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	next := add(t, s, `{}`)
	assert.Equal(t, int64(11), next)

	_, err = s.Add(context.Background(), domain.QueuedScan{ID: 10, Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
}

func TestStore_GetAllReturnsCopies(t *testing.T) {
	s := New()
	add(t, s, `{"id":1}`)

	first, err := s.GetAll(context.Background())
	require.NoError(t, err)
	first[0].Payload[1] = 'X'
	first[0].Attempts = 99

	second, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(second[0].Payload))
	assert.Zero(t, second[0].Attempts)
}

func TestStore_GetAllInsertionOrder(t *testing.T) {
	s := New()
	for _, p := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		add(t, s, p)
	}

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, r := range all {
		var m struct{ N int }
		require.NoError(t, json.Unmarshal(r.Payload, &m))
		assert.Equal(t, i+1, m.N)
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	a := add(t, s, `{"id":1}`)
	b := add(t, s, `{"id":2}`)
	c := add(t, s, `{"id":3}`)

	require.NoError(t, s.Delete(context.Background(), a, c, 404))
	require.NoError(t, s.Delete(context.Background()))

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b, all[0].ID)
}

func TestStore_SetAttempts(t *testing.T) {
	s := New()
	id := add(t, s, `{}`)

	require.NoError(t, s.SetAttempts(context.Background(), id, 3))
	require.NoError(t, s.SetAttempts(context.Background(), 404, 1))

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, all[0].Attempts)
}
