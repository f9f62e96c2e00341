package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_GetSetRemove(t *testing.T) {
	s := newTestStorage(t)

	v, err := s.Get(KeyReminders)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())

	require.NoError(t, s.Set(KeyReminders, []byte(`[{"id":"1"}]`)))
	v, err = s.Get(KeyReminders)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(v.MustGet()))

	require.NoError(t, s.Set(KeyReminders, []byte(`[]`)))
	v, err = s.Get(KeyReminders)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(v.MustGet()))

	rev, err := s.Revision(KeyReminders)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	require.NoError(t, s.Set(KeyBirthdays, []byte(`[]`)))
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{KeyBirthdays, KeyReminders}, keys)

	require.NoError(t, s.Remove(KeyReminders))
	require.NoError(t, s.Remove(KeyReminders))
	v, err = s.Get(KeyReminders)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}

func TestStorage_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyMenstrualData, []byte(`{"records":[]}`)))
	require.NoError(t, s.Close())

	// Migrations are re-run on open.
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(KeyMenstrualData)
	require.NoError(t, err)
	assert.Equal(t, `{"records":[]}`, string(v.MustGet()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Storage{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM kv WHERE key = $1 AND x = $2", pg.rebind("SELECT a FROM kv WHERE key = ? AND x = ?"))

	lite := &Storage{driver: DriverSQLite}
	assert.Equal(t, "key = ?", lite.rebind("key = ?"))
}
