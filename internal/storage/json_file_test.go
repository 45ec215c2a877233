package storage

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONFile_LoadMissingReturnsZero(t *testing.T) {
	f, err := NewJSONFile[sample](t.TempDir(), "sample.json")
	require.NoError(t, err)

	v, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, sample{}, v)
}

func TestJSONFile_UpdateAbortsOnError(t *testing.T) {
	f, err := NewJSONFile[sample](t.TempDir(), "sample.json")
	require.NoError(t, err)
	require.NoError(t, f.Save(sample{Name: "a", Count: 1}))

	boom := errors.New("boom")
	err = f.Update(func(s *sample) error {
		s.Count = 99
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, v.Count)
}

func TestJSONFile_Remove(t *testing.T) {
	f, err := NewJSONFile[sample](t.TempDir(), "sample.json")
	require.NoError(t, err)
	require.NoError(t, f.Save(sample{Name: "a"}))

	require.NoError(t, f.Remove())
	_, statErr := os.Stat(f.Path())
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, f.Remove())
}
