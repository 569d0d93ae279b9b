package persistence

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveToFile(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.bin")

		err := SaveToFile(path, func(w io.Writer) error {
			_, err := w.Write([]byte("hello"))
			return err
		})
		require.NoError(t, err)

		var got []byte
		err = LoadFromFile(path, func(r io.Reader) error {
			b, err := io.ReadAll(r)
			got = b
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.bin")
		require.NoError(t, SaveToFile(path, func(w io.Writer) error {
			_, err := w.Write([]byte("first"))
			return err
		}))
		require.NoError(t, SaveToFile(path, func(w io.Writer) error {
			_, err := w.Write([]byte("second"))
			return err
		}))

		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), b)
	})

	t.Run("WriteFuncErrorKeepsPrior", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "data.bin")
		require.NoError(t, SaveToFile(path, func(w io.Writer) error {
			_, err := w.Write([]byte("durable"))
			return err
		}))

		boom := errors.New("boom")
		err := SaveToFile(path, func(w io.Writer) error { return boom })
		assert.ErrorIs(t, err, boom)

		// Prior durable copy untouched, no temp litter.
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("durable"), b)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestLoadFromFileMissing(t *testing.T) {
	err := LoadFromFile(filepath.Join(t.TempDir(), "nope.bin"), func(r io.Reader) error { return nil })
	assert.True(t, os.IsNotExist(err))
}

func TestCRC32C(t *testing.T) {
	sum := CRC32C([]byte("findhub"))
	assert.NotZero(t, sum)
	assert.Equal(t, sum, CRC32C([]byte("findhub")))
	assert.NotEqual(t, sum, CRC32C([]byte("findhuc")))

	h := NewCRC32C()
	_, err := h.Write([]byte("findhub"))
	require.NoError(t, err)
	assert.Equal(t, sum, h.Sum32())
}
