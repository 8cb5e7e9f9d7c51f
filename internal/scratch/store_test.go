package scratch

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "scratch"), nil)
	require.NoError(t, err)
	return s
}

func TestPersistAndRemove(t *testing.T) {
	s := newStore(t)

	f, err := s.Persist("Report.DOCX", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, s.Dir(), filepath.Dir(f.Path))
	assert.Equal(t, f.Token.String()+".docx", filepath.Base(f.Path))
	assert.Equal(t, int64(7), f.Size)
	assert.Len(t, f.HashHex, 64)

	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, s.Remove(f))
	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Remove(f), "removing twice is not an error")
}

func TestPersist_NameNeverUsesCallerPath(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{
		"../../etc/passwd.doc",
		`..\..\windows\system32\evil.docx`,
		"/abs/path/x.doc",
		"name with spaces.doc",
		"weird.d$c",
		"no-extension",
		"",
		"trailing.",
		"a.verylongextensionname",
	} {
		f, err := s.Persist(name, strings.NewReader("x"))
		require.NoError(t, err, name)
		assert.Equal(t, s.Dir(), filepath.Dir(f.Path), name)
		base := filepath.Base(f.Path)
		assert.True(t, strings.HasPrefix(base, f.Token.String()), name)
		assert.NotContains(t, base, "..", name)
		require.NoError(t, s.Remove(f))
	}
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".doc", safeExt("../../x.DOC"))
	assert.Equal(t, ".docx", safeExt(`C:\Users\me\a.docx`))
	assert.Equal(t, "", safeExt("weird.d$c"))
	assert.Equal(t, "", safeExt("plain"))
	assert.Equal(t, "", safeExt("x.abcdefghijk"))
}

func TestPersist_UniquePerCall(t *testing.T) {
	s := newStore(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		f, err := s.Persist("same.doc", strings.NewReader("x"))
		require.NoError(t, err)
		assert.False(t, seen[f.Path])
		seen[f.Path] = true
	}
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		r.n--
		return copy(p, "abc"), nil
	}
	return 0, errors.New("connection reset")
}

func TestPersist_ReadErrorLeavesNothing(t *testing.T) {
	s := newStore(t)
	_, err := s.Persist("x.doc", &failingReader{n: 2})
	require.Error(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove_RejectsForeignPaths(t *testing.T) {
	s := newStore(t)
	outside := filepath.Join(t.TempDir(), "keep.doc")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	err := s.Remove(File{Path: outside})
	assert.ErrorIs(t, err, ErrOutsideScratch)
	_, statErr := os.Stat(outside)
	assert.NoError(t, statErr)
}

func TestSweep(t *testing.T) {
	s := newStore(t)
	old, err := s.Persist("old.doc", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	fresh, err := s.Persist("fresh.doc", bytes.NewReader([]byte("y")))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Path, past, past))

	n, err := s.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(old.Path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh.Path)
	assert.NoError(t, err)
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("  ", nil)
	assert.Error(t, err)
}
