//go:build unix

package inputstream

import (
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/vplayer/pkg/ports"
)

func TestDescriptorStream_RoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "desc")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("hello descriptor")
	require.NoError(t, err)
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	s, err := Open(DescriptorScheme+strconv.Itoa(int(f.Fd())), Options{Policy: ports.DefaultProbePolicy()})
	require.NoError(t, err)

	assert.True(t, s.Seekable())
	assert.Equal(t, int64(16), s.Size())

	buf := make([]byte, 5)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	_, err = s.Seek(6, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "descr", string(buf))

	require.NoError(t, s.Close())

	// The caller still owns the descriptor.
	_, err = f.Seek(0, io.SeekStart)
	assert.NoError(t, err)
}

func TestDescriptorStream_OpenedMidFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "desc")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("hello descriptor")
	require.NoError(t, err)
	_, err = f.Seek(6, io.SeekStart)
	require.NoError(t, err)

	s, err := NewDescriptorStream(int(f.Fd()), ports.DefaultProbePolicy())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(6), s.Position())

	first := make([]byte, 5)
	_, err = io.ReadFull(s, first)
	require.NoError(t, err)
	assert.Equal(t, "descr", string(first))
	assert.Equal(t, int64(11), s.Position())

	pos, err := s.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	again := make([]byte, 5)
	_, err = io.ReadFull(s, again)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, int64(11), s.Position())
}

func TestDescriptorStream_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	go func() {
		w.Write([]byte("pipe data"))
		w.Close()
	}()

	s, err := NewDescriptorStream(int(r.Fd()), ports.DefaultProbePolicy())
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Seekable())
	assert.Equal(t, int64(-1), s.Size())

	_, err = s.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ports.ErrNotSeekable)
	_, err = s.Seek(0, ports.SeekSize)
	assert.ErrorIs(t, err, ports.ErrNotSeekable)

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "pipe data", string(data))
}
