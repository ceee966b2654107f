package tswrite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return len(p) - 1, nil
}

type erroringWriter struct{ err error }

func (e erroringWriter) Write([]byte) (int, error) { return 0, e.err }

func TestFullWrite_ShortWriteIsError(t *testing.T) {
	err := fullWrite(shortWriter{}, []byte{1, 2, 3})
	require.Error(t, err)
}

func TestFullWrite_PropagatesUnderlyingError(t *testing.T) {
	sentinel := errors.New("boom")
	err := fullWrite(erroringWriter{err: sentinel}, []byte{1})
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
}

func TestFileSink_WritesFullPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ts")

	sink, err := NewFileSink(path)
	require.NoError(t, err)

	payload := bytes188()
	require.NoError(t, sink.Send(payload))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func bytes188() []byte {
	b := make([]byte, 188)
	b[0] = 0x47
	return b
}
