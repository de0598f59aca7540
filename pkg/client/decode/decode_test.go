package decode_test

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fllo/go-coline/pkg/client/decode"
)

const content = "line1\nline2\r\nline3"

func TestDecode_Identity(t *testing.T) {
	t.Parallel()
	out := decodeAll(t, io.NopCloser(strings.NewReader(content)), "")
	assert.Equal(t, content, out)
}

func TestDecode_Gzip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out := decodeAll(t, io.NopCloser(&buf), "GZIP")
	assert.Equal(t, content, out)
}

func TestDecode_Brotli(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out := decodeAll(t, io.NopCloser(&buf), "br")
	assert.Equal(t, content, out)
}

func TestDecode_EmptyBody(t *testing.T) {
	t.Parallel()
	for _, encoding := range []string{"gzip", "deflate", "br", ""} {
		out := decodeAll(t, io.NopCloser(strings.NewReader("")), encoding)
		assert.Empty(t, out, encoding)
	}
}

func TestDecode_InvalidGzip(t *testing.T) {
	t.Parallel()
	_, err := decode.Decode(io.NopCloser(strings.NewReader("not gzip")), "gzip")
	assert.ErrorContains(t, err, "cannot decode gzip")
}

func decodeAll(t *testing.T, body io.ReadCloser, encoding string) string {
	t.Helper()
	r, err := decode.Decode(body, encoding)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(out)
}
