package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creceideas/muralla/internal/domain"
)

// tinyGIF is a minimal single-pixel GIF, enough for mimetype sniffing.
var tinyGIF = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x00\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

func newTestNormalizer(t *testing.T, maxBytes int64) (*Normalizer, string) {
	t.Helper()

	dir := t.TempDir()
	n, err := NewNormalizer(dir, maxBytes, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return n, dir
}

func requireStored(t *testing.T, dir, mediaURL, wantExt string) {
	t.Helper()

	require.True(t, strings.HasPrefix(mediaURL, "/uploads/"))
	require.True(t, strings.HasSuffix(mediaURL, wantExt))

	name := strings.TrimPrefix(mediaURL, "/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, tinyGIF, data)
}

func TestFromUpload(t *testing.T) {
	n, dir := newTestNormalizer(t, 1<<20)

	mediaURL, err := n.FromUpload(bytes.NewReader(tinyGIF))
	require.NoError(t, err)
	requireStored(t, dir, mediaURL, ".gif")
}

func TestFromBase64(t *testing.T) {
	n, dir := newTestNormalizer(t, 1<<20)

	mediaURL, err := n.FromBase64(base64.StdEncoding.EncodeToString(tinyGIF))
	require.NoError(t, err)
	requireStored(t, dir, mediaURL, ".gif")
}

func TestFromBase64StripsDataURIPrefix(t *testing.T) {
	n, dir := newTestNormalizer(t, 1<<20)

	encoded := "data:image/gif;base64," + base64.StdEncoding.EncodeToString(tinyGIF)
	mediaURL, err := n.FromBase64(encoded)
	require.NoError(t, err)
	requireStored(t, dir, mediaURL, ".gif")
}

func TestFromBase64RejectsGarbage(t *testing.T) {
	n, _ := newTestNormalizer(t, 1<<20)

	_, err := n.FromBase64("%%% not base64 %%%")
	require.True(t, domain.IsValidation(err))
}

func TestFromRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(tinyGIF)
	}))
	defer server.Close()

	n, dir := newTestNormalizer(t, 1<<20)

	mediaURL, err := n.FromRemote(context.Background(), server.URL+"/photo.gif")
	require.NoError(t, err)
	requireStored(t, dir, mediaURL, ".gif")
}

func TestFromRemoteRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	n, _ := newTestNormalizer(t, 1<<20)

	_, err := n.FromRemote(context.Background(), server.URL)
	require.Error(t, err)
}

func TestRejectsNonImagePayload(t *testing.T) {
	n, _ := newTestNormalizer(t, 1<<20)

	_, err := n.FromUpload(strings.NewReader("just some text, definitely not an image"))
	require.True(t, domain.IsValidation(err))
}

func TestRejectsOversizedUpload(t *testing.T) {
	n, _ := newTestNormalizer(t, 8)

	_, err := n.FromUpload(bytes.NewReader(tinyGIF))
	require.True(t, domain.IsValidation(err))
}

func TestNormalizeDispatchesOnShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(tinyGIF)
	}))
	defer server.Close()

	n, dir := newTestNormalizer(t, 1<<20)
	ctx := context.Background()

	fromURL, err := n.Normalize(ctx, server.URL)
	require.NoError(t, err)
	requireStored(t, dir, fromURL, ".gif")

	fromB64, err := n.Normalize(ctx, base64.StdEncoding.EncodeToString(tinyGIF))
	require.NoError(t, err)
	requireStored(t, dir, fromB64, ".gif")
}
