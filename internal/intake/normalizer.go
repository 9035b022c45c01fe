package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/creceideas/muralla/internal/domain"
)

// allowedTypes are the image MIME types accepted for the wall, mapped to
// the file extension the stored copy gets.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// Normalizer turns the three mediaRef shapes a submission may arrive
// with — a direct upload stream, a remote URL, or an inline base64
// payload — into a file stored under the upload directory plus the
// serving URL recorded on the submission.
type Normalizer struct {
	dir      string
	maxBytes int64
	client   *http.Client
	logger   *slog.Logger
}

// NewNormalizer creates the upload directory if needed and returns a
// Normalizer writing into it.
func NewNormalizer(dir string, maxBytes int64, logger *slog.Logger) (*Normalizer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Normalizer{
		dir:      dir,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}, nil
}

// FromUpload stores a directly uploaded image stream.
func (n *Normalizer) FromUpload(r io.Reader) (string, error) {
	data, err := n.readCapped(r)
	if err != nil {
		return "", err
	}
	return n.store(data)
}

// FromRemote downloads the image at the given URL and stores it.
func (n *Normalizer) FromRemote(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &domain.ValidationError{Field: "foto", Reason: "is not a valid URL"}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch remote image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch remote image: unexpected status %d", resp.StatusCode)
	}

	data, err := n.readCapped(resp.Body)
	if err != nil {
		return "", err
	}
	return n.store(data)
}

// FromBase64 decodes an inline payload, with or without a data-URI
// prefix, and stores it.
func (n *Normalizer) FromBase64(encoded string) (string, error) {
	encoded = dataURIPrefix.ReplaceAllString(strings.TrimSpace(encoded), "")

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &domain.ValidationError{Field: "foto", Reason: "is not valid base64"}
	}
	if int64(len(data)) > n.maxBytes {
		return "", &domain.ValidationError{Field: "foto", Reason: "exceeds the size limit"}
	}
	return n.store(data)
}

// Normalize dispatches on the shape of a bot-style "foto" value: an
// http(s) URL is fetched, anything else is treated as base64.
func (n *Normalizer) Normalize(ctx context.Context, foto string) (string, error) {
	if strings.HasPrefix(foto, "http://") || strings.HasPrefix(foto, "https://") {
		return n.FromRemote(ctx, foto)
	}
	return n.FromBase64(foto)
}

func (n *Normalizer) store(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	ext, ok := allowedTypes[mtype.String()]
	if !ok {
		return "", &domain.ValidationError{Field: "foto", Reason: "must be a jpeg, png, gif or webp image"}
	}

	name := uuid.NewString() + ext
	path := filepath.Join(n.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}

	n.logger.Debug("stored image", "file", name, "bytes", len(data), "type", mtype.String())
	return "/uploads/" + name, nil
}

func (n *Normalizer) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, n.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > n.maxBytes {
		return nil, &domain.ValidationError{Field: "imagen", Reason: "exceeds the size limit"}
	}
	return data, nil
}
