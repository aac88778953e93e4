package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxImageBytes bounds uploaded images.
const DefaultMaxImageBytes int64 = 5 << 20

var (
	// ErrImageEmpty rejects zero-length uploads.
	ErrImageEmpty = errors.New("image is empty")
	// ErrImageTooLarge rejects uploads above the configured limit.
	ErrImageTooLarge = errors.New("image is too large")
	// ErrImageType rejects uploads whose content is not an allowed image.
	ErrImageType = errors.New("unsupported image type")
)

// allowedImageTypes maps detected MIME types to the extension used when the
// upload name carries none.
var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

var allowedImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

// Image is a validated upload held in memory.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Size returns the image length in bytes.
func (i Image) Size() int64 {
	return int64(len(i.Data))
}

// Reader returns a fresh reader over the image bytes.
func (i Image) Reader() io.Reader {
	return bytes.NewReader(i.Data)
}

// ReadImage reads at most maxBytes from r and checks the content is an
// allowed image type. The extension is taken from filename when it names an
// allowed type, otherwise from the detected content.
func ReadImage(r io.Reader, filename string, maxBytes int64) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrImageEmpty
	}
	if int64(len(data)) > maxBytes {
		return Image{}, fmt.Errorf("%w: maximum size is %d MB", ErrImageTooLarge, maxBytes>>20)
	}

	detected := mimetype.Detect(data)
	contentType := detected.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	fallbackExt, ok := allowedImageTypes[contentType]
	if !ok {
		return Image{}, fmt.Errorf("%w (detected: %s)", ErrImageType, contentType)
	}

	return Image{Data: data, ContentType: contentType, Extension: imageExtension(filename, fallbackExt)}, nil
}

func imageExtension(filename, fallback string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if allowedImageExtensions[ext] {
		return ext
	}
	return fallback
}
