package tutor

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// MaxImageSize bounds images attached with /image.
const MaxImageSize = 5 << 20

// EncodeImageFile reads an image and returns it as a data URL.
func EncodeImageFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if info.Size() > MaxImageSize {
		return "", fmt.Errorf("image %s is larger than %d MB", path, MaxImageSize>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return EncodeImage(data)
}

// EncodeImage returns data as a base64 data URL. Non-image content is rejected.
func EncodeImage(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported image type %q", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
