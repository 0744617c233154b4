package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/vbonduro/glowly/internal/llm"
)

// PhotoDataURL reads an image file and encodes it as a data URL for the chat
// model.
func PhotoDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		mimeType = "image/webp"
	}
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return "", fmt.Errorf("%s: unsupported image format %q", path, mimeType)
	}
	return llm.DataURL(mimeType, data), nil
}

func PhotoDataURLs(paths []string) ([]string, error) {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		u, err := PhotoDataURL(p)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}
