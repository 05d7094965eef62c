package chat

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// AttachmentFromFile reads a file into inline data. The MIME type comes
// from the extension, or from sniffing the content when the extension is
// unknown.
func AttachmentFromFile(path string) (*InlineData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}

	return &InlineData{
		Data:        base64.StdEncoding.EncodeToString(data),
		MimeType:    mimeType,
		DisplayName: filepath.Base(path),
	}, nil
}
