// Package attachments stores expense receipts and returns the URL that an
// expense records as its attachmentURL.
package attachments

import (
	"context"
	"io"
	"path"
	"strings"
)

// MaxSize bounds a single upload.
const MaxSize = 10 << 20

// Store persists an uploaded blob under key and returns its URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// Key builds the object key for an upload. Only the base name of the client
// supplied filename is kept.
func Key(id, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return "attachments/" + id + "/" + name
}
