// Package storage abstracts the object store that holds uploaded test
// case files and evidence.  Clients upload to a temp/ prefix first via a
// presigned URL; registration copies objects into their production prefix
// and the temp copies are expected to be cleaned up by a bucket lifecycle
// rule.
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the object store the handlers work against.
type Store interface {
	// Put writes an object under key and returns the key back.
	Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
	// Delete removes an object.  Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Copy duplicates srcKey into the given prefix keeping the file name
	// and returns the new key.
	Copy(ctx context.Context, srcKey, dstPrefix string) (string, error)
	// PresignGet returns a time-limited download URL for key.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// BuildKey names an uploaded object as prefix/timestamp-uuid-sanitizedName.
// The timestamp and uuid make keys unique even for identical file names
// uploaded in the same instant; sanitization keeps keys portable across
// stores and URLs.
func BuildKey(prefix, fileName string) string {
	sanitized := unsafeKeyChars.ReplaceAllString(fileName, "_")
	return fmt.Sprintf("%s/%d-%s-%s", strings.Trim(prefix, "/"), time.Now().UnixMilli(), uuid.NewString(), sanitized)
}

// FileNameOf returns the last path segment of a key.
func FileNameOf(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
