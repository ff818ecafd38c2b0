// Package fileid provides stable keys for imported files and document content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// SourceKey returns a stable key for the given absolute path.
// Same path always yields the same key. Imported documents are looked up by it.
func SourceKey(absolutePath string) string {
	return prefix + filepath.Clean(absolutePath)
}

// ContentHash returns the hex sha256 of a document's plain text.
// An unchanged hash lets an edit skip rechunking.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
