// Package source maintains the parsed-file cache for a project tree.
//
// The cache holds one ParsedFile per .go file under the project root,
// keyed by relative path. Files are replaced wholesale when their content
// hash changes; nothing mutates a ParsedFile after it enters the cache.
package source

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cartograph-dev/cartograph/internal/parser"
)

// ParsedFile is one source file with its syntax model and content hash.
type ParsedFile struct {
	// Path is relative to the project root, slash-separated.
	Path   string
	Source []byte
	Syntax *parser.FileSyntax

	// Hash is the sha256 of Source, hex encoded.
	Hash string
}

// HashBytes returns the content hash used for change detection.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
