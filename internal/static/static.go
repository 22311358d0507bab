// Package static serves files from directories mounted under URL prefixes.
package static

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound covers every failure to produce file content: no mapping, a
// missing or unreadable file, and paths that would leave the directory.
var ErrNotFound = errors.New("static file not found")

// Mapping binds a URL prefix to a filesystem directory
type Mapping struct {
	Prefix string
	Dir    string
}

// Resolver resolves request paths against its mappings. Mappings are added
// before serving starts; Resolve only reads and is safe for concurrent use.
type Resolver struct {
	mappings []Mapping
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Register mounts dir under prefix. When several prefixes match a path the
// one registered first wins.
func (r *Resolver) Register(prefix, dir string) {
	r.mappings = append(r.mappings, Mapping{Prefix: prefix, Dir: dir})
}

func (r *Resolver) Mappings() []Mapping {
	return append([]Mapping(nil), r.mappings...)
}

// Resolve reads the file path refers to and infers its MIME type
func (r *Resolver) Resolve(path string) ([]byte, string, error) {
	m, ok := r.lookup(path)
	if !ok {
		return nil, "", ErrNotFound
	}

	full, err := m.join(strings.TrimPrefix(path, m.Prefix))
	if err != nil {
		return nil, "", err
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return content, MimeType(full), nil
}

func (r *Resolver) lookup(path string) (Mapping, bool) {
	for _, m := range r.mappings {
		if strings.HasPrefix(path, m.Prefix) {
			return m, true
		}
	}
	return Mapping{}, false
}

// join places rel under the mapping's directory. Any ".." segment is refused
// outright, whether or not it would actually climb out.
func (m Mapping) join(rel string) (string, error) {
	for _, seg := range strings.FieldsFunc(rel, isSeparator) {
		if seg == ".." {
			return "", fmt.Errorf("%w: parent segment in %q", ErrNotFound, rel)
		}
	}

	full := filepath.Join(m.Dir, filepath.FromSlash(strings.TrimLeft(rel, `/\`)))

	within, err := filepath.Rel(filepath.Clean(m.Dir), full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %q", ErrNotFound, rel, m.Dir)
	}
	return full, nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
