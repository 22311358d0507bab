package static

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tree creates root/public/{index.html,css/site.css,raw.bin} and root/secret.txt
func tree(t *testing.T) (root, public string) {
	t.Helper()
	root = t.TempDir()
	public = filepath.Join(root, "public")

	files := map[string]string{
		"public/index.html":   "<h1>home</h1>",
		"public/css/site.css": "body{}",
		"public/raw.bin":      "\x00\x01",
		"other/app.js":        "console.log(1)",
		"secret.txt":          "top secret",
	}
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root, public
}

func TestResolveFile(t *testing.T) {
	_, public := tree(t)
	r := NewResolver()
	r.Register("/static/", public)

	content, mime, err := r.Resolve("/static/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>home</h1>", string(content))
	assert.Equal(t, "text/html", mime)

	content, mime, err = r.Resolve("/static/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(content))
	assert.Equal(t, "text/css", mime)

	_, mime, err = r.Resolve("/static/raw.bin")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", mime)
}

func TestRootPrefix(t *testing.T) {
	_, public := tree(t)
	r := NewResolver()
	r.Register("/", public)

	content, _, err := r.Resolve("/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>home</h1>", string(content))
}

func TestFirstMatchingPrefixWins(t *testing.T) {
	root, public := tree(t)
	r := NewResolver()
	r.Register("/assets/", filepath.Join(root, "other"))
	r.Register("/", public)

	content, mime, err := r.Resolve("/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(content))
	assert.Equal(t, "application/javascript", mime)

	// Registration order is the tie-break, not prefix length
	r = NewResolver()
	r.Register("/", public)
	r.Register("/assets/", filepath.Join(root, "other"))

	_, _, err = r.Resolve("/assets/app.js")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoMapping(t *testing.T) {
	r := NewResolver()
	_, _, err := r.Resolve("/index.html")
	assert.ErrorIs(t, err, ErrNotFound)

	_, public := tree(t)
	r.Register("/static/", public)
	_, _, err = r.Resolve("/other/index.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMissingFileAndDirectory(t *testing.T) {
	_, public := tree(t)
	r := NewResolver()
	r.Register("/static/", public)

	_, _, err := r.Resolve("/static/nope.html")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = r.Resolve("/static/css")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = r.Resolve("/static/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTraversalNeverReturnsContent(t *testing.T) {
	_, public := tree(t)
	r := NewResolver()
	r.Register("/static/", public)

	paths := []string{
		"/static/../secret.txt",
		"/static/css/../../secret.txt",
		"/static/..",
		"/static/css/../index.html", // stays inside, still refused
		`/static/..\secret.txt`,
		"/static//../secret.txt",
	}
	for _, p := range paths {
		content, _, err := r.Resolve(p)
		assert.ErrorIs(t, err, ErrNotFound, p)
		assert.Nil(t, content, p)
	}
}

func TestDotDotInsideNameIsAllowed(t *testing.T) {
	_, public := tree(t)
	require.NoError(t, os.WriteFile(filepath.Join(public, "a..b.txt"), []byte("ok"), 0o644))

	r := NewResolver()
	r.Register("/static/", public)

	content, mime, err := r.Resolve("/static/a..b.txt")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(content))
	assert.Equal(t, "text/plain", mime)
}

func TestMimeType(t *testing.T) {
	cases := map[string]string{
		"a.html":  "text/html",
		"a.css":   "text/css",
		"a.js":    "application/javascript",
		"a.json":  "application/json",
		"a.png":   "image/png",
		"a.jpg":   "image/jpeg",
		"a.jpeg":  "image/jpeg",
		"a.gif":   "image/gif",
		"a.svg":   "image/svg+xml",
		"a.pdf":   "application/pdf",
		"a.txt":   "text/plain",
		"a.HTML":  "text/html",
		"a.woff2": "application/octet-stream",
		"noext":   "application/octet-stream",
	}
	for name, want := range cases {
		assert.Equal(t, want, MimeType(name), name)
	}
}

func TestMappings(t *testing.T) {
	r := NewResolver()
	r.Register("/a/", "dirA")
	r.Register("/b/", "dirB")

	assert.Equal(t, []Mapping{{"/a/", "dirA"}, {"/b/", "dirB"}}, r.Mappings())
}
