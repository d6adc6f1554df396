package contribution

import (
	"bytes"
	"fmt"
	"path"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gosimple/slug"
)

// anonymousSlug stands in for author names that
// produce an empty slug.
const anonymousSlug = "anonymous"

// Slug returns the ref-safe form of s: lowercase ASCII
// letters, digits, '-' and '_'.
func Slug(s string) string {
	return slug.Make(s)
}

// BranchName derives the branch a contribution is
// published on: prefix, author slug, and unix
// timestamp, all slugified together.
func BranchName(
	prefix string,
	authorName string,
	unix int64,
) string {
	author := Slug(authorName)
	if author == "" {
		author = anonymousSlug
	}

	return Slug(fmt.Sprintf(
		"%s-%s-%s",
		prefix, author, strconv.FormatInt(unix, 10),
	))
}

// Paths returns the metadata and image file paths of a
// contribution under dir. Both share the timestamp so
// they can be paired later.
func Paths(
	dir string,
	unix int64,
	ext string,
) (jsonPath string, imagePath string) {
	base := path.Join(
		dir,
		"contribution-"+strconv.FormatInt(unix, 10),
	)

	return base + ".json", base + "." + ext
}

// Author is the author block of a Document.
type Author struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Document is the metadata file committed next to the
// contribution image.
type Document struct {
	Title  string `json:"title"`
	Author Author `json:"author"`
	URL    string `json:"url"`
}

// NewDocument builds the metadata document of r. The
// author url is only set when the request carries one.
func NewDocument(r *Request) Document {
	return Document{
		Title: r.Title,
		Author: Author{
			Name: r.AuthorName,
			URL:  r.AuthorURL,
		},
		URL: r.URL,
	}
}

// Encode renders d as two-space indented JSON without
// HTML escaping and without a trailing newline.
func (d Document) Encode() ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
