package templating

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/valyala/fasttemplate"
)

// ErrUnknownVariable is returned when a template
// references a variable that is not provided.
var ErrUnknownVariable = errors.New("unknown template variable")

const (
	startTag = "{{"
	endTag   = "}}"
)

// Template is a parsed template ready for repeated
// execution.
type Template struct {
	src   string
	tpl   *fasttemplate.Template
	names []string
}

// Parse compiles src with "{{" "}}" tags. Whitespace
// around variable names inside tags is ignored, so
// "{{ name }}" and "{{name}}" are equivalent.
func Parse(src string) (*Template, error) {
	const errCtx = "parsing template"

	tpl, err := fasttemplate.NewTemplate(src, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	seen := make(map[string]struct{})

	tpl.ExecuteFuncString(
		func(_ io.Writer, tag string) (int, error) {
			seen[strings.TrimSpace(tag)] = struct{}{}

			return 0, nil
		},
	)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return &Template{
		src:   src,
		tpl:   tpl,
		names: names,
	}, nil
}

// Check fails when the template references a variable
// outside known.
func (t *Template) Check(known ...string) error {
	allowed := make(map[string]struct{}, len(known))
	for _, k := range known {
		allowed[k] = struct{}{}
	}

	for _, name := range t.names {
		if _, ok := allowed[name]; !ok {
			return fmt.Errorf(
				"checking template %q: %w: %s",
				t.src, ErrUnknownVariable, name,
			)
		}
	}

	return nil
}

// Execute substitutes vars into the template. A
// variable missing from vars is an error.
func (t *Template) Execute(vars map[string]any) (string, error) {
	const errCtx = "executing template"

	out, err := t.tpl.ExecuteFuncStringWithErr(
		func(w io.Writer, tag string) (int, error) {
			name := strings.TrimSpace(tag)

			val, ok := vars[name]
			if !ok {
				return 0, fmt.Errorf(
					"%w: %s", ErrUnknownVariable, name,
				)
			}

			return fmt.Fprint(w, val)
		},
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return out, nil
}
