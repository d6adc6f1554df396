package prbody

import "strings"

const (
	begin = "--- showcase files begin ---"
	end   = "--- showcase files end ---"
)

// Generate appends a section listing files between
// begin/end markers to body.
func Generate(body string, files []string) string {
	var sb strings.Builder

	sb.WriteString(body)
	sb.WriteString("\n\n")
	sb.WriteString(begin)
	sb.WriteByte('\n')

	for _, f := range files {
		sb.WriteString(f)
		sb.WriteByte('\n')
	}

	sb.WriteString(end)
	sb.WriteByte('\n')

	return sb.String()
}
