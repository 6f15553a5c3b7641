package normalize

import (
	"html"
	"net/url"
	"strings"
)

// Options selects the transformations applied before a rule sees its input.
// The zero value leaves input untouched.
type Options struct {
	URLDecodeDepth     int
	HTMLEntity         bool
	NormalizePath      bool
	CompressWhitespace bool
	Lowercase          bool
}

func (o Options) IsZero() bool {
	return o == Options{}
}

func Apply(input string, opts Options) string {
	out := input

	for i := 0; i < opts.URLDecodeDepth; i++ {
		next, err := url.QueryUnescape(out)
		if err != nil || next == out {
			break
		}
		out = next
	}

	if opts.HTMLEntity {
		out = html.UnescapeString(out)
	}
	if opts.NormalizePath {
		out = NormalizePath(out)
	}
	if opts.CompressWhitespace {
		out = strings.Join(strings.Fields(out), " ")
	}
	if opts.Lowercase {
		out = strings.ToLower(out)
	}

	return out
}

// NormalizePath resolves "." and ".." segments and collapses repeated slashes.
// A query string, if present, is left as is.
func NormalizePath(input string) string {
	if input == "" {
		return "/"
	}

	path, query, hasQuery := strings.Cut(input, "?")

	leading := strings.HasPrefix(path, "/")
	trailing := strings.HasSuffix(path, "/") && path != "/"

	stack := make([]string, 0, strings.Count(path, "/")+1)
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}

	var b strings.Builder
	if leading {
		b.WriteByte('/')
	}
	b.WriteString(strings.Join(stack, "/"))
	if trailing && b.Len() > 1 {
		b.WriteByte('/')
	}
	if b.Len() == 0 {
		b.WriteByte('/')
	}
	if hasQuery {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}
