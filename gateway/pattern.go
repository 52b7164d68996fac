package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern is a compiled path template. Templates are literal paths with
// {param} placeholders, e.g. "/hat/{hat_id}"; each placeholder matches one
// path segment. Parameter names may be dotted field paths ("{hat.id}"), so
// captures are positional rather than regexp-named.
type pattern struct {
	template string
	re       *regexp.Regexp
	params   []string
}

func compilePattern(template string) (*pattern, error) {
	if template == "" || template[0] != '/' {
		return nil, fmt.Errorf("path template %q must start with /", template)
	}
	var b strings.Builder
	b.WriteString("^")
	var params []string
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("path template %q has unbalanced braces", template)
			}
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		closing := strings.IndexByte(rest, '}')
		if closing < open {
			return nil, fmt.Errorf("path template %q has unbalanced braces", template)
		}
		name := rest[open+1 : closing]
		if name == "" {
			return nil, fmt.Errorf("path template %q has an empty parameter name", template)
		}
		b.WriteString(regexp.QuoteMeta(rest[:open]))
		b.WriteString(`([^/]+)`)
		params = append(params, name)
		rest = rest[closing+1:]
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("path template %q: %w", template, err)
	}
	return &pattern{template: template, re: re, params: params}, nil
}

// match evaluates the pattern against a request path and returns the
// captured parameters. Paths arrive already percent-decoded from net/http.
func (p *pattern) match(path string) (map[string]string, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(p.params))
	for i, name := range p.params {
		params[name] = m[i+1]
	}
	return params, true
}
