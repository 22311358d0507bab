package request

import (
	"fmt"
	"strings"
)

// parseRequestLine parses: METHOD TARGET [VERSION]
func (r *Request) parseRequestLine(line string) error {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return fmt.Errorf("%w: request line %q", ErrMalformedRequest, line)
	}

	version := ""
	if len(parts) > 2 {
		version = parts[2]
	}
	r.setRequestLine(parts[0], parts[1], version)
	return nil
}

func (r *Request) setRequestLine(method, target, version string) {
	r.Method = strings.ToUpper(method)
	r.Target = target
	r.Version = version

	path, rawQuery, _ := strings.Cut(target, "?")
	r.Path = path
	r.Query = parsePairs(rawQuery)
}
