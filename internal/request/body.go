package request

import (
	"math"
	"strconv"
	"strings"
)

// FormData decodes an application/x-www-form-urlencoded body. Values are
// returned raw; percent-decoding is left to the caller.
func (r *Request) FormData() map[string]string {
	return parsePairs(string(r.Body))
}

// parsePairs splits "k1=v1&k2=v2". The first '=' separates key from value,
// a pair without '=' is dropped and the first occurrence of a key wins.
func parsePairs(s string) map[string]string {
	pairs := make(map[string]string)
	if s == "" {
		return pairs
	}

	for _, pair := range strings.Split(s, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if _, seen := pairs[k]; seen {
			continue
		}
		pairs[k] = v
	}
	return pairs
}

// parseContentLength accepts only ASCII digits around optional whitespace.
// A value too large for int64 saturates so that it trips the body limit.
func parseContentLength(v string) int64 {
	v = strings.TrimSpace(v)
	if v == "" || strings.TrimLeft(v, "0123456789") != "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}
