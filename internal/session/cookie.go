package session

import (
	"fmt"
	"strings"
)

// CookieName is the cookie carrying the session identifier
const CookieName = "SESSIONID"

// ParseCookies splits a Cookie request header of the form
// "name=value; name2=value2". Pairs without '=' are skipped; a repeated
// name keeps the last value.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		cookies[name] = value
	}
	return cookies
}

// IDFromCookie extracts the session identifier from a Cookie header
func IDFromCookie(header string) (string, bool) {
	id, ok := ParseCookies(header)[CookieName]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// SetCookie renders the Set-Cookie header value re-asserting id
func SetCookie(id string) string {
	return fmt.Sprintf("%s=%s; HttpOnly; Path=/", CookieName, id)
}
