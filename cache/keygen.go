package cache

import (
	"net/url"
	"strings"
)

// Key identifies one logical upstream request
type Key string

// Descriptor describes a fully-resolved outbound request
type Descriptor struct {
	Method string
	URL    string
	// Params are merged into the URL query; they win over query values
	// already present in URL.
	Params map[string]string
	// Ignore lists extra parameter names that do not change the response.
	Ignore []string
}

// cacheBusters never affect upstream content
var cacheBusters = []string{"_", "_t", "cache", "nocache", "timestamp"}

// DeriveKey builds a stable key from method, URL and sorted params.
//
// The key is a plain concatenation ("GET https://host/path?a=1&b=2") rather
// than a hash, so distinct requests cannot collide.
func DeriveKey(d Descriptor) Key {
	method := strings.ToUpper(strings.TrimSpace(d.Method))
	if method == "" {
		method = "GET"
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return Key(method + " " + d.URL)
	}

	query := u.Query()
	for k, v := range d.Params {
		query.Set(k, v)
	}
	for _, name := range cacheBusters {
		query.Del(name)
	}
	for _, name := range d.Ignore {
		query.Del(name)
	}

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	switch {
	case u.Opaque != "":
		// "scheme:opaque" has no host or path
		b.WriteString(strings.ToLower(u.Scheme))
		b.WriteByte(':')
		b.WriteString(u.Opaque)
	default:
		if u.Scheme != "" {
			b.WriteString(strings.ToLower(u.Scheme))
			b.WriteString("://")
		}
		if u.User != nil {
			b.WriteString(u.User.String())
			b.WriteByte('@')
		}
		b.WriteString(strings.ToLower(u.Host))
		b.WriteString(u.EscapedPath())
	}
	if len(query) > 0 {
		b.WriteByte('?')
		// Encode sorts by parameter name
		b.WriteString(query.Encode())
	}
	return Key(b.String())
}

// KeyFor generates a stable key from a GET path and parameters
func KeyFor(path string, params map[string]string) Key {
	return DeriveKey(Descriptor{URL: path, Params: params})
}
