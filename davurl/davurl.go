package davurl

import (
	"fmt"
	"strings"
)

// Scheme prefixes understood by this package. storagebox:// is the Hetzner
// Storage Box shorthand: storagebox://u123456/path expands to
// https://u123456.your-storagebox.de/path.
const (
	SchemeWebdav     = "webdav://"
	SchemeWebdavTLS  = "webdavs://"
	SchemeStoragebox = "storagebox://"

	storageboxDomain = ".your-storagebox.de"
)

// ParsedURL is the transport form of a logical WebDAV path.
type ParsedURL struct {
	HTTPProto string
	Host      string
	Path      string
}

// HTTPURL renders the address requests are actually sent to.
func (u *ParsedURL) HTTPURL() string {
	return u.HTTPProto + "://" + u.Host + u.Path
}

// IsWebDAVURL reports whether the raw path targets a WebDAV resource this
// package can translate.
func IsWebDAVURL(raw string) bool {
	if strings.HasPrefix(raw, SchemeStoragebox) ||
		strings.HasPrefix(raw, SchemeWebdav) ||
		strings.HasPrefix(raw, SchemeWebdavTLS) {
		return true
	}
	if (strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")) &&
		strings.Contains(raw, storageboxDomain+"/") {
		return true
	}
	return false
}

// Parse translates a logical path into its transport form.
func Parse(raw string) (*ParsedURL, error) {
	if rest, ok := strings.CutPrefix(raw, SchemeStoragebox); ok {
		user := rest
		path := "/"
		if idx := strings.Index(rest, "/"); idx >= 0 {
			user = rest[:idx]
			path = rest[idx:]
		}
		if len(user) == 0 {
			return nil, fmt.Errorf("invalid storagebox url, no user: %s", raw)
		}
		return &ParsedURL{HTTPProto: "https", Host: user + storageboxDomain, Path: path}, nil
	}
	var proto, rest string
	switch {
	case strings.HasPrefix(raw, SchemeWebdav):
		proto, rest = "http", raw[len(SchemeWebdav):]
	case strings.HasPrefix(raw, SchemeWebdavTLS):
		proto, rest = "https", raw[len(SchemeWebdavTLS):]
	case strings.HasPrefix(raw, "https://"):
		proto, rest = "https", raw[len("https://"):]
	case strings.HasPrefix(raw, "http://"):
		proto, rest = "http", raw[len("http://"):]
	default:
		return nil, fmt.Errorf("invalid webdav url: %s", raw)
	}
	host := rest
	path := "/"
	if idx := strings.Index(rest, "/"); idx >= 0 {
		host = rest[:idx]
		path = rest[idx:]
	}
	if len(host) == 0 {
		return nil, fmt.Errorf("invalid webdav url, no host: %s", raw)
	}
	return &ParsedURL{HTTPProto: proto, Host: host, Path: path}, nil
}

// Rebuild reconstructs a resolved path in the scheme-specific form of the
// original address, so results presented to the caller keep the shape the
// caller used.
func Rebuild(original string, path string) string {
	if rest, ok := strings.CutPrefix(original, SchemeStoragebox); ok {
		user := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			user = rest[:idx]
		}
		return SchemeStoragebox + user + path
	}
	parsed, err := Parse(original)
	if err != nil {
		return path
	}
	switch {
	case strings.HasPrefix(original, SchemeWebdav):
		return SchemeWebdav + parsed.Host + path
	case strings.HasPrefix(original, SchemeWebdavTLS):
		return SchemeWebdavTLS + parsed.Host + path
	default:
		return parsed.HTTPProto + "://" + parsed.Host + path
	}
}
