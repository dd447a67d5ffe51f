package multistatus

import (
	"strings"
)

// Entry is one resource reference extracted from a multi-status listing
// body. Path is percent-decoded; a trailing slash in the raw reference
// marks a collection.
type Entry struct {
	Path         string
	IsCollection bool
}

type hrefTag struct {
	open  string
	close string
}

// Href tags come in two spellings depending on whether the server prefixes
// the DAV namespace.
var hrefTags = []hrefTag{
	{open: "<D:href>", close: "</D:href>"},
	{open: "<href>", close: "</href>"},
}

// Parse scans a listing body for resource references. The body is treated
// as semi-structured text rather than strict XML: unknown elements are
// skipped and a truncated trailing tag simply ends the scan, so a malformed
// response degrades to fewer entries instead of an error.
func Parse(body []byte) []Entry {
	doc := string(body)
	var rs []Entry
	pos := 0
	for {
		idx, tag, ok := nextHref(doc, pos)
		if !ok {
			break
		}
		start := idx + len(tag.open)
		end := strings.Index(doc[start:], tag.close)
		if end < 0 {
			break
		}
		decoded := percentDecode(doc[start : start+end])
		rs = append(rs, Entry{
			Path:         decoded,
			IsCollection: strings.HasSuffix(decoded, "/"),
		})
		pos = start + end + len(tag.close)
	}
	return rs
}

func nextHref(doc string, pos int) (int, hrefTag, bool) {
	best := -1
	var bestTag hrefTag
	for _, tag := range hrefTags {
		idx := strings.Index(doc[pos:], tag.open)
		if idx < 0 {
			continue
		}
		if best < 0 || pos+idx < best {
			best = pos + idx
			bestTag = tag
		}
	}
	if best < 0 {
		return 0, hrefTag{}, false
	}
	return best, bestTag, true
}

// percentDecode expands %XX escapes, leaving malformed sequences as-is.
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
