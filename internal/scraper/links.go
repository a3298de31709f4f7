package scraper

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// redirectMarker prefixes the real destination in search engine result links.
const redirectMarker = "/url?q="

// ExtractLinks returns the href of every anchor in body, in document order,
// percent-decoded and with search engine redirect wrappers removed.
// Duplicates are kept and no scheme filtering happens here.
func ExtractLinks(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		links = append(links, UnwrapRedirect(Unescape(href)))
	})
	return links
}

// UnwrapRedirect returns the text between the last "/url?q=" and the next
// '&', or link unchanged when the marker is absent.
func UnwrapRedirect(link string) string {
	i := strings.LastIndex(link, redirectMarker)
	if i < 0 {
		return link
	}
	dest := link[i+len(redirectMarker):]
	if j := strings.IndexByte(dest, '&'); j >= 0 {
		dest = dest[:j]
	}
	return dest
}

// Unescape decodes %XX sequences. Malformed sequences are kept verbatim and
// '+' is left alone, so it never fails.
func Unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
