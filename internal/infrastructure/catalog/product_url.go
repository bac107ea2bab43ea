package catalog

import (
	"net/url"
	"regexp"
	"strings"
)

var productPath = regexp.MustCompile(`^/ip/(?:[^/]+/)?(\d+)/?$`)

// ProductURLParser recognises product-page URLs of a single retailer host
type ProductURLParser struct {
	host string
}

// NewProductURLParser creates a parser for host, e.g. "walmart.com"
func NewProductURLParser(host string) *ProductURLParser {
	return &ProductURLParser{host: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(host), "www."))}
}

// ExtractProductID returns the trailing numeric id of a product page URL.
// Query strings and fragments are ignored.
func (p *ProductURLParser) ExtractProductID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host != p.host && !strings.HasSuffix(host, "."+p.host) {
		return "", false
	}

	m := productPath.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
