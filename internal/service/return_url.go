package service

import (
	"net/url"
	"strings"
)

// ReturnURLPolicy restricts post-callback redirects to known frontend origins.
type ReturnURLPolicy struct {
	fallback string
	base     *url.URL
	origins  map[string]struct{}
}

// NewReturnURLPolicy allows the origin of fallback plus every allowed origin.
func NewReturnURLPolicy(fallback string, allowed []string) *ReturnURLPolicy {
	p := &ReturnURLPolicy{fallback: fallback, origins: make(map[string]struct{})}
	if u, err := url.Parse(fallback); err == nil && u.Host != "" {
		p.base = u
		p.origins[origin(u)] = struct{}{}
	}
	for _, a := range allowed {
		if u, err := url.Parse(strings.TrimSpace(a)); err == nil && u.Host != "" {
			p.origins[origin(u)] = struct{}{}
		}
	}
	return p
}

// Fallback returns the default frontend URL.
func (p *ReturnURLPolicy) Fallback() string {
	return p.fallback
}

// Allowed reports whether origin may receive redirects and CORS responses.
func (p *ReturnURLPolicy) Allowed(o string) bool {
	_, ok := p.origins[strings.ToLower(strings.TrimSuffix(o, "/"))]
	return ok
}

// Sanitize returns raw when it points at an allowed origin, resolves
// root-relative paths against the fallback, and returns the fallback otherwise.
func (p *ReturnURLPolicy) Sanitize(raw string) string {
	if raw == "" {
		return p.fallback
	}

	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") && !strings.HasPrefix(raw, "/\\") {
		if p.base == nil {
			return p.fallback
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return p.fallback
		}
		return p.base.ResolveReference(ref).String()
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") || u.User != nil {
		return p.fallback
	}
	if !p.Allowed(origin(u)) {
		return p.fallback
	}
	return u.String()
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func withQuery(target string, kv ...string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	u.RawQuery = q.Encode()
	return u.String()
}
