package douyin

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
)

// ResolveTimeout bounds the redirect-following request for short links
const ResolveTimeout = 10 * time.Second

var (
	secUserIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/user/([A-Za-z0-9_.\-]+)`),
		regexp.MustCompile(`sec_user_id=([A-Za-z0-9_.\-]+)`),
		regexp.MustCompile(`(MS4wLjAB[A-Za-z0-9_-]+)`),
	}
	embeddedURL = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// Resolver turns profile links, short links and share texts into a sec_user_id
type Resolver struct {
	httpClient *http.Client
	userAgent  string
	logger     logger.Logger
}

// NewResolver creates a Resolver. httpClient may be nil.
func NewResolver(httpClient *http.Client, userAgent string, log logger.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: ResolveTimeout}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{httpClient: httpClient, userAgent: userAgent, logger: log}
}

// ExtractSecUserID applies the known patterns in order and returns the first match
func ExtractSecUserID(s string) (string, bool) {
	for _, re := range secUserIDPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// NormalizeInput trims the input and reduces a share text to its first URL
func NormalizeInput(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if i := strings.IndexAny(raw, " \t\n"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	if u := embeddedURL.FindString(raw); u != "" {
		return u
	}
	return raw
}

// Resolve returns the sec_user_id referenced by rawURL, following redirects
// when the input itself carries none.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	input := NormalizeInput(rawURL)
	if input == "" {
		return "", errs.Resolution(rawURL)
	}

	if id, ok := ExtractSecUserID(input); ok {
		return id, nil
	}

	final := r.followRedirects(ctx, input)
	if id, ok := ExtractSecUserID(final); ok {
		r.logger.DebugWithFields("resolved short link", map[string]interface{}{
			"input":       input,
			"final_url":   final,
			"sec_user_id": id,
		})
		return id, nil
	}

	return "", errs.Resolution(rawURL)
}

// followRedirects returns the final URL after redirects, or the input on failure
func (r *Resolver) followRedirects(ctx context.Context, input string) string {
	ctx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input, nil)
	if err != nil {
		return input
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.WithError(err).DebugWithFields("redirect lookup failed", map[string]interface{}{
			"url": input,
		})
		return input
	}
	defer resp.Body.Close()

	return resp.Request.URL.String()
}
