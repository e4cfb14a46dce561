// Package testutil provides an in-process fake of the Douyin web API and
// its media CDN for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	profilePath = "/aweme/v1/web/user/profile/other/"
	postsPath   = "/aweme/v1/web/aweme/post/"
	mediaPrefix = "/media/"
	sharePrefix = "/share/"
)

// Request is one request observed by the fake server
type Request struct {
	Host    string // "main" or "paging"
	Path    string
	Query   url.Values
	Cookie  string
	Referer string
}

// FakeDouyin simulates the profile, listing, short-link and media endpoints.
// Two listeners share the same handlers so that tests can tell which host a
// listing request went to.
type FakeDouyin struct {
	main   *httptest.Server
	paging *httptest.Server

	mu             sync.RWMutex
	profiles       map[string]map[string]interface{}
	pages          map[string][][]interface{}
	media          map[string][]byte
	mediaFailures  map[string]int
	errorResponses map[string]int
	delays         map[string]time.Duration
	shortLinks     map[string]string
	requests       []Request

	requestCount int32
}

// NewFakeDouyin starts the fake server pair
func NewFakeDouyin() *FakeDouyin {
	f := &FakeDouyin{
		profiles:       make(map[string]map[string]interface{}),
		pages:          make(map[string][][]interface{}),
		media:          make(map[string][]byte),
		mediaFailures:  make(map[string]int),
		errorResponses: make(map[string]int),
		delays:         make(map[string]time.Duration),
		shortLinks:     make(map[string]string),
	}
	f.main = httptest.NewServer(f.handler("main"))
	f.paging = httptest.NewServer(f.handler("paging"))
	return f
}

func (f *FakeDouyin) handler(host string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(profilePath, f.handleProfile)
	mux.HandleFunc(postsPath, f.handlePosts)
	mux.HandleFunc(mediaPrefix, f.handleMedia)
	mux.HandleFunc(sharePrefix, f.handleShare)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.requestCount, 1)
		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Host:    host,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Cookie:  r.Header.Get("Cookie"),
			Referer: r.Header.Get("Referer"),
		})
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (f *FakeDouyin) handleProfile(w http.ResponseWriter, r *http.Request) {
	secUserID := r.URL.Query().Get("sec_user_id")
	if f.interrupt(w, "profile:"+secUserID) {
		return
	}

	f.mu.RLock()
	user, ok := f.profiles[secUserID]
	f.mu.RUnlock()

	if !ok {
		writeJSON(w, map[string]interface{}{"status_code": 2053, "status_msg": "user not found"})
		return
	}
	writeJSON(w, map[string]interface{}{"status_code": 0, "user": user})
}

func (f *FakeDouyin) handlePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	secUserID := q.Get("sec_user_id")
	cursor, err := strconv.Atoi(q.Get("max_cursor"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if f.interrupt(w, fmt.Sprintf("posts:%s:%d", secUserID, cursor)) {
		return
	}

	f.mu.RLock()
	pages := f.pages[secUserID]
	f.mu.RUnlock()

	// cursor N (N > 0) addresses page index N
	if cursor >= len(pages) {
		writeJSON(w, map[string]interface{}{"status_code": 0, "aweme_list": []interface{}{}, "has_more": 0})
		return
	}

	hasMore := 0
	if cursor < len(pages)-1 {
		hasMore = 1
	}
	writeJSON(w, map[string]interface{}{
		"status_code": 0,
		"aweme_list":  pages[cursor],
		"max_cursor":  cursor + 1,
		"has_more":    hasMore,
	})
}

func (f *FakeDouyin) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, mediaPrefix)
	if f.interrupt(w, "media:"+name) {
		return
	}

	f.mu.Lock()
	remaining := f.mediaFailures[name]
	if remaining > 0 {
		f.mediaFailures[name] = remaining - 1
	}
	body, ok := f.media[name]
	f.mu.Unlock()

	if remaining > 0 {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

func (f *FakeDouyin) handleShare(w http.ResponseWriter, r *http.Request) {
	code := strings.Trim(strings.TrimPrefix(r.URL.Path, sharePrefix), "/")
	f.mu.RLock()
	target, ok := f.shortLinks[code]
	f.mu.RUnlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// interrupt applies configured delays and error codes; it reports whether the response was written
func (f *FakeDouyin) interrupt(w http.ResponseWriter, key string) bool {
	f.mu.RLock()
	delay := f.delays[key]
	code := f.errorResponses[key]
	f.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if code > 0 {
		w.WriteHeader(code)
		w.Write([]byte(fmt.Sprintf("Error %d", code)))
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// AddProfile registers a user returned by the profile probe
func (f *FakeDouyin) AddProfile(secUserID, nickname string, awemeCount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[secUserID] = map[string]interface{}{
		"sec_uid":     secUserID,
		"nickname":    nickname,
		"aweme_count": awemeCount,
	}
}

// AddPage appends one listing page of raw aweme objects for a user
func (f *FakeDouyin) AddPage(secUserID string, awemes ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := make([]interface{}, len(awemes))
	copy(page, awemes)
	f.pages[secUserID] = append(f.pages[secUserID], page)
}

// AddMedia registers a CDN object and returns its URL
func (f *FakeDouyin) AddMedia(name string, body []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[name] = body
	return f.MediaURL(name)
}

// MediaURL returns the CDN URL for name whether or not it is registered
func (f *FakeDouyin) MediaURL(name string) string {
	return f.main.URL + mediaPrefix + name
}

// FailMedia makes the next n requests for name answer 500
func (f *FakeDouyin) FailMedia(name string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaFailures[name] = n
}

// AddShortLink makes /share/{code} redirect to target and returns the short URL
func (f *FakeDouyin) AddShortLink(code, target string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortLinks[code] = target
	return f.main.URL + sharePrefix + code + "/"
}

// SetErrorResponse makes an endpoint key answer with code. Keys are
// "profile:{id}", "posts:{id}:{cursor}" and "media:{name}".
func (f *FakeDouyin) SetErrorResponse(key string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorResponses[key] = code
}

// SetDelay delays responses for an endpoint key
func (f *FakeDouyin) SetDelay(key string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[key] = delay
}

// BaseURL is the host that serves profiles and first listing pages
func (f *FakeDouyin) BaseURL() string { return f.main.URL }

// PagingURL is the host that serves listing pages after the first
func (f *FakeDouyin) PagingURL() string { return f.paging.URL }

// Requests returns every request seen so far
func (f *FakeDouyin) Requests() []Request {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsTo returns the requests whose path equals path
func (f *FakeDouyin) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// ListingRequests returns the listing requests in arrival order
func (f *FakeDouyin) ListingRequests() []Request { return f.RequestsTo(postsPath) }

// RequestCount returns the total number of requests
func (f *FakeDouyin) RequestCount() int {
	return int(atomic.LoadInt32(&f.requestCount))
}

// Close shuts down both listeners
func (f *FakeDouyin) Close() {
	f.main.Close()
	f.paging.Close()
}
