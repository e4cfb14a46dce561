package douyin

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// BaseURL serves the profile probe and the first listing page
	BaseURL = "https://www.douyin.com"

	// PagingURL serves listing pages after the first
	PagingURL = "https://www-hj.douyin.com"

	// Referer is sent with API and media requests
	Referer = "https://www.douyin.com/"

	ProfileEndpoint = "/aweme/v1/web/user/profile/other/"
	PostsEndpoint   = "/aweme/v1/web/aweme/post/"

	// DefaultPageSize is the number of posts requested per page
	DefaultPageSize = 50
)

// Endpoints builds API URLs. Hosts are overridable so tests can point them at httptest servers.
type Endpoints struct {
	BaseURL   string
	PagingURL string
	PageSize  int
}

// DefaultEndpoints returns the production hosts
func DefaultEndpoints() Endpoints {
	return Endpoints{BaseURL: BaseURL, PagingURL: PagingURL, PageSize: DefaultPageSize}
}

func webParams(secUserID string) url.Values {
	params := url.Values{}
	params.Set("device_platform", "webapp")
	params.Set("aid", "6383")
	params.Set("channel", "channel_pc_web")
	params.Set("sec_user_id", secUserID)
	return params
}

// ProfileURL constructs the profile probe URL
func (e Endpoints) ProfileURL(secUserID string) string {
	params := webParams(secUserID)
	params.Set("from_user_page", "1")
	return fmt.Sprintf("%s%s?%s", e.BaseURL, ProfileEndpoint, params.Encode())
}

// FirstPageURL constructs the listing URL for the first page
func (e Endpoints) FirstPageURL(secUserID string) string {
	params := e.listParams(secUserID, 0)
	params.Set("need_time_list", "1")
	return fmt.Sprintf("%s%s?%s", e.BaseURL, PostsEndpoint, params.Encode())
}

// NextPageURL constructs the listing URL for a page after the first
func (e Endpoints) NextPageURL(secUserID string, cursor int64) string {
	params := e.listParams(secUserID, cursor)
	params.Set("need_time_list", "0")
	return fmt.Sprintf("%s%s?%s", e.PagingURL, PostsEndpoint, params.Encode())
}

func (e Endpoints) listParams(secUserID string, cursor int64) url.Values {
	size := e.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	params := webParams(secUserID)
	params.Set("max_cursor", strconv.FormatInt(cursor, 10))
	params.Set("count", strconv.Itoa(size))
	params.Set("locate_query", "false")
	params.Set("show_live_replay_strategy", "1")
	params.Set("publish_video_strategy_type", "2")
	params.Set("from_user_page", "1")
	params.Set("update_version_code", "170400")
	return params
}

// PostURL returns the public web link for a post
func PostURL(p Post) string {
	if p.AwemeID == "" {
		return ""
	}
	if len(p.Images) > 0 {
		return fmt.Sprintf("%s/note/%s", BaseURL, p.AwemeID)
	}
	return fmt.Sprintf("%s/video/%s", BaseURL, p.AwemeID)
}

// UserURL returns the public profile link for a sec_user_id
func UserURL(secUserID string) string {
	return fmt.Sprintf("%s/user/%s", BaseURL, secUserID)
}
