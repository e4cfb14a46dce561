package douyin

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Post is one entry of a user's aweme_list
type Post struct {
	AwemeID    string      `json:"aweme_id"`
	Desc       string      `json:"desc"`
	CreateTime int64       `json:"create_time"`
	AwemeType  int         `json:"aweme_type"`
	MixInfo    *MixInfo    `json:"mix_info,omitempty"`
	MixName    string      `json:"mix_name,omitempty"`
	MixNameStr string      `json:"mix_name_str,omitempty"`
	Video      *Video      `json:"video,omitempty"`
	Images     []ImageSlot `json:"images,omitempty"`
	Statistics Statistics  `json:"statistics"`
}

// MixInfo describes the collection a post belongs to
type MixInfo struct {
	MixID      string `json:"mix_id,omitempty"`
	MixName    string `json:"mix_name,omitempty"`
	MixNameStr string `json:"mix_name_str,omitempty"`
}

// Video holds the playable variants of a video post
type Video struct {
	BitRate  []BitRate `json:"bit_rate"`
	PlayAddr URLList   `json:"play_addr"`
	Duration int64     `json:"duration"` // milliseconds
}

// BitRate is one encoded variant
type BitRate struct {
	GearName string  `json:"gear_name,omitempty"`
	BitRate  int64   `json:"bit_rate"`
	PlayAddr URLList `json:"play_addr"`
}

// URLList carries CDN mirrors for the same asset
type URLList struct {
	URLList []string `json:"url_list"`
}

// Statistics are the engagement counters shown on a post
type Statistics struct {
	DiggCount      int64 `json:"digg_count"`
	CommentCount   int64 `json:"comment_count"`
	CollectCount   int64 `json:"collect_count"`
	ShareCount     int64 `json:"share_count"`
	RecommendCount int64 `json:"recommend_count"`
}

// SlotKind classifies an entry of Post.Images
type SlotKind int

const (
	SlotMalformed SlotKind = iota
	SlotImage
	SlotLivePhoto
)

func (k SlotKind) String() string {
	switch k {
	case SlotImage:
		return "image"
	case SlotLivePhoto:
		return "live_photo"
	default:
		return "malformed"
	}
}

// ImageSlot is a static image or a live photo. A slot is exactly one of
// malformed, image or live photo; decoding never fails on a bad slot.
type ImageSlot struct {
	Kind    SlotKind
	URLList []string  // static image mirrors, smallest to largest
	Live    []BitRate // live photo variants
}

type rawSlot struct {
	URLList []string        `json:"url_list"`
	Video   json.RawMessage `json:"video"`
}

func (s *ImageSlot) UnmarshalJSON(data []byte) error {
	*s = ImageSlot{Kind: SlotMalformed}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var raw rawSlot
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}

	if variants, ok := liveVariants(raw.Video); ok {
		s.Kind = SlotLivePhoto
		s.Live = variants
		return nil
	}

	s.Kind = SlotImage
	s.URLList = raw.URLList
	return nil
}

func (s ImageSlot) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SlotLivePhoto:
		return json.Marshal(map[string]interface{}{
			"video": map[string]interface{}{"bit_rate": s.Live},
		})
	case SlotImage:
		return json.Marshal(rawSlot{URLList: s.URLList})
	default:
		return []byte("null"), nil
	}
}

// liveVariants reports whether video is a non-empty object with a bit_rate key
func liveVariants(video json.RawMessage) ([]BitRate, bool) {
	if len(video) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(video, &fields); err != nil || len(fields) == 0 {
		return nil, false
	}
	rawRates, ok := fields["bit_rate"]
	if !ok {
		return nil, false
	}
	var rates []BitRate
	if err := json.Unmarshal(rawRates, &rates); err != nil {
		return nil, true
	}
	return rates, true
}

// Flag decodes has_more, which the API sends as 0/1 or true/false
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = true
	case "false", "null", "0", `""`:
		*f = false
	default:
		n, err := strconv.ParseFloat(string(bytes.Trim(data, `"`)), 64)
		if err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

// PostsResponse is the raw listing page; posts are decoded one by one
type PostsResponse struct {
	StatusCode int               `json:"status_code"`
	AwemeList  []json.RawMessage `json:"aweme_list"`
	MaxCursor  int64             `json:"max_cursor"`
	HasMore    Flag              `json:"has_more"`
}

// ProfileResponse is the profile/other payload
type ProfileResponse struct {
	StatusCode int      `json:"status_code"`
	StatusMsg  string   `json:"status_msg,omitempty"`
	User       *Profile `json:"user"`
}

// Profile is the subset of user fields the downloader shows or stores
type Profile struct {
	SecUID         string `json:"sec_uid"`
	UID            string `json:"uid"`
	Nickname       string `json:"nickname"`
	Signature      string `json:"signature"`
	AwemeCount     int    `json:"aweme_count"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	TotalFavorited int64  `json:"total_favorited"`
}

// PageInfo is reported after each non-empty listing page
type PageInfo struct {
	Page  int
	Count int
	Total int
	Posts []Post
}
