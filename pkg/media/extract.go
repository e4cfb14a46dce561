// Package media turns post records into download tasks.
package media

import (
	"sort"
	"time"
	"unicode/utf8"

	"douyindl/pkg/douyin"
)

const (
	// MaxDescLength is the rune budget for a description before it is cut
	MaxDescLength = 60
	truncatedMark = "......"
	dateLayout    = "2006-01-02"
	noDescription = "no_desc"
)

// Extraction is everything downloadable in one post
type Extraction struct {
	Description   string
	Date          string
	Collection    string
	Videos        []string // at most one
	FallbackVideo string   // second-highest bitrate, if any
	Images        []string
	LivePhotos    []string
}

// Extractor pulls media URLs and naming data out of posts
type Extractor struct {
	IncludeDate   bool
	MaxDescLength int
	Location      *time.Location
}

// NewExtractor returns an extractor with the default description budget in local time
func NewExtractor(includeDate bool) *Extractor {
	return &Extractor{IncludeDate: includeDate, MaxDescLength: MaxDescLength, Location: time.Local}
}

// Extract returns the media of a post. Live photo slots contribute only
// their video; malformed slots are skipped.
func (e *Extractor) Extract(p douyin.Post) Extraction {
	ex := Extraction{
		Date:       e.date(p.CreateTime),
		Collection: Collection(p),
	}
	ex.Description = e.description(p, ex.Date)

	if p.Video != nil {
		ranked := rankVariants(p.Video.BitRate)
		if len(ranked) > 0 {
			if u := firstURL(ranked[0].PlayAddr); u != "" {
				ex.Videos = []string{u}
			}
		}
		if len(ranked) > 1 {
			ex.FallbackVideo = firstURL(ranked[1].PlayAddr)
		}
	}

	for _, slot := range p.Images {
		switch slot.Kind {
		case douyin.SlotLivePhoto:
			ranked := rankVariants(slot.Live)
			if len(ranked) > 0 {
				if u := firstURL(ranked[0].PlayAddr); u != "" {
					ex.LivePhotos = append(ex.LivePhotos, u)
				}
			}
		case douyin.SlotImage:
			if n := len(slot.URLList); n > 0 && slot.URLList[n-1] != "" {
				ex.Images = append(ex.Images, slot.URLList[n-1])
			}
		}
	}

	return ex
}

func (e *Extractor) date(createTime int64) string {
	if createTime <= 0 {
		return ""
	}
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(createTime, 0).In(loc).Format(dateLayout)
}

func (e *Extractor) description(p douyin.Post, date string) string {
	desc := p.Desc
	if desc == "" {
		desc = p.AwemeID
	}
	if desc == "" {
		desc = noDescription
	}
	if e.IncludeDate && date != "" {
		desc = date + "_" + desc
	}

	limit := e.MaxDescLength
	if limit <= 0 {
		limit = MaxDescLength
	}
	if utf8.RuneCountInString(desc) > limit {
		desc = string([]rune(desc)[:limit]) + truncatedMark
	}
	return desc
}

// Collection returns the first non-empty mix name of a post
func Collection(p douyin.Post) string {
	var candidates []string
	if p.MixInfo != nil {
		candidates = append(candidates, p.MixInfo.MixName, p.MixInfo.MixNameStr)
	}
	candidates = append(candidates, p.MixName, p.MixNameStr)
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// rankVariants orders variants by bitrate, highest first; ties keep API order
func rankVariants(variants []douyin.BitRate) []douyin.BitRate {
	ranked := make([]douyin.BitRate, len(variants))
	copy(ranked, variants)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].BitRate > ranked[j].BitRate
	})
	return ranked
}

func firstURL(l douyin.URLList) string {
	if len(l.URLList) == 0 {
		return ""
	}
	return l.URLList[0]
}
