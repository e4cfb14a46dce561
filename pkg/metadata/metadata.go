package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"douyindl/pkg/douyin"
	"douyindl/pkg/media"
)

const (
	// TypeVideo and TypeNote classify a post
	TypeVideo = "video"
	TypeNote  = "note"

	// PublishedLayout is the timestamp layout used in exports
	PublishedLayout = "2006-01-02 15:04:05"
)

// PostMetadata is one exported row describing a post
type PostMetadata struct {
	// Core identifiers
	ID   string `json:"id"`
	Type string `json:"type"`
	Link string `json:"link"`

	// Timestamps
	Published  time.Time `json:"published"`
	ExportedAt time.Time `json:"exported_at"`

	// Content
	Caption    string        `json:"caption,omitempty"`
	Collection string        `json:"collection,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	ImageCount int           `json:"image_count,omitempty"`

	// Engagement
	Likes      int64 `json:"likes"`
	Comments   int64 `json:"comments"`
	Favorites  int64 `json:"favorites"`
	Shares     int64 `json:"shares"`
	Recommends int64 `json:"recommends"`

	Owner Owner `json:"owner"`
}

// Owner identifies the account the post was fetched from
type Owner struct {
	SecUserID string `json:"sec_user_id"`
	Nickname  string `json:"nickname"`
}

// FromPost converts a listing record to a row
func FromPost(p douyin.Post, owner Owner) *PostMetadata {
	meta := &PostMetadata{
		ID:         p.AwemeID,
		Type:       TypeVideo,
		Link:       douyin.PostURL(p),
		ExportedAt: time.Now(),
		Caption:    p.Desc,
		Collection: media.Collection(p),
		Likes:      p.Statistics.DiggCount,
		Comments:   p.Statistics.CommentCount,
		Favorites:  p.Statistics.CollectCount,
		Shares:     p.Statistics.ShareCount,
		Recommends: p.Statistics.RecommendCount,
		Owner:      owner,
	}

	if p.CreateTime > 0 {
		meta.Published = time.Unix(p.CreateTime, 0)
	}
	if len(p.Images) > 0 {
		meta.Type = TypeNote
		meta.ImageCount = len(p.Images)
	}
	if p.Video != nil && p.Video.Duration > 0 {
		meta.Duration = time.Duration(p.Video.Duration) * time.Millisecond
	}

	return meta
}

// FromPosts converts every post, keeping order
func FromPosts(posts []douyin.Post, owner Owner) []*PostMetadata {
	rows := make([]*PostMetadata, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, FromPost(p, owner))
	}
	return rows
}

// FormattedPublished renders the publish time in loc, or local time when nil
func (m *PostMetadata) FormattedPublished(loc *time.Location) string {
	if m.Published.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return m.Published.In(loc).Format(PublishedLayout)
}

// FormattedDuration renders whole seconds as 1h2m3s; zero is blank
func (m *PostMetadata) FormattedDuration() string {
	d := m.Duration.Truncate(time.Second)
	if d <= 0 {
		return ""
	}
	return d.String()
}

// Save writes rows to a JSON file, creating its directory
func Save(path string, rows []*PostMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads rows written by Save
func Load(path string) ([]*PostMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var rows []*PostMetadata
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return rows, nil
}

// Summary counts rows by type
func Summary(rows []*PostMetadata) (videos, notes int) {
	for _, r := range rows {
		if r.Type == TypeNote {
			notes++
		} else {
			videos++
		}
	}
	return videos, notes
}
