package media

import (
	"fmt"
	"net/url"
	"path"

	"douyindl/pkg/douyin"
)

// Kind is the type of a downloadable asset
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindLive  Kind = "live"
)

// Task is a single file to download
type Task struct {
	URL         string `json:"url"`
	FallbackURL string `json:"fallback_url,omitempty"`
	Description string `json:"description"`
	Ext         string `json:"ext"`
	Date        string `json:"date,omitempty"`
	Collection  string `json:"collection,omitempty"`
	Kind        Kind   `json:"kind"`
	PostID      string `json:"post_id"`
}

// Summary counts what a set of posts contains
type Summary struct {
	Posts      int
	Videos     int
	Albums     int
	Images     int
	LivePhotos int
}

// TaskSet groups tasks the way they are downloaded: videos, then images and live photos
type TaskSet struct {
	Videos  []Task
	Images  []Task
	Summary Summary
}

// All returns videos followed by images
func (s TaskSet) All() []Task {
	all := make([]Task, 0, len(s.Videos)+len(s.Images))
	all = append(all, s.Videos...)
	return append(all, s.Images...)
}

// Len is the total number of tasks
func (s TaskSet) Len() int { return len(s.Videos) + len(s.Images) }

// WithoutCollections returns a copy with every collection name cleared
func (s TaskSet) WithoutCollections() TaskSet {
	out := TaskSet{
		Videos:  make([]Task, len(s.Videos)),
		Images:  make([]Task, len(s.Images)),
		Summary: s.Summary,
	}
	for i, t := range s.Videos {
		t.Collection = ""
		out.Videos[i] = t
	}
	for i, t := range s.Images {
		t.Collection = ""
		out.Images[i] = t
	}
	return out
}

// Filter keeps only tasks of the given kinds. Image filtering keeps live photos.
func (s TaskSet) Filter(videos, images bool) TaskSet {
	out := TaskSet{Summary: s.Summary}
	if videos {
		out.Videos = s.Videos
	}
	if images {
		out.Images = s.Images
	}
	return out
}

// Merge appends other to s
func (s TaskSet) Merge(other TaskSet) TaskSet {
	return TaskSet{
		Videos: append(append([]Task(nil), s.Videos...), other.Videos...),
		Images: append(append([]Task(nil), s.Images...), other.Images...),
		Summary: Summary{
			Posts:      s.Summary.Posts + other.Summary.Posts,
			Videos:     s.Summary.Videos + other.Summary.Videos,
			Albums:     s.Summary.Albums + other.Summary.Albums,
			Images:     s.Summary.Images + other.Summary.Images,
			LivePhotos: s.Summary.LivePhotos + other.Summary.LivePhotos,
		},
	}
}

// BuildTasks extracts every post and expands it into tasks
func BuildTasks(posts []douyin.Post, e *Extractor) TaskSet {
	var set TaskSet
	for _, p := range posts {
		ex := e.Extract(p)
		set.Summary.Posts++

		for _, u := range ex.Videos {
			set.Videos = append(set.Videos, Task{
				URL:         u,
				FallbackURL: ex.FallbackVideo,
				Description: ex.Description,
				Ext:         ExtFromURL(u, ".mp4"),
				Date:        ex.Date,
				Collection:  ex.Collection,
				Kind:        KindVideo,
				PostID:      p.AwemeID,
			})
		}
		set.Summary.Videos += len(ex.Videos)

		for i, u := range ex.Images {
			set.Images = append(set.Images, Task{
				URL:         u,
				Description: fmt.Sprintf("%s_p%d", ex.Description, i+1),
				Ext:         ExtFromURL(u, ".jpg"),
				Date:        ex.Date,
				Collection:  ex.Collection,
				Kind:        KindImage,
				PostID:      p.AwemeID,
			})
		}
		for i, u := range ex.LivePhotos {
			set.Images = append(set.Images, Task{
				URL:         u,
				Description: fmt.Sprintf("%s_live%d", ex.Description, i+1),
				Ext:         ExtFromURL(u, ".mp4"),
				Date:        ex.Date,
				Collection:  ex.Collection,
				Kind:        KindLive,
				PostID:      p.AwemeID,
			})
		}
		if len(ex.Images)+len(ex.LivePhotos) > 0 {
			set.Summary.Albums++
		}
		set.Summary.Images += len(ex.Images)
		set.Summary.LivePhotos += len(ex.LivePhotos)
	}
	return set
}

// ExtFromURL returns the extension of the URL path when it looks like one (".x" to ".xxxxx")
func ExtFromURL(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	ext := path.Ext(u.Path)
	if len(ext) > 1 && len(ext) <= 6 {
		return ext
	}
	return fallback
}
