package metadata

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyindl/pkg/douyin"
)

func decodePost(t *testing.T, raw string) douyin.Post {
	t.Helper()
	var p douyin.Post
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestFromPostVideo(t *testing.T) {
	p := decodePost(t, `{
		"aweme_id": "111",
		"desc": "hello",
		"create_time": 1700000000,
		"mix_info": {"mix_name": "Series"},
		"video": {"duration": 3723500, "bit_rate": []},
		"statistics": {"digg_count": 5, "comment_count": 4, "collect_count": 3, "share_count": 2, "recommend_count": 1}
	}`)

	m := FromPost(p, Owner{SecUserID: "u", Nickname: "nick"})
	assert.Equal(t, TypeVideo, m.Type)
	assert.Equal(t, "https://www.douyin.com/video/111", m.Link)
	assert.Equal(t, "Series", m.Collection)
	assert.Equal(t, "2023-11-14 22:13:20", m.FormattedPublished(time.UTC))
	assert.Equal(t, "1h2m3s", m.FormattedDuration())
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, []int64{m.Likes, m.Comments, m.Favorites, m.Shares, m.Recommends})
	assert.Equal(t, "nick", m.Owner.Nickname)
}

func TestFromPostNote(t *testing.T) {
	p := decodePost(t, `{"aweme_id": "222", "images": [{"url_list": ["a"]}, {"url_list": ["b"]}]}`)

	m := FromPost(p, Owner{})
	assert.Equal(t, TypeNote, m.Type)
	assert.Equal(t, 2, m.ImageCount)
	assert.Equal(t, "https://www.douyin.com/note/222", m.Link)
	assert.Empty(t, m.FormattedDuration(), "zero duration is blank")
	assert.True(t, m.Published.IsZero(), "missing create_time stays unset")
	assert.Empty(t, m.FormattedPublished(time.UTC))
}

func TestSaveLoad(t *testing.T) {
	rows := FromPosts([]douyin.Post{
		{AwemeID: "1", Desc: "a", CreateTime: 1700000000},
		{AwemeID: "2", Desc: "b", Images: []douyin.ImageSlot{{Kind: douyin.SlotImage, URLList: []string{"x"}}}},
	}, Owner{Nickname: "nick"})

	path := filepath.Join(t.TempDir(), "export", "nick.json")
	require.NoError(t, Save(path, rows))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "1", loaded[0].ID)
	assert.Equal(t, TypeNote, loaded[1].Type)
	assert.True(t, loaded[0].Published.Equal(rows[0].Published))

	videos, notes := Summary(loaded)
	assert.Equal(t, 1, videos)
	assert.Equal(t, 1, notes)
}
