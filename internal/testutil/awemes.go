package testutil

import "strconv"

// VideoAweme builds a raw video post. Variants are (bit_rate, url) pairs in any order.
func VideoAweme(id, desc string, createTime int64, variants ...Variant) map[string]interface{} {
	rates := make([]interface{}, 0, len(variants))
	for _, v := range variants {
		rates = append(rates, map[string]interface{}{
			"bit_rate":  v.BitRate,
			"play_addr": map[string]interface{}{"url_list": []string{v.URL}},
		})
	}
	return map[string]interface{}{
		"aweme_id":    id,
		"desc":        desc,
		"create_time": createTime,
		"video": map[string]interface{}{
			"bit_rate": rates,
			"duration": 15000,
		},
		"statistics": map[string]interface{}{"digg_count": 10, "comment_count": 2},
	}
}

// ImageAweme builds a raw note with one static image per url
func ImageAweme(id, desc string, createTime int64, urls ...string) map[string]interface{} {
	images := make([]interface{}, 0, len(urls))
	for _, u := range urls {
		images = append(images, map[string]interface{}{"url_list": []string{u + "?small", u}})
	}
	return map[string]interface{}{
		"aweme_id":    id,
		"desc":        desc,
		"create_time": createTime,
		"images":      images,
		"statistics":  map[string]interface{}{"digg_count": 1},
	}
}

// Variant is one bitrate rendition of a video
type Variant struct {
	BitRate int64
	URL     string
}

// InCollection tags a raw post with a mix name
func InCollection(aweme map[string]interface{}, name string) map[string]interface{} {
	aweme["mix_info"] = map[string]interface{}{"mix_name": name}
	return aweme
}

// NumberedAwemes builds n distinct video posts whose ids start at offset
func NumberedAwemes(offset, n int, mediaURL func(i int) string) []interface{} {
	out := make([]interface{}, 0, n)
	for i := offset; i < offset+n; i++ {
		id := strconv.FormatInt(7000000000000000000+int64(i), 10)
		out = append(out, VideoAweme(id, "post "+strconv.Itoa(i), 1700000000+int64(i), Variant{BitRate: 1000, URL: mediaURL(i)}))
	}
	return out
}
