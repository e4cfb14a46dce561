package douyin

import (
	"context"
	"encoding/json"

	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
	"douyindl/pkg/retry"
)

// FetchPosts walks the cursor-paginated post listing of a user.
//
// A failure on the first page is fatal and returns a page_fetch error. A failure on
// a later page ends the walk and returns what was collected so far with a nil
// error. onPage, when non-nil, is called after every non-empty page in order.
// Cancellation returns the collected posts together with a cancelled error.
func (c *Client) FetchPosts(ctx context.Context, secUserID string, onPage func(PageInfo)) ([]Post, error) {
	var all []Post
	var cursor int64

	for page := 1; ; page++ {
		url := c.endpoints.FirstPageURL(secUserID)
		if page > 1 {
			url = c.endpoints.NextPageURL(secUserID, cursor)
		}

		var resp PostsResponse
		if err := c.getJSON(ctx, url, &resp); err != nil {
			if errs.IsType(err, errs.ErrorTypeCancelled) {
				return all, err
			}
			if page == 1 {
				return nil, errs.PageFetch(page, err)
			}
			c.logger.WithError(err).WarnWithFields("listing page failed, keeping collected posts", map[string]interface{}{
				"sec_user_id": secUserID,
				"page":        page,
				"collected":   len(all),
			})
			return all, nil
		}

		if len(resp.AwemeList) == 0 {
			break
		}

		posts := c.decodePosts(resp.AwemeList, page)
		all = append(all, posts...)
		logger.LogPage(c.logger, secUserID, page, len(posts), len(all))
		if onPage != nil {
			onPage(PageInfo{Page: page, Count: len(posts), Total: len(all), Posts: posts})
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.MaxCursor

		if err := retry.Wait(ctx, c.pageDelay); err != nil {
			return all, errs.Wrap(errs.ErrorTypeCancelled, "listing cancelled", err)
		}
	}

	return all, nil
}

// decodePosts decodes each raw entry on its own so that one bad record
// only drops itself
func (c *Client) decodePosts(raw []json.RawMessage, page int) []Post {
	posts := make([]Post, 0, len(raw))
	for i, item := range raw {
		var p Post
		if err := json.Unmarshal(item, &p); err != nil {
			c.logger.WithError(err).WarnWithFields("skipping undecodable post", map[string]interface{}{
				"page":  page,
				"index": i,
			})
			continue
		}
		posts = append(posts, p)
	}
	return posts
}
