// Package douyin is a small client for the public Douyin web API.
//
// It covers the three calls a profile downloader needs: resolving a share
// link to a sec_user_id, probing the user profile (which also validates the
// cookie) and walking the cursor-paginated post listing.
//
//	r := douyin.NewResolver(nil, "", log)
//	id, err := r.Resolve(ctx, "https://v.douyin.com/iRNBho6u/")
//
//	c := douyin.NewClient(douyin.ClientConfig{Cookie: cookie}, log)
//	profile, err := c.FetchProfile(ctx, id)
//	posts, err := c.FetchPosts(ctx, id, func(p douyin.PageInfo) {
//		fmt.Printf("page %d: %d posts\n", p.Page, p.Count)
//	})
//
// Errors are *errors.Error values from douyindl/pkg/errors; use errors.IsType
// to tell resolution, auth and page_fetch failures apart.
package douyin
