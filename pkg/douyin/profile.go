package douyin

import (
	"context"
	"fmt"

	errs "douyindl/pkg/errors"
)

// FetchProfile probes the profile endpoint. It doubles as a cookie check:
// anything but status_code 0 with a user object is an auth error.
func (c *Client) FetchProfile(ctx context.Context, secUserID string) (*Profile, error) {
	url := c.endpoints.ProfileURL(secUserID)

	var resp ProfileResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		if errs.IsType(err, errs.ErrorTypeCancelled) {
			return nil, err
		}
		return nil, errs.Auth("profile request failed, the cookie may be invalid", err)
	}

	if resp.StatusCode != 0 || resp.User == nil {
		c.logger.WarnWithFields("profile probe rejected", map[string]interface{}{
			"sec_user_id": secUserID,
			"status_code": resp.StatusCode,
			"status_msg":  resp.StatusMsg,
		})
		return nil, errs.Auth(fmt.Sprintf("profile probe returned status_code %d", resp.StatusCode), nil)
	}

	if resp.User.SecUID == "" {
		resp.User.SecUID = secUserID
	}

	c.logger.DebugWithFields("fetched profile", map[string]interface{}{
		"sec_user_id": secUserID,
		"nickname":    resp.User.Nickname,
		"aweme_count": resp.User.AwemeCount,
	})
	return resp.User, nil
}
