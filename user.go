package feishubot

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
)

const userDetailPath = "/contact/v1/user/batch_get"

// User is the platform's contact record for a user visible to the bot.
// The endpoint returns more fields than these; unknown fields are
// ignored.
type User struct {
	OpenID   string `json:"open_id"`
	Name     string `json:"name"`
	EnName   string `json:"en_name"`
	Avatar72 string `json:"avatar_72"`
}

// UserDetail returns the contact record for the given open ID. Results
// are cached per user (default one day, 32 entries).
func (c *Client) UserDetail(ctx context.Context, openID string) (User, error) {
	return c.users.Lookup(ctx, openID, func(ctx context.Context) (User, error) {
		path := userDetailPath + "?open_ids=" + url.QueryEscape(openID)

		env, err := c.get(ctx, path)
		if err != nil {
			return User{}, err
		}

		var data struct {
			UserInfos []User `json:"user_infos"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return User{}, &ProtocolError{Endpoint: userDetailPath, Err: err}
		}
		if len(data.UserInfos) == 0 {
			return User{}, &ProtocolError{
				Endpoint: userDetailPath,
				Err:      errors.New("user_infos empty in response"),
			}
		}

		return data.UserInfos[0], nil
	})
}
