package feishubot

import (
	"context"
	"encoding/json"
)

const (
	groupListPath   = "/chat/v4/list"
	groupUpdatePath = "/chat/v4/update/"

	// groupCacheKey is the constant key of the single-entry group list
	// cache.
	groupCacheKey = "groups"
)

// Group is a chat the bot has been added to. Groups are only ever
// obtained from the platform's group list endpoint, never constructed
// by callers.
type Group struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
}

// Groups returns the chats the bot can post into. The result is cached
// (default 5 minutes), so a chat the bot was just added to may take one
// cache cycle to appear.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	return c.groups.Lookup(ctx, groupCacheKey, func(ctx context.Context) ([]Group, error) {
		env, err := c.get(ctx, groupListPath)
		if err != nil {
			return nil, err
		}

		var data struct {
			Groups []Group `json:"groups"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &ProtocolError{Endpoint: groupListPath, Err: err}
		}

		return data.Groups, nil
	})
}

// UpdateGroupName renames a chat the bot belongs to.
func (c *Client) UpdateGroupName(ctx context.Context, chatID, name string) error {
	_, err := c.postJSON(ctx, groupUpdatePath, map[string]string{
		"chat_id": chatID,
		"name":    name,
	})
	return err
}

// resolveChats expands the caller's target list. An explicit list is
// returned unchanged without validation: an unknown chat ID surfaces as
// that chat's send failure. An empty list targets every known group.
func (c *Client) resolveChats(ctx context.Context, chatIDs []string) ([]string, error) {
	if len(chatIDs) > 0 {
		return chatIDs, nil
	}

	groups, err := c.Groups(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ChatID
	}

	return ids, nil
}
