package feishubot

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

const messageSendPath = "/message/v4/send/"

const (
	msgTypeText        = "text"
	msgTypeImage       = "image"
	msgTypePost        = "post"
	msgTypeInteractive = "interactive"
)

// SendResult is the outcome of a send to a single chat. Exactly one of
// Envelope and Err is set.
type SendResult struct {
	ChatID   string
	Envelope *Envelope
	Err      error
}

// PostElement is a single element of a rich post line, such as
// {"tag": "text", "text": "hello"} or {"tag": "img", "image_key": k}.
type PostElement map[string]any

// PostLine is one paragraph of a rich post.
type PostLine []PostElement

// Card is an interactive card document as defined by the platform's
// card schema.
type Card map[string]any

// sendToChats fans a message out to the resolved chats. All sends are
// issued concurrently and joined before returning: one chat's failure
// neither cancels nor masks its siblings, and the caller receives one
// result per chat in target order.
func (c *Client) sendToChats(ctx context.Context, msgType string, content any, card Card, shared bool, chats []string) ([]SendResult, error) {
	ids, err := c.resolveChats(ctx, chats)
	if err != nil {
		return nil, err
	}

	results := make([]SendResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		payload := map[string]any{
			"chat_id":  id,
			"msg_type": msgType,
		}
		if card != nil {
			payload["card"] = card
			payload["update_multi"] = shared
		} else {
			payload["content"] = content
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			env, err := c.postJSON(ctx, messageSendPath, payload)
			results[i] = SendResult{ChatID: id, Envelope: env, Err: err}
		}()
	}
	wg.Wait()

	return results, nil
}

// SendText sends a plain text message. With no chats given, the message
// goes to every known group.
func (c *Client) SendText(ctx context.Context, text string, chats ...string) ([]SendResult, error) {
	results, err := c.sendToChats(ctx, msgTypeText, map[string]string{"text": text}, nil, false, chats)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("chats", len(results)).Msg("sent text message")

	return results, nil
}

// SendImage uploads the image at imageURL and sends it. With no chats
// given, the image goes to every known group.
func (c *Client) SendImage(ctx context.Context, imageURL string, chats ...string) ([]SendResult, error) {
	imageKey, err := c.UploadImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	results, err := c.sendToChats(ctx, msgTypeImage, map[string]string{"image_key": imageKey}, nil, false, chats)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("image_key", imageKey).Int("chats", len(results)).Msg("sent image message")

	return results, nil
}

// SendPost sends a rich post (mixed text and images). Content is the
// platform's paragraph grid: one PostLine per paragraph.
//
// Post format: https://open.feishu.cn/document/ukTMukTMukTM/uMDMxEjLzATMx4yMwETM
func (c *Client) SendPost(ctx context.Context, title string, content []PostLine, chats ...string) ([]SendResult, error) {
	body := map[string]any{
		"post": map[string]any{
			"zh_cn": map[string]any{
				"title":   title,
				"content": content,
			},
		},
	}

	results, err := c.sendToChats(ctx, msgTypePost, body, nil, false, chats)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("title", title).Int("chats", len(results)).Msg("sent post message")

	return results, nil
}

// SendCard sends an interactive card. When shared is true the card's
// state updates are shared across every chat it was sent to
// (update_multi in the wire payload).
//
// Card format: https://open.feishu.cn/document/ukTMukTMukTM/ugTNwUjL4UDM14CO1ATN
func (c *Client) SendCard(ctx context.Context, card Card, shared bool, chats ...string) ([]SendResult, error) {
	if card == nil {
		return nil, errors.New("card must not be nil")
	}

	results, err := c.sendToChats(ctx, msgTypeInteractive, nil, card, shared, chats)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("chats", len(results)).Msg("sent card message")

	return results, nil
}
