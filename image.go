package feishubot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
)

const imageUploadPath = "/image/v4/put/"

// UploadImage fetches the image at imageURL and uploads it to the
// platform, returning the image key used to reference it in messages.
func (c *Client) UploadImage(ctx context.Context, imageURL string) (string, error) {
	data, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	return c.uploadImageBytes(ctx, data)
}

// UploadImageSized is UploadImage, additionally reporting the image's
// pixel dimensions decoded from its header (GIF, JPEG and PNG).
func (c *Client) UploadImageSized(ctx context.Context, imageURL string) (key string, width, height int, err error) {
	data, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return "", 0, 0, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("decoding image from %s: %w", imageURL, err)
	}

	key, err = c.uploadImageBytes(ctx, data)
	if err != nil {
		return "", 0, 0, err
	}

	return key, cfg.Width, cfg.Height, nil
}

// fetchImage retrieves raw image bytes from an arbitrary URL. This is a
// plain HTTP fetch with no envelope or bearer credential involved.
func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building image fetch for %s: %w", imageURL, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image %s: unexpected status %s", imageURL, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", imageURL, err)
	}

	return data, nil
}

// uploadImageBytes submits image bytes as multipart form content and
// returns the platform's image key.
func (c *Client) uploadImageBytes(ctx context.Context, data []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if err := form.WriteField("image_type", "message"); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	part, err := form.CreateFormFile("image", "image")
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	if err := form.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	env, err := c.doRetry(ctx, http.MethodPost, imageUploadPath, buf.Bytes(), form.FormDataContentType(), false)
	if err != nil {
		return "", err
	}

	var payload struct {
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return "", &ProtocolError{Endpoint: imageUploadPath, Err: err}
	}
	if payload.ImageKey == "" {
		return "", &ProtocolError{
			Endpoint: imageUploadPath,
			Err:      errors.New("image_key missing from response"),
		}
	}

	log.Debug().Str("image_key", payload.ImageKey).Msg("image uploaded")

	return payload.ImageKey, nil
}
