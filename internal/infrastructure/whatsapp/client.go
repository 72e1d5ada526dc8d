// Package whatsapp is the outbound provider client: text sends, two-step
// media retrieval and profile picture lookups against the Graph-style API.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/infrastructure/logger"
	"relaydesk/services/channel-api/internal/utils/httpclients"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// Client talks to the provider API. One instance serves all integrations;
// credentials travel per call because each integration has its own token.
type Client struct {
	baseURL         string
	sendTimeout     time.Duration
	resolveTimeout  time.Duration
	downloadTimeout time.Duration
	http            *resty.Client
	log             zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:         cfg.ProviderBaseURL,
		sendTimeout:     cfg.ProviderSendTimeout,
		resolveTimeout:  cfg.MediaResolveTimeout,
		downloadTimeout: cfg.MediaDownloadTimeout,
		http:            httpclients.NewClient("whatsapp"),
		log:             logger.GetLogger(),
	}
}

// ===============================================
// Send
// ===============================================

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message and returns the provider-assigned message
// id. The caller truncates the body to the provider's length limit first.
func (c *Client) SendText(ctx context.Context, accessToken, phoneNumberID, to, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	var out sendTextResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetBody(sendTextRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             sendText{Body: text},
		}).
		SetResult(&out).
		Post(fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID))
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"provider send failed", err, "b52e0c78-16d4-4a9f-8e31-f70a4d29c6b5")
	}
	if resp.IsError() {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			fmt.Sprintf("provider send rejected with status %d", resp.StatusCode()), nil, "04d9f1a6-7e83-4c25-b0d9-38c61e52a7f4")
	}
	if len(out.Messages) == 0 {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"provider send returned no message id", nil, "71c3e8d0-25b9-4f64-a1c7-e09d5b83f216")
	}
	return out.Messages[0].ID, nil
}

// ===============================================
// Media
// ===============================================

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// FetchMedia resolves the media id to a short-lived signed URL, then
// downloads the binary. The two legs carry independent timeouts: metadata is
// a small lookup, the download can be megabytes.
func (c *Client) FetchMedia(ctx context.Context, mediaID, accessToken string) ([]byte, string, error) {
	meta, err := c.resolveMedia(ctx, mediaID, accessToken)
	if err != nil {
		return nil, "", err
	}

	dlCtx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(dlCtx).
		SetAuthToken(accessToken).
		SetDoNotParseResponse(true).
		Get(meta.URL)
	if err != nil {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"media download failed", err, "c7f12e84-9b30-4d6a-85c1-2e04a9d67b53")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			fmt.Sprintf("media download rejected with status %d", resp.StatusCode()), nil, "38a05c96-e1d7-4b28-9f40-6c51b7e2d894")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"media download read failed", err, "e93b64f0-0a27-45d1-bc88-57f2a1c09d36")
	}
	return data, meta.MimeType, nil
}

func (c *Client) resolveMedia(ctx context.Context, mediaID, accessToken string) (*mediaMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	var meta mediaMetadata
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&meta).
		Get(fmt.Sprintf("%s/%s", c.baseURL, mediaID))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"media metadata lookup failed", err, "5a08d3c1-6f92-4e47-b7d5-90c28e61f4a3")
	}
	if resp.IsError() || meta.URL == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			fmt.Sprintf("media metadata lookup rejected with status %d", resp.StatusCode()), nil, "d61f7b25-08c4-4a93-8e60-3b15d9a2c7e8")
	}
	return &meta, nil
}

// ===============================================
// Profile
// ===============================================

type profilePictureResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ProfilePictureURL looks up a participant's avatar. Callers treat any
// failure as "no picture".
func (c *Client) ProfilePictureURL(ctx context.Context, accessToken, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	var out profilePictureResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("fields", "profile_picture_url").
		SetResult(&out).
		Get(fmt.Sprintf("%s/%s", c.baseURL, address))
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"profile picture lookup failed", err, "9e47c0b3-21d8-4f65-a93e-b6d04f78c125")
	}
	if resp.IsError() {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			fmt.Sprintf("profile picture lookup rejected with status %d", resp.StatusCode()), nil, "1b86d9f2-c405-47ae-8d13-e72a50b9c6f4")
	}
	return out.Data.URL, nil
}
