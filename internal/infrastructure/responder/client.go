// Package responder is the HTTP client for the external reply engine. The
// engine is a black box: given a message and recent history it produces
// reply text. Its failures never surface past the dispatcher's fallback.
package responder

import (
	"context"
	"fmt"

	"github.com/imroc/req/v3"
	"github.com/rs/zerolog"

	"relaydesk/services/channel-api/internal/config"
	"relaydesk/services/channel-api/internal/domain/webhook"
	"relaydesk/services/channel-api/internal/infrastructure/logger"
	"relaydesk/services/channel-api/internal/utils/platformerrors"
)

// Client calls the reply engine over HTTP.
type Client struct {
	baseURL string
	client  *req.Client
	log     zerolog.Logger
}

var _ webhook.ReplyEngine = (*Client)(nil)

// NewClient creates a new reply engine client.
func NewClient(cfg *config.Config) *Client {
	client := req.C().
		SetTimeout(cfg.ReplyEngineTimeout).
		SetCommonContentType("application/json")

	return &Client{
		baseURL: cfg.ReplyEngineURL,
		client:  client,
		log:     logger.GetLogger().With().Str("component", "reply-engine-client").Logger(),
	}
}

type generateResponse struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	LatencyMs  int64  `json:"latency_ms"`
}

// GenerateReply implements webhook.ReplyEngine.
func (c *Client) GenerateReply(ctx context.Context, request *webhook.ReplyRequest) (*webhook.Reply, error) {
	var out generateResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		SetSuccessResult(&out).
		Post(c.baseURL + "/v1/replies")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"reply engine call failed", err, "2f60d8a4-93c1-4e57-b8f2-07a3c6d91e45")
	}
	if resp.IsErrorState() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			fmt.Sprintf("reply engine rejected with status %d", resp.StatusCode), nil, "83b7e1c0-5d49-4a26-9f08-d45c17b2a6e9")
	}
	if out.Content == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeUpstream,
			"reply engine returned empty content", nil, "a4d95f37-60b2-48ec-81d6-3c28f0e9b751")
	}

	c.log.Debug().
		Int("tokens_used", out.TokensUsed).
		Int64("latency_ms", out.LatencyMs).
		Msg("reply engine responded")

	return &webhook.Reply{
		Content:    out.Content,
		TokensUsed: out.TokensUsed,
		LatencyMs:  out.LatencyMs,
	}, nil
}
