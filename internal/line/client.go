package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spigell/es-reviewer/internal/logger"
	"github.com/spigell/es-reviewer/internal/paginate"
)

const (
	apiURL      = "https://api.line.me"
	replyPath   = "/v2/bot/message/reply"
	contentType = "application/json"
	// MaxReplyMessages is the number of messages one reply call may carry.
	MaxReplyMessages = 5
	// MaxTextLength is the LINE limit for a text message, in UTF-16 code units.
	MaxTextLength = 5000
)

var ErrNoMessages = errors.New("reply has no messages")

// Client sends reply messages.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func NewClient(log *zap.Logger, token, baseURL string) *Client {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = apiURL
	}
	return &Client{
		token:  token,
		APIURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.OrNop(log),
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Reply sends up to MaxReplyMessages texts with one reply token. Extra texts
// are dropped with a warning since a token can be used only once.
func (c *Client) Reply(ctx context.Context, replyToken string, texts ...string) error {
	if len(texts) == 0 {
		return ErrNoMessages
	}
	if len(texts) > MaxReplyMessages {
		c.logger.Warn("too many reply messages, extra ones are dropped",
			zap.Int("messages", len(texts)),
			zap.Int("limit", MaxReplyMessages),
		)
		texts = texts[:MaxReplyMessages]
	}

	payload := replyRequest{ReplyToken: replyToken}
	for _, t := range texts {
		payload.Messages = append(payload.Messages, textMessage{Type: MessageText, Text: paginate.Truncate(t, MaxTextLength)})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+replyPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("make request", zap.String("url", req.URL.String()), zap.Int("messages", len(payload.Messages)))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if msg := gjson.GetBytes(data, "message").String(); msg != "" {
			return fmt.Errorf("line reply: bad status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("line reply: bad status: %s", resp.Status)
	}

	return nil
}
