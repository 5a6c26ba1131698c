package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client talks to a plot agent.
type Client struct {
	Logger     *zap.SugaredLogger
	HTTPClient *http.Client

	baseURL                  string
	wsURL                    string
	customizeRetryableClient func(*retryablehttp.Client)
}

type ClientOption func(c *Client)

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.Logger = l.Named("plotagent_client").Sugar()
	}
}

func WithCustomizeRetryableClient(f func(r *retryablehttp.Client)) ClientOption {
	return func(c *Client) {
		c.customizeRetryableClient = f
	}
}

type logAdapter struct {
	*zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) { a.Debugf(msg, args...) }

func NewClient(log *zap.SugaredLogger, host string, port int, opts ...ClientOption) *Client {
	c := &Client{
		Logger:  log.Named("plotagent_client"),
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		wsURL:   fmt.Sprintf("ws://%s:%d", host, port),
	}
	for _, opt := range opts {
		opt(c)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 10
	retryClient.Logger = &logAdapter{SugaredLogger: c.Logger}
	if c.customizeRetryableClient != nil {
		c.customizeRetryableClient(retryClient)
	}
	c.HTTPClient = retryClient.StandardClient()

	return c
}

// Healthcheck verifies the agent is up.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending healthcheck: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Draw renders a draw request on the agent and returns the outcome. A
// rejected command is reported in the response, not as an error.
func (c *Client) Draw(ctx context.Context, drawReq *DrawRequest) (*DrawResponse, error) {
	b, err := json.Marshal(drawReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling draw request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plot", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending draw request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("draw returned status %d: %s", resp.StatusCode, string(body))
	}

	var drawResp DrawResponse
	if err := json.NewDecoder(resp.Body).Decode(&drawResp); err != nil {
		return nil, fmt.Errorf("decoding draw response: %w", err)
	}
	return &drawResp, nil
}

// DrawStream renders a draw request over the streaming endpoint, invoking
// onWarning for each warning as the server reports it.
func (c *Client) DrawStream(ctx context.Context, drawReq *DrawRequest, onWarning func(string)) (*DrawResponse, error) {
	c.Logger.Debugw("dialing WebSocket for streaming draw", "URL", c.wsURL+"/plot/ws")
	// The retrying client is not used here: a WebSocket upgrade must not
	// be replayed by a retry transport.
	wsConn, _, err := websocket.Dial(ctx, c.wsURL+"/plot/ws", &websocket.DialOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		return nil, fmt.Errorf("establishing WebSocket conn for draw: %w", err)
	}
	wsConn.SetReadLimit(wsReadLimit)
	defer wsConn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, wsConn, drawReq); err != nil {
		return nil, fmt.Errorf("sending draw request: %w", err)
	}

	resp := &DrawResponse{}
	for {
		var msg drawStreamMessage
		if err := wsjson.Read(ctx, wsConn, &msg); err != nil {
			return nil, fmt.Errorf("reading draw stream: %w", err)
		}
		if msg.Warning != "" {
			resp.Warnings = append(resp.Warnings, msg.Warning)
			if onWarning != nil {
				onWarning(msg.Warning)
			}
		}
		if msg.Done {
			resp.Rejected = msg.Rejected
			resp.Diagnostics = msg.Diagnostics
			resp.Output = msg.Output
			return resp, nil
		}
	}
}
