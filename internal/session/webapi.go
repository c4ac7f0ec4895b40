package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"channel-history/internal/domain"
	"channel-history/internal/observability"

	"golang.org/x/time/rate"
)

const maxReplySize = 16 << 20

// WebAPI posts commands to the Slack Web API
type WebAPI struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type apiStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewWebAPI creates a Web API client. commandsPerSecond and burst bound the
// rate at which commands leave the process.
func NewWebAPI(baseURL, token string, timeout time.Duration, commandsPerSecond float64, burst int) *WebAPI {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(commandsPerSecond)
	if commandsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &WebAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Post sends a command and returns the raw reply body. Replies with
// "ok": false are reported as request failures.
func (a *WebAPI) Post(ctx context.Context, command string, params map[string]string) (json.RawMessage, error) {
	start := time.Now()
	body, err := a.post(ctx, command, params)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.CommandDuration.WithLabelValues(command, status).Observe(time.Since(start).Seconds())
	observability.CommandsTotal.WithLabelValues(command, status).Inc()

	return body, err
}

func (a *WebAPI) post(ctx context.Context, command string, params map[string]string) (json.RawMessage, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrRequestFailed, err)
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+command, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRequestFailed, command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s: rate limited, retry after %ss",
			domain.ErrRequestFailed, command, resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status code: %d", domain.ErrRequestFailed, command, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read reply: %v", domain.ErrRequestFailed, command, err)
	}

	var st apiStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedReply, command, err)
	}
	if !st.OK {
		slog.Warn("slack command rejected",
			slog.String("command", command),
			slog.String("error", st.Error))
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrRequestFailed, command, st.Error)
	}

	return body, nil
}
