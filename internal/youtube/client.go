// Package youtube 提供上游数据 API（channels.list）的 HTTP 客户端
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/yourorg/youtube-stats-sampler/internal/config"
	"github.com/yourorg/youtube-stats-sampler/internal/metrics"
	"golang.org/x/time/rate"
)

var (
	// ErrStatus 上游返回非 2xx 状态码
	ErrStatus = errors.New("unexpected upstream status")
	// ErrDecode 响应体无法解码
	ErrDecode = errors.New("decode upstream response")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client 上游 API 客户端
type Client struct {
	baseURL    string
	key        string
	part       string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient 创建新的客户端
func NewClient(cfg *config.UpstreamConfig) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		key:        cfg.Key,
		part:       cfg.Part,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if c.part == "" {
		c.part = "statistics"
	}
	// 可选限速；默认不限速，速率完全由上游配额和每 tick 批次数决定
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// ChannelStatistics 用一次 GET 请求查询一批频道的统计信息
func (c *Client) ChannelStatistics(ctx context.Context, ids []string) (*ChannelListResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(ids), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamLatencyMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		// 错误信息中的 URL 含有凭证，去掉后再返回
		return nil, fmt.Errorf("request upstream: %s", c.redact(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, preview(body, 200))
	}

	var out ChannelListResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrDecode, err, preview(body, 200))
	}
	return &out, nil
}

// requestURL 拼接请求地址：part、key、逗号分隔的 id 列表
func (c *Client) requestURL(ids []string) string {
	q := url.Values{}
	q.Set("part", c.part)
	q.Set("key", c.key)
	q.Set("id", strings.Join(ids, ","))
	return c.baseURL + "?" + q.Encode()
}

func (c *Client) redact(s string) string {
	if c.key == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(c.key), "REDACTED")
}

func preview(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
