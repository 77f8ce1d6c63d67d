package hint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
)

// ErrUpstreamUnavailable 表示提示服务不可达或返回了非预期的响应。
// 对调用方来说这是一个可重试的暂时性错误。
var ErrUpstreamUnavailable = errors.New("提示服务暂时不可用")

// Request 是一次提示请求。System是注入的系统约束，Question是玩家的原话。
type Request struct {
	System   string
	Question string
}

// Client 是LLM提示服务的抽象。服务被视为黑盒：
// 没有延迟保证，失败由调用方决定是否重试。
type Client interface {
	Ask(ctx context.Context, req Request) (string, error)
}

// httpClient 是基于JSON-over-HTTP的默认实现
type httpClient struct {
	baseURL string
	apiKey  string
	model   string
	hc      *http.Client
}

// NewClient 根据配置构造一个提示服务客户端。
func NewClient(cfg config.HintConfig) Client {
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		hc:      &http.Client{Timeout: cfg.Timeout},
	}
}

type askRequestBody struct {
	Model    string `json:"model"`
	System   string `json:"system"`
	Question string `json:"question"`
}

type askResponseBody struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// Ask 向提示服务发起一次同步问答。
func (c *httpClient) Ask(ctx context.Context, req Request) (string, error) {
	bodyBytes, err := json.Marshal(askRequestBody{
		Model:    c.model,
		System:   req.System,
		Question: req.Question,
	})
	if err != nil {
		return "", fmt.Errorf("无法序列化提示请求: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("无法构造提示请求: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: 读取响应失败: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: 上游返回 %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed askResponseBody
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("%w: 响应不是合法的JSON: %v", ErrUpstreamUnavailable, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUpstreamUnavailable, parsed.Error)
	}

	return parsed.Answer, nil
}
