// Package translator provides the LLM client used to translate batches of
// text segments. The client speaks a JSON array protocol: the model receives
// the segments as a JSON array and must return a JSON array of the same
// length, which keeps segment boundaries intact across the round trip.
package translator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/eino-ext/components/model/openai"

	"office-translator/internal/logger"
	"office-translator/internal/types"
)

const (
	// DefaultModel is the default model when none is configured
	DefaultModel = "gpt-4o-mini"
	// DefaultTimeout is the default timeout for a single API call
	DefaultTimeout = 120 * time.Second
	// DefaultMaxRetries is the default maximum number of attempts per batch
	DefaultMaxRetries = 3
	// BaseRetryDelay is the base delay for exponential backoff
	BaseRetryDelay = 2 * time.Second
	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay = 30 * time.Second
	// QuotaExhaustDelay 配额耗尽时在常规退避之外追加的等待
	QuotaExhaustDelay = 10 * time.Second
	// DefaultRequestInterval 两次 API 调用之间的最小间隔
	DefaultRequestInterval = 500 * time.Millisecond
	// translationTemperature keeps the model output close to the source
	translationTemperature = 0.1
)

// Config holds the options for creating a Client.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxRetries      int
	RequestInterval time.Duration
	FileDescription string // 可选的文档内容说明，作为翻译上下文
}

// Client 批量翻译客户端，持有聊天模型、翻译缓存和请求节流状态
type Client struct {
	chat            model.BaseChatModel
	modelName       string
	maxRetries      int
	requestInterval time.Duration
	retryDelay      time.Duration
	quotaDelay      time.Duration
	fileDescription string
	cache           *translationCache

	paceMu   sync.Mutex
	lastCall time.Time
}

// NewClient creates a Client backed by an OpenAI compatible chat model.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "未配置 API Key", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	temperature := float32(translationTemperature)
	chatCfg := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Timeout:     timeout,
		Temperature: &temperature,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}

	chat, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		logger.Error("failed to create chat model", err, logger.String("model", cfg.Model))
		return nil, types.NewAppError(types.ErrConfig, "无法创建翻译模型客户端", err)
	}

	logger.Info("translation client initialized",
		logger.String("model", cfg.Model),
		logger.String("baseURL", cfg.BaseURL))
	return NewClientWithChatModel(chat, cfg), nil
}

// NewClientWithChatModel creates a Client on top of an existing chat model.
// Tests inject a fake model through this constructor.
func NewClientWithChatModel(chat model.BaseChatModel, cfg Config) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	interval := cfg.RequestInterval
	if interval < 0 {
		interval = DefaultRequestInterval
	}
	return &Client{
		chat:            chat,
		modelName:       cfg.Model,
		maxRetries:      maxRetries,
		requestInterval: interval,
		retryDelay:      BaseRetryDelay,
		quotaDelay:      QuotaExhaustDelay,
		fileDescription: cfg.FileDescription,
		cache:           newTranslationCache(),
	}
}

// TranslateBatch 翻译一批文本段。要么整批成功返回与输入等长的译文列表，
// 要么整批失败返回错误，不存在部分成功
func (c *Client) TranslateBatch(ctx context.Context, texts []string, lang types.Language) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = PreprocessText(t)
	}

	results := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range prepared {
		if tr, ok := c.cache.get(t, lang); ok {
			results[i] = tr
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
		}
	}
	if len(missTexts) == 0 {
		logger.Debug("batch fully served from cache", logger.Int("texts", len(texts)))
		return results, nil
	}

	translated, err := c.callWithSplit(ctx, missTexts, lang)
	if err != nil {
		if errors.Is(err, errCountMismatch) {
			return nil, types.NewAppErrorWithDetails(types.ErrTranslation,
				"翻译结果数量与输入不一致", err.Error(), err)
		}
		return nil, err
	}

	for i, tr := range translated {
		c.cache.set(missTexts[i], lang, tr)
		results[missIdx[i]] = tr
	}
	return results, nil
}

// CacheSize 返回缓存的译文条数
func (c *Client) CacheSize() int {
	return c.cache.size()
}

// TestConnection 用一次最小的对话调用验证 API 配置是否可用
func (c *Client) TestConnection(ctx context.Context) error {
	resp, err := c.chat.Generate(ctx, []*schema.Message{
		schema.UserMessage("Reply with OK"),
	})
	if err != nil {
		return classifyProviderError(err)
	}
	if resp == nil || resp.Content == "" {
		return types.NewAppError(types.ErrAPICall, "API 返回了空响应", nil)
	}
	return nil
}

// callWithSplit calls the API and recovers from count mismatches by splitting
// the batch in half and recursing, bottoming out at single texts.
func (c *Client) callWithSplit(ctx context.Context, texts []string, lang types.Language) ([]string, error) {
	translated, err := c.callWithRetry(ctx, texts, lang)
	if err == nil {
		return translated, nil
	}
	if !errors.Is(err, errCountMismatch) || len(texts) <= 1 {
		return nil, err
	}

	logger.Warn("translation count mismatch, splitting batch",
		logger.Int("texts", len(texts)), logger.Err(err))
	mid := len(texts) / 2
	first, err := c.callWithSplit(ctx, texts[:mid], lang)
	if err != nil {
		return nil, err
	}
	second, err := c.callWithSplit(ctx, texts[mid:], lang)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

// callWithRetry runs the attempt loop for one API call. Count mismatches are
// returned immediately for the caller to split, non-retryable errors fail
// fast, everything else backs off exponentially between attempts.
func (c *Client) callWithRetry(ctx context.Context, texts []string, lang types.Language) ([]string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, types.NewAppError(types.ErrCancelled, "翻译已取消", err)
		}

		translated, err := c.callOnce(ctx, texts, lang)
		if err == nil {
			return translated, nil
		}
		if errors.Is(err, errCountMismatch) {
			return nil, err
		}

		lastErr = err
		logger.Warn("translation attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("texts", len(texts)),
			logger.Err(err))

		if !isRetryableError(err) {
			logger.Error("non-retryable translation error", err)
			return nil, err
		}

		if attempt < c.maxRetries {
			delay := calculateBackoffDelay(attempt, c.retryDelay)
			if isQuotaExhausted(err) {
				delay += c.quotaDelay
			}
			logger.Debug("retrying after delay", logger.Duration("delay", delay))
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	logger.Error("translation failed after all retries", lastErr,
		logger.Int("maxRetries", c.maxRetries))
	return nil, types.NewAppErrorWithDetails(types.ErrTranslation,
		"翻译在多次重试后仍然失败",
		fmt.Sprintf("已尝试 %d 次", c.maxRetries), lastErr)
}

// callOnce performs a single paced API call.
func (c *Client) callOnce(ctx context.Context, texts []string, lang types.Language) ([]string, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	userPrompt, err := c.buildUserPrompt(texts, lang)
	if err != nil {
		return nil, err
	}

	logger.Debug("calling translation API",
		logger.String("model", c.modelName),
		logger.String("language", string(lang)),
		logger.Int("texts", len(texts)))

	resp, err := c.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return parseTranslations(resp.Content, len(texts))
}

// waitTurn enforces the minimum interval between API calls. Concurrent
// callers reserve slots in order and sleep outside the lock.
func (c *Client) waitTurn(ctx context.Context) error {
	if c.requestInterval <= 0 {
		return nil
	}

	c.paceMu.Lock()
	now := time.Now()
	var wait time.Duration
	if next := c.lastCall.Add(c.requestInterval); next.After(now) {
		wait = next.Sub(now)
	}
	c.lastCall = now.Add(wait)
	c.paceMu.Unlock()

	if wait > 0 {
		return sleepContext(ctx, wait)
	}
	return nil
}

// calculateBackoffDelay doubles the delay with each attempt: 2s, 4s, 8s,
// capped at MaxRetryDelay.
func calculateBackoffDelay(attempt int, base time.Duration) time.Duration {
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return types.NewAppError(types.ErrCancelled, "翻译已取消", ctx.Err())
	case <-timer.C:
		return nil
	}
}
