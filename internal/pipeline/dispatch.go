package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/types"
)

// 单元失败或跳过时记录的原因，报告按原因分类统计
const (
	reasonExhaustedRetries = "exhausted-retries"
	reasonCancelled        = "cancelled"
	reasonProviderError    = "provider-error"
	reasonEmptyTranslation = "empty-translation"
	reasonFormulaLike      = "formula-like"
	reasonTooShort         = "too-short"
)

// Translator 翻译一批文本，返回与输入等长且顺序一致的译文。
// 实现负责重试，返回错误时整个批次视为失败。
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, lang types.Language) ([]string, error)
}

// Dispatcher 将批次交给翻译客户端执行。默认逐批顺序派发，
// concurrency 大于 1 时用信号量限制同时在途的批次数。
type Dispatcher struct {
	translator  Translator
	concurrency int

	mu    sync.Mutex
	fatal *types.AppError
}

// NewDispatcher creates a dispatcher. concurrency <= 1 means sequential.
func NewDispatcher(translator Translator, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{translator: translator, concurrency: concurrency}
}

// Run 派发全部批次并等待在途批次完成后返回。
// 取消或遇到不可恢复错误后，已派发的批次允许跑完，
// 未派发的批次全部落定为失败，不再发起新调用。
func (d *Dispatcher) Run(ctx context.Context, batches []Batch, lang types.Language, rec *Reporter) {
	if d.concurrency <= 1 {
		for _, b := range batches {
			if ctx.Err() != nil || d.FatalError() != nil {
				rec.FailBatch(b.Units, reasonCancelled)
				continue
			}
			d.runBatch(ctx, b, lang, rec)
		}
		return
	}

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	for _, b := range batches {
		if d.FatalError() != nil {
			rec.FailBatch(b.Units, reasonCancelled)
			continue
		}
		select {
		case <-ctx.Done():
			rec.FailBatch(b.Units, reasonCancelled)
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(b Batch) {
			defer wg.Done()
			defer func() { <-sem }()
			d.runBatch(ctx, b, lang, rec)
		}(b)
	}
	wg.Wait()
}

// FatalError 返回导致提前停止的不可恢复错误，没有则为 nil
func (d *Dispatcher) FatalError() *types.AppError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}

func (d *Dispatcher) setFatal(err *types.AppError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fatal == nil {
		d.fatal = err
	}
}

func (d *Dispatcher) runBatch(ctx context.Context, b Batch, lang types.Language, rec *Reporter) {
	texts := make([]string, len(b.Units))
	for i, u := range b.Units {
		texts[i] = u.SourceText
	}

	logger.Debug("dispatching translation batch",
		logger.Int("batch", b.Index),
		logger.Int("units", len(b.Units)))

	translated, err := d.translator.TranslateBatch(ctx, texts, lang)
	if err != nil {
		reason := d.classifyFailure(err)
		logger.Warn("translation batch failed",
			logger.Int("batch", b.Index),
			logger.Int("units", len(b.Units)),
			logger.String("reason", reason),
			logger.Err(err))
		rec.FailBatch(b.Units, reason)
		return
	}
	if len(translated) != len(b.Units) {
		// TranslateBatch 的契约保证等长，这里只是兜底
		logger.Error("translator returned wrong result count", nil,
			logger.Int("batch", b.Index),
			logger.Int("want", len(b.Units)),
			logger.Int("got", len(translated)))
		rec.FailBatch(b.Units, reasonExhaustedRetries)
		return
	}

	outcomes := make([]document.Outcome, len(b.Units))
	for i, tr := range translated {
		if strings.TrimSpace(tr) == "" {
			// 空译文写回会清掉原文，按失败处理保留原文
			outcomes[i] = document.Outcome{State: document.StateFailed, Reason: reasonEmptyTranslation}
			continue
		}
		outcomes[i] = document.Outcome{State: document.StateTranslated, Text: tr}
	}
	rec.ResolveBatch(b.Units, outcomes)
}

// classifyFailure 把批次错误映射为单元失败原因。认证失败这类
// 不可恢复的错误同时记为 fatal，让后续批次停止派发
func (d *Dispatcher) classifyFailure(err error) string {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return reasonExhaustedRetries
	}
	switch appErr.Code {
	case types.ErrCancelled:
		return reasonCancelled
	case types.ErrTranslation, types.ErrNetwork, types.ErrAPIRateLimit:
		return reasonExhaustedRetries
	default:
		d.setFatal(appErr)
		return reasonProviderError
	}
}
