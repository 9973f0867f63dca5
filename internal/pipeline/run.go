package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"office-translator/internal/document"
	"office-translator/internal/docx"
	"office-translator/internal/logger"
	"office-translator/internal/pdf"
	"office-translator/internal/pptx"
	"office-translator/internal/types"
	"office-translator/internal/xlsx"
)

// Options 一次翻译运行的全部输入
type Options struct {
	Data     []byte // 原始文档字节，运行期间不会被修改
	Filename string // 用于格式提示和日志
	Language string // 目标语言，见 types.SupportedLanguages

	// Progress 进度回调，可以为 nil。每个批次落定后收到一次事件，
	// 阶段切换时也会收到事件
	Progress func(types.ProgressEvent)

	// Limits 批次大小上限，零值使用默认值
	Limits BatchLimits
	// Concurrency 同时在途的批次数，小于等于 1 表示顺序派发
	Concurrency int
	// PDFFontName PDF 覆盖层字体，空串使用默认字体
	PDFFontName string
}

// Result 一次运行的产物
type Result struct {
	Output []byte       `json:"-"`
	Format types.Format `json:"format"`
	Report *Report      `json:"report"`
}

// Pipeline 对单个文档执行翻译，可被多次 Run 复用
type Pipeline struct {
	translator Translator
}

// New creates a pipeline on top of a batch translator.
func New(translator Translator) *Pipeline {
	return &Pipeline{translator: translator}
}

// Run 执行一次完整的翻译：识别格式、提取单元、分批翻译、写回副本。
// 除配置错误和首批成功前的认证类失败外，Run 总是返回一份可下载的
// 文档，翻译失败的单元保留原文并在报告中列出位置。
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	lang, err := types.ParseLanguage(opts.Language)
	if err != nil {
		return nil, err
	}
	if len(opts.Data) == 0 {
		return nil, types.NewAppError(types.ErrInvalidInput, "输入文档为空", nil)
	}

	format, err := document.Detect(opts.Filename, opts.Data)
	if err != nil {
		return nil, err
	}
	logger.Info("starting translation run",
		logger.String("file", opts.Filename),
		logger.String("format", string(format)),
		logger.String("language", string(lang)))

	extractor, err := extractorFor(format)
	if err != nil {
		return nil, err
	}
	writer, err := writerFor(format, opts.PDFFontName)
	if err != nil {
		return nil, err
	}

	emit(opts.Progress, types.PhaseExtracting, "正在提取文本")
	extraction, err := extractor.Extract(opts.Data)
	if err != nil {
		return nil, err
	}
	logger.Info("extraction complete",
		logger.Int("units", len(extraction.Units)),
		logger.Int("skipped", len(extraction.Skipped)))

	rec := NewReporter(extraction.Units, opts.Progress)
	rec.AddWarnings(extraction.Warnings)

	translatable := skipUntranslatable(rec, extraction.Units)
	batches := makeBatches(translatable, opts.Limits)

	rec.Phase(types.PhaseTranslating, "正在翻译")
	dispatcher := NewDispatcher(p.translator, opts.Concurrency)
	dispatcher.Run(ctx, batches, lang, rec)

	if fatal := dispatcher.FatalError(); fatal != nil {
		if rec.TranslatedCount() == 0 {
			// 一个批次都没成功，直接把根因交给调用方处理
			return nil, fatal
		}
		rec.AddWarning("翻译提前中止：" + fatal.Message)
	}

	rec.Phase(types.PhaseWriting, "正在生成文档")
	output, warnings, err := writer.Write(opts.Data, extraction.Units, rec.Outcomes())
	if err != nil {
		return nil, err
	}
	rec.AddWarnings(warnings)

	report := rec.Finalize(extraction.Skipped)
	logger.Info("translation run finished",
		logger.Int("translated", report.Translated),
		logger.Int("failed", report.Failed),
		logger.Int("skipped", report.Skipped),
		logger.Duration("duration", report.Duration))

	return &Result{Output: output, Format: format, Report: report}, nil
}

// skipUntranslatable 在派发前跳过没有翻译价值的单元：以 = 开头的
// 公式残留和不足两个字符的碎片。返回剩余的待翻译单元
func skipUntranslatable(rec *Reporter, units []document.Unit) []document.Unit {
	var remaining []document.Unit
	for _, u := range units {
		trimmed := strings.TrimSpace(u.SourceText)
		switch {
		case strings.HasPrefix(trimmed, "="):
			rec.Resolve(u.ID, document.Outcome{State: document.StateSkipped, Reason: reasonFormulaLike})
		case utf8.RuneCountInString(trimmed) < 2:
			rec.Resolve(u.ID, document.Outcome{State: document.StateSkipped, Reason: reasonTooShort})
		default:
			remaining = append(remaining, u)
		}
	}
	return remaining
}

func extractorFor(format types.Format) (document.Extractor, error) {
	switch format {
	case types.FormatXLSX:
		return xlsx.NewExtractor(), nil
	case types.FormatDOCX:
		return docx.NewExtractor(), nil
	case types.FormatPPTX:
		return pptx.NewExtractor(), nil
	case types.FormatPDF:
		return pdf.NewExtractor(), nil
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrUnsupportedFormat,
			"不支持的文档格式", string(format), nil)
	}
}

func writerFor(format types.Format, pdfFontName string) (document.Writer, error) {
	switch format {
	case types.FormatXLSX:
		return xlsx.NewWriter(), nil
	case types.FormatDOCX:
		return docx.NewWriter(), nil
	case types.FormatPPTX:
		return pptx.NewWriter(), nil
	case types.FormatPDF:
		return pdf.NewWriter(pdfFontName), nil
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrUnsupportedFormat,
			"不支持的文档格式", string(format), nil)
	}
}

// emit 在没有 Reporter 的阶段直接发事件
func emit(progress func(types.ProgressEvent), phase types.ProcessPhase, message string) {
	if progress == nil {
		return
	}
	progress(types.ProgressEvent{Phase: phase, Message: message})
}
