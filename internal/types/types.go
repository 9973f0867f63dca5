// Package types defines core data types and enums for the office translator application.
package types

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Format 文档格式枚举
type Format string

const (
	FormatUnknown Format = ""
	FormatXLSX    Format = "xlsx"
	FormatDOCX    Format = "docx"
	FormatPPTX    Format = "pptx"
	FormatPDF     Format = "pdf"
)

// SupportedFormats 返回所有支持的文档格式
func SupportedFormats() []Format {
	return []Format{FormatXLSX, FormatDOCX, FormatPPTX, FormatPDF}
}

// Extensions 返回该格式对应的文件扩展名（含点，小写）
func (f Format) Extensions() []string {
	switch f {
	case FormatXLSX:
		return []string{".xlsx", ".xls"}
	case FormatDOCX:
		return []string{".docx"}
	case FormatPPTX:
		return []string{".pptx"}
	case FormatPDF:
		return []string{".pdf"}
	default:
		return nil
	}
}

// Language 目标语言枚举，取值为英文显示名
type Language string

const (
	LangVietnamese Language = "Vietnamese"
	LangEnglish    Language = "English"
	LangFrench     Language = "French"
	LangGerman     Language = "German"
	LangSpanish    Language = "Spanish"
	LangChinese    Language = "Chinese"
	LangJapanese   Language = "Japanese"
)

// SupportedLanguages 返回所有支持的目标语言
func SupportedLanguages() []Language {
	return []Language{
		LangVietnamese,
		LangEnglish,
		LangFrench,
		LangGerman,
		LangSpanish,
		LangChinese,
		LangJapanese,
	}
}

// Tag returns the BCP-47 tag for the language
func (l Language) Tag() language.Tag {
	switch l {
	case LangVietnamese:
		return language.Vietnamese
	case LangEnglish:
		return language.English
	case LangFrench:
		return language.French
	case LangGerman:
		return language.German
	case LangSpanish:
		return language.Spanish
	case LangChinese:
		return language.Chinese
	case LangJapanese:
		return language.Japanese
	default:
		return language.Und
	}
}

// String implements fmt.Stringer
func (l Language) String() string {
	return string(l)
}

var languageMatcher = language.NewMatcher([]language.Tag{
	language.Vietnamese,
	language.English,
	language.French,
	language.German,
	language.Spanish,
	language.Chinese,
	language.Japanese,
})

// ParseLanguage 解析目标语言，接受英文显示名（不区分大小写）或 BCP-47 代码
// 不在支持列表中的语言立即报错，不做任何降级
func ParseLanguage(s string) (Language, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", NewAppError(ErrUnsupportedLanguage, "未指定目标语言", nil)
	}

	for _, l := range SupportedLanguages() {
		if strings.EqualFold(trimmed, string(l)) {
			return l, nil
		}
	}

	// Try BCP-47 style input like "vi" or "zh-CN"
	if tag, err := language.Parse(trimmed); err == nil {
		if _, idx, conf := languageMatcher.Match(tag); conf >= language.High {
			return SupportedLanguages()[idx], nil
		}
	}

	return "", NewAppErrorWithDetails(ErrUnsupportedLanguage,
		"不支持的目标语言", fmt.Sprintf("%q，支持的语言：%s", s, joinLanguages()), nil)
}

func joinLanguages() string {
	langs := SupportedLanguages()
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// Config 应用配置
type Config struct {
	OpenAIAPIKey      string `json:"openai_api_key"`
	OpenAIBaseURL     string `json:"openai_base_url"`    // OpenAI 兼容 API 的 Base URL
	OpenAIModel       string `json:"openai_model"`
	MaxBatchChars     int    `json:"max_batch_chars"`    // 单个批次的最大字符数
	MaxBatchUnits     int    `json:"max_batch_units"`    // 单个批次的最大单元数
	Concurrency       int    `json:"concurrency"`        // 并发批次数，1 表示顺序派发
	MaxRetries        int    `json:"max_retries"`        // 单个批次的最大重试次数
	RequestIntervalMs int    `json:"request_interval_ms"` // 两次 API 调用之间的最小间隔（毫秒）
	WorkDirectory     string `json:"work_directory"`
	ResultsDirectory  string `json:"results_directory"`  // 翻译结果与历史记录目录
	FileDescription   string `json:"file_description"`   // 可选的文件内容说明，作为翻译上下文
	PDFFontName       string `json:"pdf_font_name"`      // PDF 覆盖层字体，默认 Helvetica
	LastInput         string `json:"last_input"`         // 最后一次选择的文件路径
	LastLanguage      string `json:"last_language"`      // 最后一次选择的目标语言
}

// ProcessPhase 处理阶段枚举
type ProcessPhase string

const (
	PhaseIdle        ProcessPhase = "idle"
	PhaseDetecting   ProcessPhase = "detecting"
	PhaseExtracting  ProcessPhase = "extracting"
	PhaseTranslating ProcessPhase = "translating"
	PhaseWriting     ProcessPhase = "writing"
	PhaseComplete    ProcessPhase = "complete"
	PhaseError       ProcessPhase = "error"
)

// Status 处理状态
type Status struct {
	Phase    ProcessPhase `json:"phase"`
	Progress int          `json:"progress"` // 0-100
	Message  string       `json:"message"`
	Error    string       `json:"error,omitempty"`
}

// ProgressEvent 翻译进度事件，每个批次落定后发出一次
type ProgressEvent struct {
	Phase    ProcessPhase `json:"phase"`
	Resolved int          `json:"resolved"` // 已落定的单元数（翻译成功 + 失败 + 跳过）
	Total    int          `json:"total"`    // 本次运行的单元总数
	Failed   int          `json:"failed"`   // 已失败的单元数
	Message  string       `json:"message"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrNetwork             ErrorCode = "NETWORK_ERROR"
	ErrExtract             ErrorCode = "EXTRACT_ERROR"
	ErrWrite               ErrorCode = "WRITE_ERROR"
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrUnsupportedFormat   ErrorCode = "UNSUPPORTED_FORMAT"
	ErrUnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	ErrAPICall             ErrorCode = "API_CALL_ERROR"
	ErrAPIRateLimit        ErrorCode = "API_RATE_LIMIT"
	ErrConfig              ErrorCode = "CONFIG_ERROR"
	ErrCancelled           ErrorCode = "CANCELLED"
	ErrInternal            ErrorCode = "INTERNAL_ERROR"
	ErrTranslation         ErrorCode = "TRANSLATION_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
