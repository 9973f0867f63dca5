package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"office-translator/internal/config"
	"office-translator/internal/history"
	"office-translator/internal/logger"
	"office-translator/internal/pipeline"
	"office-translator/internal/translator"
	"office-translator/internal/types"
)

// Event names for frontend communication
const (
	EventTranslationProgress = "translation-progress"
	EventTranslationComplete = "translation-complete"
	EventTranslationError    = "translation-error"
)

// StatusCallback is a function type for status update callbacks.
// It is called whenever the processing status changes.
type StatusCallback func(status *types.Status)

// TranslationResult 一次翻译的结果，返回给前端展示
type TranslationResult struct {
	OutputPath string           `json:"output_path"`
	FileName   string           `json:"file_name"`
	Format     types.Format     `json:"format"`
	Language   string           `json:"language"`
	Report     *pipeline.Report `json:"report"`
	RecordID   string           `json:"record_id,omitempty"`
}

// App is the main Wails application controller. It wires the config
// manager, the translation pipeline and the run history together and
// manages the application lifecycle.
type App struct {
	ctx     context.Context
	config  *config.ConfigManager
	history *history.Manager

	// Status tracking
	status         *types.Status
	statusMu       sync.RWMutex
	statusCallback StatusCallback

	// Cancellation support
	cancelMu   sync.Mutex
	cancelFunc context.CancelFunc

	// Last translation result for the frontend
	lastResult *TranslationResult

	// isWailsRuntime indicates if the app is running in a Wails environment
	// This is used to safely skip EventsEmit calls during tests
	isWailsRuntime bool
}

// safeEmit safely emits an event to the frontend.
// It only emits events when running in a Wails environment.
func (a *App) safeEmit(eventName string, data ...interface{}) {
	if !a.isWailsRuntime {
		logger.Debug("event emit skipped (not in Wails runtime)",
			logger.String("event", eventName))
		return
	}
	runtime.EventsEmit(a.ctx, eventName, data...)
}

// SetWailsRuntime sets the Wails runtime flag.
// This should be called from main.go when the app is started in Wails mode.
func (a *App) SetWailsRuntime(isWails bool) {
	a.isWailsRuntime = isWails
}

// NewApp creates a new App application struct.
func NewApp() *App {
	return &App{
		status: &types.Status{
			Phase:    types.PhaseIdle,
			Progress: 0,
			Message:  "",
		},
	}
}

// NewAppWithConfig creates a new App with a custom config path.
// This is useful for testing or when a specific configuration location is needed.
func NewAppWithConfig(configPath string) (*App, error) {
	app := NewApp()

	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	app.config = configMgr

	return app, nil
}

// startup is called when the app starts. The context is saved so we can
// call the runtime methods. It loads the configuration and prepares the
// run history.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	logger.Info("application starting up")

	if a.config == nil {
		configMgr, err := config.NewConfigManager("")
		if err != nil {
			logger.Error("failed to create config manager", err)
			return
		}
		a.config = configMgr
	}

	if err := a.config.Load(); err != nil {
		// Continue with defaults if config load fails
		logger.Warn("failed to load config, using defaults", logger.Err(err))
	}

	historyMgr, err := history.NewManager(a.config.GetResultsDirectory())
	if err != nil {
		logger.Warn("failed to initialize history manager", logger.Err(err))
	} else {
		a.history = historyMgr
		logger.Debug("history manager initialized",
			logger.String("baseDir", historyMgr.BaseDir()))
	}

	logger.Info("application startup complete")
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	logger.Info("application shutting down")

	a.cancelMu.Lock()
	cancel := a.cancelFunc
	a.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	logger.Info("application shutdown complete")
}

// GetConfig returns the config manager (for internal use and tests).
func (a *App) GetConfig() *config.ConfigManager {
	return a.config
}

// SetStatusCallback sets the callback invoked on every status change.
func (a *App) SetStatusCallback(callback StatusCallback) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.statusCallback = callback
}

// GetStatus returns the current processing status.
// This method is thread-safe.
func (a *App) GetStatus() *types.Status {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()

	// Return a copy to prevent external modification
	return &types.Status{
		Phase:    a.status.Phase,
		Progress: a.status.Progress,
		Message:  a.status.Message,
		Error:    a.status.Error,
	}
}

// IsProcessing returns true if a translation task is currently in progress.
// This method is thread-safe.
func (a *App) IsProcessing() bool {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()

	switch a.status.Phase {
	case types.PhaseIdle, types.PhaseComplete, types.PhaseError:
		return false
	default:
		return true
	}
}

// updateStatus updates the current status and notifies the callback.
func (a *App) updateStatus(phase types.ProcessPhase, progress int, message string) {
	a.statusMu.Lock()
	a.status.Phase = phase
	a.status.Progress = progress
	a.status.Message = message
	a.status.Error = ""

	callback := a.statusCallback
	statusCopy := &types.Status{
		Phase:    a.status.Phase,
		Progress: a.status.Progress,
		Message:  a.status.Message,
		Error:    a.status.Error,
	}
	a.statusMu.Unlock()

	// Call callback outside of lock to prevent deadlocks
	if callback != nil {
		callback(statusCopy)
	}
}

// updateStatusError updates the status with an error.
func (a *App) updateStatusError(errorMsg string) {
	a.statusMu.Lock()
	a.status.Phase = types.PhaseError
	a.status.Error = errorMsg

	callback := a.statusCallback
	statusCopy := &types.Status{
		Phase:    a.status.Phase,
		Progress: a.status.Progress,
		Message:  a.status.Message,
		Error:    a.status.Error,
	}
	a.statusMu.Unlock()

	if callback != nil {
		callback(statusCopy)
	}
}

// Translate 翻译一个文档并把结果写入结果目录。
// 过程中通过 translation-progress 事件上报进度，结束时发出
// translation-complete 或 translation-error 事件
func (a *App) Translate(path, language string) (*TranslationResult, error) {
	logger.Info("translation requested",
		logger.String("path", path),
		logger.String("language", language))

	if a.IsProcessing() {
		return nil, types.NewAppError(types.ErrInvalidInput, "已有翻译任务正在进行", nil)
	}
	if a.config == nil {
		return nil, types.NewAppError(types.ErrConfig, "配置未初始化", nil)
	}
	if err := a.config.Validate(); err != nil {
		a.updateStatusError(errorMessage(err))
		a.safeEmit(EventTranslationError, errorMessage(err))
		return nil, err
	}

	lang, err := types.ParseLanguage(language)
	if err != nil {
		a.updateStatusError(errorMessage(err))
		a.safeEmit(EventTranslationError, errorMessage(err))
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		appErr := types.NewAppErrorWithDetails(types.ErrFileNotFound, "无法读取文件", path, err)
		a.updateStatusError(errorMessage(appErr))
		a.safeEmit(EventTranslationError, errorMessage(appErr))
		return nil, appErr
	}

	client, err := translator.NewClient(context.Background(), translator.Config{
		APIKey:          a.config.GetAPIKey(),
		BaseURL:         a.config.GetBaseURL(),
		Model:           a.config.GetModel(),
		MaxRetries:      a.config.GetMaxRetries(),
		RequestInterval: a.config.GetRequestInterval(),
		FileDescription: a.config.GetFileDescription(),
	})
	if err != nil {
		a.updateStatusError(errorMessage(err))
		a.safeEmit(EventTranslationError, errorMessage(err))
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancelMu.Lock()
	a.cancelFunc = cancel
	a.cancelMu.Unlock()
	defer func() {
		cancel()
		a.cancelMu.Lock()
		a.cancelFunc = nil
		a.cancelMu.Unlock()
	}()

	startedAt := time.Now()
	fileName := filepath.Base(path)
	a.updateStatus(types.PhaseDetecting, 2, "正在识别文档格式")

	result, err := pipeline.New(client).Run(runCtx, pipeline.Options{
		Data:     data,
		Filename: fileName,
		Language: language,
		Progress: a.onPipelineProgress,
		Limits: pipeline.BatchLimits{
			MaxChars: a.config.GetMaxBatchChars(),
			MaxUnits: a.config.GetMaxBatchUnits(),
		},
		Concurrency: a.config.GetConcurrency(),
		PDFFontName: a.config.GetPDFFontName(),
	})
	if err != nil {
		logger.Error("translation run failed", err, logger.String("file", fileName))
		a.recordRun(&history.RunRecord{
			FileName:     fileName,
			Language:     string(lang),
			Status:       history.StatusFailed,
			ErrorMessage: errorMessage(err),
			StartedAt:    startedAt,
			FinishedAt:   time.Now(),
		})
		a.updateStatusError(errorMessage(err))
		a.safeEmit(EventTranslationError, errorMessage(err))
		return nil, err
	}

	outPath, err := a.saveOutput(lang, fileName, result.Output)
	if err != nil {
		a.updateStatusError(errorMessage(err))
		a.safeEmit(EventTranslationError, errorMessage(err))
		return nil, err
	}

	record := &history.RunRecord{
		FileName:   fileName,
		Format:     result.Format,
		Language:   string(lang),
		Status:     statusForReport(result.Report),
		Translated: result.Report.Translated,
		Failed:     result.Report.Failed,
		Skipped:    result.Report.Skipped,
		OutputPath: outPath,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	a.recordRun(record)

	res := &TranslationResult{
		OutputPath: outPath,
		FileName:   fileName,
		Format:     result.Format,
		Language:   string(lang),
		Report:     result.Report,
		RecordID:   record.ID,
	}
	a.statusMu.Lock()
	a.lastResult = res
	a.statusMu.Unlock()

	a.config.SetLastInput(path)
	a.config.SetLastLanguage(string(lang))

	a.updateStatus(types.PhaseComplete, 100, completionMessage(result.Report))
	a.safeEmit(EventTranslationComplete, res)
	logger.Info("translation complete",
		logger.String("output", outPath),
		logger.Int("translated", result.Report.Translated),
		logger.Int("failed", result.Report.Failed))

	return res, nil
}

// onPipelineProgress maps pipeline events onto the 0-100 status scale
// and forwards them to the frontend.
func (a *App) onPipelineProgress(e types.ProgressEvent) {
	percent := 2
	switch e.Phase {
	case types.PhaseExtracting:
		percent = 5
	case types.PhaseTranslating:
		percent = 10
		if e.Total > 0 {
			percent = 10 + e.Resolved*80/e.Total
		}
	case types.PhaseWriting:
		percent = 95
	}

	message := e.Message
	if message == "" {
		message = string(e.Phase)
	}
	a.updateStatus(e.Phase, percent, message)
	a.safeEmit(EventTranslationProgress, e)
}

// saveOutput 把翻译产物写入结果目录，文件名带上目标语言前缀
func (a *App) saveOutput(lang types.Language, fileName string, output []byte) (string, error) {
	outDir := a.config.GetResultsDirectory()
	if a.history != nil {
		outDir = a.history.BaseDir()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", types.NewAppError(types.ErrWrite, "无法创建结果目录", err)
	}

	outPath := filepath.Join(outDir, fmt.Sprintf("(%s)_%s", lang, fileName))
	if err := os.WriteFile(outPath, output, 0644); err != nil {
		return "", types.NewAppError(types.ErrWrite, "无法保存翻译结果", err)
	}
	return outPath, nil
}

func (a *App) recordRun(rec *history.RunRecord) {
	if a.history == nil {
		return
	}
	if err := a.history.Record(rec); err != nil {
		logger.Warn("failed to record run history", logger.Err(err))
	}
}

// statusForReport derives the history status from the final report.
func statusForReport(r *pipeline.Report) history.RunStatus {
	switch {
	case r.FailureReasons["cancelled"] > 0:
		return history.StatusCancelled
	case r.Failed > 0:
		return history.StatusPartial
	default:
		return history.StatusCompleted
	}
}

// completionMessage 生成完成时的状态消息
func completionMessage(r *pipeline.Report) string {
	if r.Failed == 0 {
		return fmt.Sprintf("翻译完成：%d 个文本段", r.Translated)
	}
	return fmt.Sprintf("翻译完成：成功 %d 个，失败 %d 个，失败的保留原文", r.Translated, r.Failed)
}

// errorMessage 提取面向用户的错误消息
func errorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Message + "：" + appErr.Details
		}
		return appErr.Message
	}
	return err.Error()
}

// CancelTranslation 取消当前翻译。已派发的批次会跑完，已完成的译文
// 仍然写入输出文档
func (a *App) CancelTranslation() error {
	logger.Info("cancel translation requested")

	a.cancelMu.Lock()
	cancel := a.cancelFunc
	a.cancelMu.Unlock()

	if cancel == nil {
		logger.Warn("no translation to cancel")
		return types.NewAppError(types.ErrInternal, "没有正在进行的翻译任务", nil)
	}
	cancel()
	a.updateStatus(types.PhaseWriting, 95, "正在取消，保存已完成的部分")
	return nil
}

// GetLastResult returns the result of the most recent translation run.
func (a *App) GetLastResult() *TranslationResult {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.lastResult
}

// SelectDocument opens a file selection dialog for supported documents.
// Returns the selected file path or empty string if cancelled.
func (a *App) SelectDocument() string {
	logger.Debug("opening file dialog")
	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "选择要翻译的文档",
		Filters: []runtime.FileFilter{
			{
				DisplayName: "Office 文档 (*.xlsx;*.docx;*.pptx;*.pdf)",
				Pattern:     "*.xlsx;*.docx;*.pptx;*.pdf",
			},
			{
				DisplayName: "所有文件 (*.*)",
				Pattern:     "*.*",
			},
		},
	})
	if err != nil {
		logger.Error("file dialog error", err)
		return ""
	}
	logger.Debug("file selected", logger.String("path", selection))
	return selection
}

// SelectResultsDirectory opens a directory selection dialog for the results dir.
func (a *App) SelectResultsDirectory() string {
	logger.Debug("opening directory dialog")
	selection, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "选择结果目录",
	})
	if err != nil {
		logger.Error("directory dialog error", err)
		return ""
	}
	return selection
}

// SupportedLanguages returns the fixed list of target languages for the frontend.
func (a *App) SupportedLanguages() []string {
	langs := types.SupportedLanguages()
	names := make([]string, len(langs))
	for i, l := range langs {
		names[i] = string(l)
	}
	return names
}

// SupportedFormats returns the supported document formats for the frontend.
func (a *App) SupportedFormats() []string {
	formats := types.SupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

// GetSettings returns the current application settings for the frontend.
// The API key is masked and never leaves the backend in full.
func (a *App) GetSettings() *types.Config {
	logger.Debug("getting settings for frontend")
	if a.config == nil {
		return &types.Config{}
	}
	cfg := a.config.GetConfig()

	// Mask API key for display - fixed length mask to avoid revealing key length
	maskedKey := ""
	if cfg.OpenAIAPIKey != "" {
		if len(cfg.OpenAIAPIKey) > 4 {
			maskedKey = "********" + cfg.OpenAIAPIKey[len(cfg.OpenAIAPIKey)-4:]
		} else {
			maskedKey = "********"
		}
	}

	return &types.Config{
		OpenAIAPIKey:      maskedKey,
		OpenAIBaseURL:     cfg.OpenAIBaseURL,
		OpenAIModel:       cfg.OpenAIModel,
		MaxBatchChars:     cfg.MaxBatchChars,
		MaxBatchUnits:     cfg.MaxBatchUnits,
		Concurrency:       cfg.Concurrency,
		MaxRetries:        cfg.MaxRetries,
		RequestIntervalMs: cfg.RequestIntervalMs,
		WorkDirectory:     cfg.WorkDirectory,
		ResultsDirectory:  cfg.ResultsDirectory,
		FileDescription:   cfg.FileDescription,
		PDFFontName:       cfg.PDFFontName,
		LastInput:         cfg.LastInput,
		LastLanguage:      cfg.LastLanguage,
	}
}

// SaveSettings saves the application settings from the frontend.
func (a *App) SaveSettings(apiKey, baseURL, model string, maxBatchChars, maxBatchUnits, concurrency, maxRetries int, resultsDir, fileDescription, pdfFontName string) error {
	logger.Info("saving settings from frontend",
		logger.String("baseURL", baseURL),
		logger.String("model", model),
		logger.Int("maxBatchChars", maxBatchChars),
		logger.Int("concurrency", concurrency))

	if a.config == nil {
		configMgr, err := config.NewConfigManager("")
		if err != nil {
			logger.Error("failed to create config manager", err)
			return err
		}
		a.config = configMgr
	}

	// If apiKey starts with asterisks (masked value), don't update it
	if strings.HasPrefix(apiKey, "****") {
		logger.Debug("API key is masked, preserving existing key")
		apiKey = ""
	}

	if err := a.config.UpdateConfig(apiKey, baseURL, model,
		maxBatchChars, maxBatchUnits, concurrency, maxRetries, "", resultsDir); err != nil {
		logger.Error("failed to update config", err)
		return err
	}

	cfg := a.config.GetConfig()
	cfg.FileDescription = fileDescription
	cfg.PDFFontName = pdfFontName
	if err := a.config.Save(); err != nil {
		logger.Error("failed to save config", err)
		return err
	}

	// Reopen the history manager in case the results directory moved
	if historyMgr, err := history.NewManager(a.config.GetResultsDirectory()); err == nil {
		a.history = historyMgr
	} else {
		logger.Warn("failed to reopen history manager", logger.Err(err))
	}

	logger.Info("settings saved successfully")
	return nil
}

// TestAPIConnection tests the API connection with the provided settings.
// Returns nil if successful, or an error message if the test fails.
func (a *App) TestAPIConnection(apiKey, baseURL, model string) error {
	logger.Info("testing API connection",
		logger.String("baseURL", baseURL),
		logger.String("model", model))

	if apiKey == "" {
		return types.NewAppError(types.ErrConfig, "API Key 不能为空", nil)
	}

	// If apiKey starts with asterisks (masked key), use the existing key from config
	actualKey := apiKey
	if strings.HasPrefix(apiKey, "****") {
		if a.config != nil {
			actualKey = a.config.GetAPIKey()
		}
		if actualKey == "" {
			return types.NewAppError(types.ErrConfig, "请输入新的 API Key", nil)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := translator.NewClient(ctx, translator.Config{
		APIKey:  actualKey,
		BaseURL: baseURL,
		Model:   model,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return err
	}

	if err := client.TestConnection(ctx); err != nil {
		logger.Error("API connection test failed", err)
		return err
	}

	logger.Info("API connection test successful")
	return nil
}

// ListHistory returns all past translation runs, newest first.
func (a *App) ListHistory() ([]*history.RunRecord, error) {
	if a.history == nil {
		return []*history.RunRecord{}, nil
	}
	return a.history.List()
}

// DeleteHistoryRecord 删除一条历史记录及其输出文件
func (a *App) DeleteHistoryRecord(id string) error {
	if a.history == nil {
		return types.NewAppError(types.ErrInternal, "历史记录未初始化", nil)
	}
	return a.history.Delete(id)
}

// OpenOutputInSystem opens a translated document with the system default application.
func (a *App) OpenOutputInSystem(path string) error {
	if path == "" {
		return types.NewAppError(types.ErrInvalidInput, "文件路径为空", nil)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return types.NewAppError(types.ErrFileNotFound, "文件不存在", err)
	}

	logger.Info("opening output in system viewer", logger.String("path", path))
	runtime.BrowserOpenURL(a.ctx, "file:///"+filepath.ToSlash(path))
	return nil
}

// GetResultsDirectory returns the directory translated documents are saved into.
func (a *App) GetResultsDirectory() string {
	if a.history != nil {
		return a.history.BaseDir()
	}
	if a.config != nil {
		return a.config.GetResultsDirectory()
	}
	return ""
}

// GetLastInput returns the last selected file path from config.
// This is used to restore the input field when the app starts.
func (a *App) GetLastInput() string {
	if a.config == nil {
		return ""
	}
	return a.config.GetLastInput()
}

// GetLastLanguage returns the last selected target language from config.
func (a *App) GetLastLanguage() string {
	if a.config == nil {
		return ""
	}
	return a.config.GetLastLanguage()
}

// GetFileDescription returns the optional document description used as
// translation context.
func (a *App) GetFileDescription() string {
	if a.config == nil {
		return ""
	}
	return a.config.GetFileDescription()
}

// SetFileDescription 设置文档内容说明，作为翻译上下文传给模型
func (a *App) SetFileDescription(desc string) error {
	if a.config == nil {
		return types.NewAppError(types.ErrConfig, "配置未初始化", nil)
	}
	return a.config.SetFileDescription(desc)
}
