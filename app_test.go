package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"office-translator/internal/config"
	"office-translator/internal/history"
	"office-translator/internal/pipeline"
	"office-translator/internal/types"
)

// newTestAppWithConfig creates an App backed by a config file in a temp
// directory so tests never touch the user's real configuration.
func newTestAppWithConfig(t *testing.T, cfg *types.Config) *App {
	t.Helper()

	dir := t.TempDir()
	if cfg.ResultsDirectory == "" {
		cfg.ResultsDirectory = filepath.Join(dir, "results")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	app, err := NewAppWithConfig(configPath)
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	app.startup(context.Background())
	return app
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppWithConfig(t, &types.Config{OpenAIAPIKey: "test-api-key-1234"})
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp() returned nil")
	}
}

func TestNewAppWithConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.json")

	app, err := NewAppWithConfig(configPath)
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	if app == nil {
		t.Fatal("NewAppWithConfig() returned nil")
	}
	if app.config == nil {
		t.Fatal("App config should not be nil")
	}
}

func TestApp_Startup(t *testing.T) {
	app := newTestApp(t)

	if app.ctx == nil {
		t.Error("Context should be set after startup")
	}
	if app.config == nil {
		t.Error("ConfigManager should be initialized after startup")
	}
	if app.history == nil {
		t.Error("History manager should be initialized after startup")
	}
}

func TestApp_Shutdown(t *testing.T) {
	app := newTestApp(t)

	// Shutdown without a running task should not panic
	app.shutdown(context.Background())
}

func TestApp_GetStatus(t *testing.T) {
	app := NewApp()

	status := app.GetStatus()
	if status.Phase != types.PhaseIdle {
		t.Errorf("Initial phase should be idle, got %s", status.Phase)
	}
	if status.Progress != 0 {
		t.Errorf("Initial progress should be 0, got %d", status.Progress)
	}
}

func TestApp_SetStatusCallback(t *testing.T) {
	app := NewApp()

	var receivedStatus *types.Status
	app.SetStatusCallback(func(status *types.Status) {
		receivedStatus = status
	})

	app.updateStatus(types.PhaseTranslating, 10, "Testing...")

	if receivedStatus == nil {
		t.Fatal("Callback was not called")
	}
	if receivedStatus.Phase != types.PhaseTranslating {
		t.Errorf("Expected phase %s, got %s", types.PhaseTranslating, receivedStatus.Phase)
	}
	if receivedStatus.Progress != 10 {
		t.Errorf("Expected progress 10, got %d", receivedStatus.Progress)
	}
	if receivedStatus.Message != "Testing..." {
		t.Errorf("Expected message 'Testing...', got '%s'", receivedStatus.Message)
	}
}

func TestApp_UpdateStatus(t *testing.T) {
	app := NewApp()

	app.updateStatus(types.PhaseTranslating, 50, "翻译中...")

	status := app.GetStatus()
	if status.Phase != types.PhaseTranslating {
		t.Errorf("Expected phase %s, got %s", types.PhaseTranslating, status.Phase)
	}
	if status.Progress != 50 {
		t.Errorf("Expected progress 50, got %d", status.Progress)
	}
	if status.Message != "翻译中..." {
		t.Errorf("Expected message '翻译中...', got '%s'", status.Message)
	}
	if status.Error != "" {
		t.Errorf("Expected no error, got '%s'", status.Error)
	}
}

func TestApp_UpdateStatusError(t *testing.T) {
	app := NewApp()

	app.updateStatusError("测试错误")

	status := app.GetStatus()
	if status.Phase != types.PhaseError {
		t.Errorf("Expected phase %s, got %s", types.PhaseError, status.Phase)
	}
	if status.Error != "测试错误" {
		t.Errorf("Expected error '测试错误', got '%s'", status.Error)
	}
}

func TestApp_IsProcessing(t *testing.T) {
	app := NewApp()

	cases := []struct {
		phase types.ProcessPhase
		want  bool
	}{
		{types.PhaseIdle, false},
		{types.PhaseDetecting, true},
		{types.PhaseExtracting, true},
		{types.PhaseTranslating, true},
		{types.PhaseWriting, true},
		{types.PhaseComplete, false},
		{types.PhaseError, false},
	}
	for _, c := range cases {
		app.updateStatus(c.phase, 0, "")
		if got := app.IsProcessing(); got != c.want {
			t.Errorf("IsProcessing() in phase %s = %v, want %v", c.phase, got, c.want)
		}
	}
}

func TestApp_GetStatus_ThreadSafe(t *testing.T) {
	app := NewApp()

	done := make(chan bool)

	// Writer goroutine
	go func() {
		for i := 0; i < 100; i++ {
			app.updateStatus(types.PhaseTranslating, i, "Testing...")
		}
		done <- true
	}()

	// Reader goroutine
	go func() {
		for i := 0; i < 100; i++ {
			_ = app.GetStatus()
		}
		done <- true
	}()

	<-done
	<-done
}

func TestApp_CancelTranslation_NoTask(t *testing.T) {
	app := NewApp()

	err := app.CancelTranslation()
	if err == nil {
		t.Error("Expected error when cancelling with no translation running")
	}
}

func TestApp_Translate_WhileProcessing(t *testing.T) {
	app := newTestApp(t)
	app.updateStatus(types.PhaseTranslating, 50, "翻译中")

	result, err := app.Translate("whatever.xlsx", "Vietnamese")
	if err == nil {
		t.Fatal("Expected error when a task is already running")
	}
	if result != nil {
		t.Error("Expected nil result when a task is already running")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrInvalidInput {
		t.Errorf("Expected INVALID_INPUT error, got %v", err)
	}
}

func TestApp_Translate_NoAPIKey(t *testing.T) {
	originalEnv := os.Getenv(config.EnvOpenAIAPIKey)
	defer os.Setenv(config.EnvOpenAIAPIKey, originalEnv)
	os.Setenv(config.EnvOpenAIAPIKey, "")

	app := newTestAppWithConfig(t, &types.Config{})

	result, err := app.Translate("whatever.xlsx", "Vietnamese")
	if err == nil {
		t.Fatal("Expected error without an API key")
	}
	if result != nil {
		t.Error("Expected nil result without an API key")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrConfig {
		t.Errorf("Expected CONFIG_ERROR, got %v", err)
	}
}

func TestApp_Translate_UnsupportedLanguage(t *testing.T) {
	app := newTestApp(t)

	result, err := app.Translate("whatever.xlsx", "Klingon")
	if err == nil {
		t.Fatal("Expected error for unsupported language")
	}
	if result != nil {
		t.Error("Expected nil result for unsupported language")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrUnsupportedLanguage {
		t.Errorf("Expected UNSUPPORTED_LANGUAGE error, got %v", err)
	}

	status := app.GetStatus()
	if status.Phase != types.PhaseError {
		t.Errorf("Expected phase %s, got %s", types.PhaseError, status.Phase)
	}
}

func TestApp_Translate_FileNotFound(t *testing.T) {
	app := newTestApp(t)

	result, err := app.Translate("/nonexistent/path/report.xlsx", "Vietnamese")
	if err == nil {
		t.Fatal("Expected error for non-existent file")
	}
	if result != nil {
		t.Error("Expected nil result for non-existent file")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrFileNotFound {
		t.Errorf("Expected FILE_NOT_FOUND error, got %v", err)
	}
}

func TestApp_SaveOutput(t *testing.T) {
	app := newTestApp(t)

	path, err := app.saveOutput(types.LangVietnamese, "report.xlsx", []byte("fake-xlsx-bytes"))
	if err != nil {
		t.Fatalf("saveOutput() returned error: %v", err)
	}

	want := filepath.Join(app.history.BaseDir(), "(Vietnamese)_report.xlsx")
	if path != want {
		t.Errorf("Output path = %s, want %s", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if string(data) != "fake-xlsx-bytes" {
		t.Errorf("Output content = %q, want original bytes", data)
	}
}

func TestApp_GetSettings_MasksAPIKey(t *testing.T) {
	app := newTestApp(t)

	settings := app.GetSettings()
	if settings.OpenAIAPIKey != "********1234" {
		t.Errorf("Expected masked key '********1234', got '%s'", settings.OpenAIAPIKey)
	}

	// Short keys are fully masked so their length is not revealed
	app.config.GetConfig().OpenAIAPIKey = "abc"
	settings = app.GetSettings()
	if settings.OpenAIAPIKey != "********" {
		t.Errorf("Expected fully masked key, got '%s'", settings.OpenAIAPIKey)
	}

	app.config.GetConfig().OpenAIAPIKey = ""
	settings = app.GetSettings()
	if settings.OpenAIAPIKey != "" {
		t.Errorf("Expected empty masked key, got '%s'", settings.OpenAIAPIKey)
	}
}

func TestApp_SaveSettings_PersistsValues(t *testing.T) {
	app := newTestApp(t)
	resultsDir := filepath.Join(t.TempDir(), "moved-results")

	err := app.SaveSettings("sk-new-key-5678", "https://example.com/v1", "test-model",
		2000, 40, 2, 5, resultsDir, "季度财务报表", "STSong")
	if err != nil {
		t.Fatalf("SaveSettings() returned error: %v", err)
	}

	cfg := app.config.GetConfig()
	if cfg.OpenAIAPIKey != "sk-new-key-5678" {
		t.Errorf("API key = %s, want sk-new-key-5678", cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIBaseURL != "https://example.com/v1" {
		t.Errorf("Base URL = %s, want https://example.com/v1", cfg.OpenAIBaseURL)
	}
	if cfg.OpenAIModel != "test-model" {
		t.Errorf("Model = %s, want test-model", cfg.OpenAIModel)
	}
	if cfg.MaxBatchChars != 2000 || cfg.MaxBatchUnits != 40 {
		t.Errorf("Batch limits = %d/%d, want 2000/40", cfg.MaxBatchChars, cfg.MaxBatchUnits)
	}
	if cfg.Concurrency != 2 || cfg.MaxRetries != 5 {
		t.Errorf("Concurrency/retries = %d/%d, want 2/5", cfg.Concurrency, cfg.MaxRetries)
	}
	if cfg.FileDescription != "季度财务报表" {
		t.Errorf("File description = %s, want 季度财务报表", cfg.FileDescription)
	}
	if cfg.PDFFontName != "STSong" {
		t.Errorf("PDF font = %s, want STSong", cfg.PDFFontName)
	}

	// History manager should follow the results directory
	if app.history == nil || app.history.BaseDir() != resultsDir {
		t.Errorf("History manager should move to the new results directory")
	}

	// Settings must survive a reload from disk
	reloaded, err := config.NewConfigManager(app.config.GetConfigPath())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if reloaded.GetConfig().OpenAIAPIKey != "sk-new-key-5678" {
		t.Error("Saved settings were not persisted to disk")
	}
}

func TestApp_SaveSettings_MaskedKeyPreserved(t *testing.T) {
	app := newTestApp(t)

	// The frontend sends back the masked key when the user did not change it
	err := app.SaveSettings("********1234", "", "", 0, 0, 0, 0, "", "", "")
	if err != nil {
		t.Fatalf("SaveSettings() returned error: %v", err)
	}

	if got := app.config.GetConfig().OpenAIAPIKey; got != "test-api-key-1234" {
		t.Errorf("Masked key should preserve existing key, got '%s'", got)
	}
}

func TestApp_SupportedLanguages(t *testing.T) {
	app := NewApp()

	langs := app.SupportedLanguages()
	if len(langs) != 7 {
		t.Fatalf("Expected 7 supported languages, got %d", len(langs))
	}
	if langs[0] != "Vietnamese" {
		t.Errorf("First language should be Vietnamese, got %s", langs[0])
	}

	found := false
	for _, l := range langs {
		if l == "Japanese" {
			found = true
		}
	}
	if !found {
		t.Error("Japanese should be in the supported languages")
	}
}

func TestApp_SupportedFormats(t *testing.T) {
	app := NewApp()

	formats := app.SupportedFormats()
	want := []string{"xlsx", "docx", "pptx", "pdf"}
	if len(formats) != len(want) {
		t.Fatalf("Expected %d formats, got %d", len(want), len(formats))
	}
	for i, f := range want {
		if formats[i] != f {
			t.Errorf("Format[%d] = %s, want %s", i, formats[i], f)
		}
	}
}

func TestApp_GetLastResult_InitiallyNil(t *testing.T) {
	app := NewApp()
	if app.GetLastResult() != nil {
		t.Error("Last result should be nil before any translation")
	}
}

func TestApp_OnPipelineProgress(t *testing.T) {
	app := newTestApp(t)

	var statuses []*types.Status
	app.SetStatusCallback(func(s *types.Status) {
		statuses = append(statuses, s)
	})

	app.onPipelineProgress(types.ProgressEvent{Phase: types.PhaseExtracting, Message: "正在提取文本"})
	if got := app.GetStatus().Progress; got != 5 {
		t.Errorf("Extracting progress = %d, want 5", got)
	}

	app.onPipelineProgress(types.ProgressEvent{Phase: types.PhaseTranslating, Resolved: 5, Total: 10})
	if got := app.GetStatus().Progress; got != 50 {
		t.Errorf("Translating progress at 5/10 = %d, want 50", got)
	}

	app.onPipelineProgress(types.ProgressEvent{Phase: types.PhaseWriting, Message: "正在生成文档"})
	if got := app.GetStatus().Progress; got != 95 {
		t.Errorf("Writing progress = %d, want 95", got)
	}

	if len(statuses) != 3 {
		t.Fatalf("Expected 3 status updates, got %d", len(statuses))
	}
	// A missing event message falls back to the phase name
	if statuses[1].Message != string(types.PhaseTranslating) {
		t.Errorf("Empty message should fall back to phase name, got '%s'", statuses[1].Message)
	}
}

func TestStatusForReport(t *testing.T) {
	completed := &pipeline.Report{Translated: 5}
	if got := statusForReport(completed); got != history.StatusCompleted {
		t.Errorf("All translated should be completed, got %s", got)
	}

	partial := &pipeline.Report{
		Translated:     3,
		Failed:         2,
		FailureReasons: map[string]int{"exhausted-retries": 2},
	}
	if got := statusForReport(partial); got != history.StatusPartial {
		t.Errorf("Some failures should be partial, got %s", got)
	}

	cancelled := &pipeline.Report{
		Translated:     1,
		Failed:         4,
		FailureReasons: map[string]int{"cancelled": 4},
	}
	if got := statusForReport(cancelled); got != history.StatusCancelled {
		t.Errorf("Cancelled units should mark the run cancelled, got %s", got)
	}
}

func TestCompletionMessage(t *testing.T) {
	clean := &pipeline.Report{Translated: 5}
	if got := completionMessage(clean); got != "翻译完成：5 个文本段" {
		t.Errorf("Unexpected completion message: %s", got)
	}

	withFailures := &pipeline.Report{Translated: 3, Failed: 2}
	want := "翻译完成：成功 3 个，失败 2 个，失败的保留原文"
	if got := completionMessage(withFailures); got != want {
		t.Errorf("Completion message = %s, want %s", got, want)
	}
}

func TestErrorMessage(t *testing.T) {
	withDetails := types.NewAppErrorWithDetails(types.ErrFileNotFound, "无法读取文件", "/tmp/missing.xlsx", nil)
	if got := errorMessage(withDetails); got != "无法读取文件：/tmp/missing.xlsx" {
		t.Errorf("Unexpected message with details: %s", got)
	}

	plain := types.NewAppError(types.ErrConfig, "未配置 API Key", nil)
	if got := errorMessage(plain); got != "未配置 API Key" {
		t.Errorf("Unexpected message without details: %s", got)
	}

	generic := errors.New("boom")
	if got := errorMessage(generic); got != "boom" {
		t.Errorf("Generic error should pass through, got %s", got)
	}
}

// =============================================================================
// Integration Tests
// =============================================================================
// These tests run the full translation flow through App.Translate with a mock
// HTTP server standing in for the OpenAI compatible API.
// =============================================================================

const appTestDocBody = `<w:p><w:r><w:t>Hello world</w:t></w:r></w:p>
<w:p><w:r><w:t>Good morning</w:t></w:r></w:p>`

// buildDocxFixture builds a minimal docx with two translatable runs.
func buildDocxFixture(t *testing.T) []byte {
	t.Helper()

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		appTestDocBody + `</w:body></w:document>`
	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range []struct{ name, content string }{
		{"[Content_Types].xml", contentTypes},
		{"word/document.xml", doc},
	} {
		w, err := zw.Create(entry.name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(entry.content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// createMockChatServer creates a mock HTTP server that simulates an OpenAI
// compatible chat completions endpoint and always answers with content.
func createMockChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := map[string]interface{}{
			"id":      "mock-response-id",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]string{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{
				"prompt_tokens":     100,
				"completion_tokens": 150,
				"total_tokens":      250,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}))
}

// createMockErrorServer creates a mock HTTP server that returns an error response.
func createMockErrorServer(t *testing.T, statusCode int, errorMessage string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"error": map[string]string{
				"message": errorMessage,
				"type":    "api_error",
				"code":    "error",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}))
}

func TestIntegration_TranslateWithMockServer(t *testing.T) {
	server := createMockChatServer(t, `["Xin chào thế giới","Chào buổi sáng"]`)
	defer server.Close()

	app := newTestAppWithConfig(t, &types.Config{
		OpenAIAPIKey:  "test-api-key",
		OpenAIBaseURL: server.URL,
		OpenAIModel:   "test-model",
	})

	docPath := filepath.Join(t.TempDir(), "greeting.docx")
	if err := os.WriteFile(docPath, buildDocxFixture(t), 0644); err != nil {
		t.Fatalf("Failed to write test document: %v", err)
	}

	result, err := app.Translate(docPath, "Vietnamese")
	if err != nil {
		t.Fatalf("Translate() returned error: %v", err)
	}
	if result == nil {
		t.Fatal("Translate() returned nil result")
	}

	if result.Format != types.FormatDOCX {
		t.Errorf("Format = %s, want docx", result.Format)
	}
	if result.Report.Translated != 2 || result.Report.Failed != 0 {
		t.Errorf("Report = %+v, want 2 translated and 0 failed", result.Report)
	}

	wantPath := filepath.Join(app.history.BaseDir(), "(Vietnamese)_greeting.docx")
	if result.OutputPath != wantPath {
		t.Errorf("Output path = %s, want %s", result.OutputPath, wantPath)
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Errorf("Output file should exist: %v", err)
	}

	status := app.GetStatus()
	if status.Phase != types.PhaseComplete {
		t.Errorf("Final phase = %s, want complete", status.Phase)
	}
	if status.Progress != 100 {
		t.Errorf("Final progress = %d, want 100", status.Progress)
	}

	if app.GetLastResult() != result {
		t.Error("GetLastResult() should return the latest result")
	}

	// The run must be recorded in history
	records, err := app.ListHistory()
	if err != nil {
		t.Fatalf("ListHistory() returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 history record, got %d", len(records))
	}
	rec := records[0]
	if rec.Status != history.StatusCompleted {
		t.Errorf("Record status = %s, want completed", rec.Status)
	}
	if rec.Translated != 2 || rec.OutputPath != wantPath {
		t.Errorf("Record = %+v, want translated 2 and output path set", rec)
	}

	// Last input and language are remembered for the next session
	if app.GetLastInput() != docPath {
		t.Errorf("Last input = %s, want %s", app.GetLastInput(), docPath)
	}
	if app.GetLastLanguage() != "Vietnamese" {
		t.Errorf("Last language = %s, want Vietnamese", app.GetLastLanguage())
	}
}

func TestIntegration_TranslateAPIError(t *testing.T) {
	server := createMockErrorServer(t, http.StatusUnauthorized, "Invalid API key")
	defer server.Close()

	app := newTestAppWithConfig(t, &types.Config{
		OpenAIAPIKey:  "invalid-key",
		OpenAIBaseURL: server.URL,
		OpenAIModel:   "test-model",
	})

	docPath := filepath.Join(t.TempDir(), "greeting.docx")
	if err := os.WriteFile(docPath, buildDocxFixture(t), 0644); err != nil {
		t.Fatalf("Failed to write test document: %v", err)
	}

	result, err := app.Translate(docPath, "Vietnamese")
	if err == nil {
		t.Fatal("Expected error when the API rejects every call")
	}
	if result != nil {
		t.Error("Expected nil result when no unit was translated")
	}

	status := app.GetStatus()
	if status.Phase != types.PhaseError {
		t.Errorf("Final phase = %s, want error", status.Phase)
	}

	// The failed run is recorded so the user can see what happened
	records, err := app.ListHistory()
	if err != nil {
		t.Fatalf("ListHistory() returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 history record, got %d", len(records))
	}
	if records[0].Status != history.StatusFailed {
		t.Errorf("Record status = %s, want failed", records[0].Status)
	}
	if records[0].ErrorMessage == "" {
		t.Error("Failed record should carry an error message")
	}
}
