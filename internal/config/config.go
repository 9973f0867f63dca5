// Package config provides configuration management for the office translator application.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"office-translator/internal/logger"
	"office-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "office-translator-config.json"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default OpenAI model to use
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxBatchChars 单个翻译批次的最大字符数
	DefaultMaxBatchChars = 1600
	// DefaultMaxBatchUnits 单个翻译批次的最大单元数
	DefaultMaxBatchUnits = 50
	// DefaultConcurrency 默认并发数，1 表示按提取顺序逐批派发
	DefaultConcurrency = 1
	// DefaultMaxRetries is the default maximum retry count per batch
	DefaultMaxRetries = 3
	// DefaultRequestIntervalMs 两次 API 调用之间的最小间隔（毫秒）
	DefaultRequestIntervalMs = 500
	// DefaultResultsDirName is the default results directory name under the user home
	DefaultResultsDirName = "office-translator-results"
	// DefaultPDFFontName PDF 覆盖层的默认字体，内置字体只覆盖拉丁文
	DefaultPDFFontName = "Helvetica"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "无法获取用户目录", err)
		}
		configPath = filepath.Join(homeDir, ".config", "office-translator", DefaultConfigFileName)
	}

	logger.Info("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		OpenAIAPIKey:      "",
		OpenAIBaseURL:     DefaultBaseURL,
		OpenAIModel:       DefaultModel,
		MaxBatchChars:     DefaultMaxBatchChars,
		MaxBatchUnits:     DefaultMaxBatchUnits,
		Concurrency:       DefaultConcurrency,
		MaxRetries:        DefaultMaxRetries,
		RequestIntervalMs: DefaultRequestIntervalMs,
		WorkDirectory:     "",
		ResultsDirectory:  "",
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values.
// Environment variables take precedence for API key if config file value is empty.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "无法读取配置文件", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			// Invalid JSON, use defaults
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded successfully",
				logger.String("path", m.configPath),
				logger.Int("apiKeyLength", len(config.OpenAIAPIKey)),
				logger.String("baseURL", config.OpenAIBaseURL),
				logger.String("model", config.OpenAIModel))
			m.config = config
		}
	}

	// Apply defaults for empty fields
	if m.config.OpenAIModel == "" {
		m.config.OpenAIModel = DefaultModel
	}
	if m.config.OpenAIBaseURL == "" {
		m.config.OpenAIBaseURL = DefaultBaseURL
	}
	if m.config.MaxBatchChars <= 0 {
		m.config.MaxBatchChars = DefaultMaxBatchChars
	}
	if m.config.MaxBatchUnits <= 0 {
		m.config.MaxBatchUnits = DefaultMaxBatchUnits
	}
	if m.config.Concurrency <= 0 {
		m.config.Concurrency = DefaultConcurrency
	}
	if m.config.MaxRetries < 0 {
		m.config.MaxRetries = DefaultMaxRetries
	}
	if m.config.RequestIntervalMs < 0 {
		m.config.RequestIntervalMs = DefaultRequestIntervalMs
	}

	return nil
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "无法创建配置目录", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "无法序列化配置", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "无法写入配置文件", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// Validate 检查配置是否满足运行要求，任何处理开始之前必须调用
func (m *ConfigManager) Validate() error {
	if m.GetAPIKey() == "" {
		return types.NewAppErrorWithDetails(types.ErrConfig,
			"未配置 API Key", "请在设置中填写，或设置环境变量 "+EnvOpenAIAPIKey, nil)
	}
	if m.GetBaseURL() == "" {
		return types.NewAppError(types.ErrConfig, "未配置 API Base URL", nil)
	}
	if m.GetModel() == "" {
		return types.NewAppError(types.ErrConfig, "未配置模型名称", nil)
	}
	return nil
}

// GetAPIKey returns the OpenAI API key.
// It first checks the config file value, then falls back to the environment variable.
func (m *ConfigManager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// SetAPIKey sets the OpenAI API key and saves the configuration.
func (m *ConfigManager) SetAPIKey(key string) error {
	logger.Info("setting API key")
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.OpenAIAPIKey = key
	return m.Save()
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetModel returns the OpenAI model to use.
func (m *ConfigManager) GetModel() string {
	if m.config != nil && m.config.OpenAIModel != "" {
		return m.config.OpenAIModel
	}
	return DefaultModel
}

// GetBaseURL returns the OpenAI API base URL.
// It first checks the config file value, then falls back to the environment variable.
func (m *ConfigManager) GetBaseURL() string {
	if m.config != nil && m.config.OpenAIBaseURL != "" {
		return m.config.OpenAIBaseURL
	}

	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}

	return DefaultBaseURL
}

// GetWorkDirectory returns the work directory.
func (m *ConfigManager) GetWorkDirectory() string {
	if m.config != nil {
		return m.config.WorkDirectory
	}
	return ""
}

// GetResultsDirectory 返回结果目录，未配置时使用用户目录下的默认位置
func (m *ConfigManager) GetResultsDirectory() string {
	if m.config != nil && m.config.ResultsDirectory != "" {
		return m.config.ResultsDirectory
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultResultsDirName
	}
	return filepath.Join(homeDir, DefaultResultsDirName)
}

// GetMaxBatchChars 返回单个批次的最大字符数
func (m *ConfigManager) GetMaxBatchChars() int {
	if m.config != nil && m.config.MaxBatchChars > 0 {
		return m.config.MaxBatchChars
	}
	return DefaultMaxBatchChars
}

// GetMaxBatchUnits 返回单个批次的最大单元数
func (m *ConfigManager) GetMaxBatchUnits() int {
	if m.config != nil && m.config.MaxBatchUnits > 0 {
		return m.config.MaxBatchUnits
	}
	return DefaultMaxBatchUnits
}

// GetConcurrency 返回批次派发并发数，1 表示顺序派发
func (m *ConfigManager) GetConcurrency() int {
	if m.config != nil && m.config.Concurrency > 0 {
		return m.config.Concurrency
	}
	return DefaultConcurrency
}

// GetMaxRetries returns the maximum retry count per batch.
func (m *ConfigManager) GetMaxRetries() int {
	if m.config != nil && m.config.MaxRetries >= 0 {
		return m.config.MaxRetries
	}
	return DefaultMaxRetries
}

// GetRequestInterval 返回两次 API 调用之间的最小间隔
func (m *ConfigManager) GetRequestInterval() time.Duration {
	ms := DefaultRequestIntervalMs
	if m.config != nil && m.config.RequestIntervalMs >= 0 {
		ms = m.config.RequestIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// GetPDFFontName 返回 PDF 覆盖层使用的字体名。中文、日文等 CJK 目标语言
// 需要先用 pdfcpu 安装对应的用户字体，再在这里配置字体名
func (m *ConfigManager) GetPDFFontName() string {
	if m.config != nil && m.config.PDFFontName != "" {
		return m.config.PDFFontName
	}
	return DefaultPDFFontName
}

// GetFileDescription returns the optional document description used as translation context.
func (m *ConfigManager) GetFileDescription() string {
	if m.config != nil {
		return m.config.FileDescription
	}
	return ""
}

// SetFileDescription sets the document description and saves the configuration.
// An empty value clears the description.
func (m *ConfigManager) SetFileDescription(desc string) error {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.FileDescription = desc
	return m.Save()
}

// GetLastInput returns the last selected file path.
func (m *ConfigManager) GetLastInput() string {
	if m.config != nil {
		return m.config.LastInput
	}
	return ""
}

// SetLastInput remembers the last selected file path and saves the configuration.
func (m *ConfigManager) SetLastInput(input string) {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.LastInput = input
	// Save silently, don't fail if it doesn't work
	_ = m.Save()
}

// GetLastLanguage returns the last selected target language.
func (m *ConfigManager) GetLastLanguage() string {
	if m.config != nil {
		return m.config.LastLanguage
	}
	return ""
}

// SetLastLanguage remembers the last selected target language and saves the configuration.
func (m *ConfigManager) SetLastLanguage(lang string) {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.LastLanguage = lang
	_ = m.Save()
}

// UpdateConfig updates the configuration with new values and saves it.
func (m *ConfigManager) UpdateConfig(apiKey, baseURL, model string, maxBatchChars, maxBatchUnits, concurrency, maxRetries int, workDir, resultsDir string) error {
	logger.Info("updating configuration")
	if m.config == nil {
		m.config = defaultConfig()
	}

	// Update fields if provided
	if apiKey != "" {
		m.config.OpenAIAPIKey = apiKey
	}
	if baseURL != "" {
		m.config.OpenAIBaseURL = baseURL
	}
	if model != "" {
		m.config.OpenAIModel = model
	}
	if maxBatchChars > 0 {
		m.config.MaxBatchChars = maxBatchChars
	}
	if maxBatchUnits > 0 {
		m.config.MaxBatchUnits = maxBatchUnits
	}
	if concurrency > 0 {
		m.config.Concurrency = concurrency
	}
	if maxRetries >= 0 {
		m.config.MaxRetries = maxRetries
	}
	if workDir != "" {
		m.config.WorkDirectory = workDir
	}
	if resultsDir != "" {
		m.config.ResultsDirectory = resultsDir
	}

	return m.Save()
}
