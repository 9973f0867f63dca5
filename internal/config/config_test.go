package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"office-translator/internal/types"
)

func TestNewConfigManager(t *testing.T) {
	t.Run("with custom path", func(t *testing.T) {
		customPath := "/tmp/test-config.json"
		cm, err := NewConfigManager(customPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if cm.GetConfigPath() != customPath {
			t.Errorf("expected config path %s, got %s", customPath, cm.GetConfigPath())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		cm, err := NewConfigManager("")
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if cm.GetConfigPath() == "" {
			t.Error("expected non-empty config path")
		}
	})
}

func TestConfigManager_LoadSave(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "test-config.json")

	t.Run("Load with non-existent file uses defaults", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		config := cm.GetConfig()
		if config.OpenAIModel != DefaultModel {
			t.Errorf("expected default model %s, got %s", DefaultModel, config.OpenAIModel)
		}
		if config.MaxBatchChars != DefaultMaxBatchChars {
			t.Errorf("expected default max batch chars %d, got %d", DefaultMaxBatchChars, config.MaxBatchChars)
		}
		if config.Concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, config.Concurrency)
		}
	})

	t.Run("Save creates config file", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		cm.SetConfig(&types.Config{
			OpenAIAPIKey:  "test-api-key",
			OpenAIModel:   "gpt-3.5-turbo",
			WorkDirectory: "/tmp/work",
		})

		if err := cm.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Error("config file was not created")
		}
	})

	t.Run("Load reads saved config", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		config := cm.GetConfig()
		if config.OpenAIAPIKey != "test-api-key" {
			t.Errorf("expected API key 'test-api-key', got '%s'", config.OpenAIAPIKey)
		}
		if config.OpenAIModel != "gpt-3.5-turbo" {
			t.Errorf("expected model 'gpt-3.5-turbo', got '%s'", config.OpenAIModel)
		}
		if config.WorkDirectory != "/tmp/work" {
			t.Errorf("expected work directory '/tmp/work', got '%s'", config.WorkDirectory)
		}
	})

	t.Run("Load with invalid JSON uses defaults", func(t *testing.T) {
		invalidConfigPath := filepath.Join(tmpDir, "invalid-config.json")
		if err := os.WriteFile(invalidConfigPath, []byte("invalid json"), 0644); err != nil {
			t.Fatalf("failed to write invalid config: %v", err)
		}

		cm, err := NewConfigManager(invalidConfigPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		if err := cm.Load(); err != nil {
			t.Fatalf("Load should not fail with invalid JSON: %v", err)
		}

		if cm.GetConfig().OpenAIModel != DefaultModel {
			t.Errorf("expected default model after invalid JSON, got %s", cm.GetConfig().OpenAIModel)
		}
	})
}

func TestConfigManager_GetAPIKey(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "test-config.json")

	t.Run("returns config file value when set", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		cm.SetConfig(&types.Config{OpenAIAPIKey: "config-api-key"})

		if got := cm.GetAPIKey(); got != "config-api-key" {
			t.Errorf("expected 'config-api-key', got '%s'", got)
		}
	})

	t.Run("falls back to environment variable", func(t *testing.T) {
		originalEnv := os.Getenv(EnvOpenAIAPIKey)
		defer os.Setenv(EnvOpenAIAPIKey, originalEnv)

		os.Setenv(EnvOpenAIAPIKey, "env-api-key")

		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		cm.SetConfig(&types.Config{OpenAIAPIKey: ""})

		if got := cm.GetAPIKey(); got != "env-api-key" {
			t.Errorf("expected 'env-api-key', got '%s'", got)
		}
	})

	t.Run("config file takes precedence over env var", func(t *testing.T) {
		originalEnv := os.Getenv(EnvOpenAIAPIKey)
		defer os.Setenv(EnvOpenAIAPIKey, originalEnv)

		os.Setenv(EnvOpenAIAPIKey, "env-api-key")

		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		cm.SetConfig(&types.Config{OpenAIAPIKey: "config-api-key"})

		if got := cm.GetAPIKey(); got != "config-api-key" {
			t.Errorf("expected 'config-api-key' (from config), got '%s'", got)
		}
	})
}

func TestConfigManager_SetAPIKey(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "test-config.json")

	cm, err := NewConfigManager(configPath)
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}

	if err := cm.SetAPIKey("new-api-key"); err != nil {
		t.Fatalf("SetAPIKey failed: %v", err)
	}

	if cm.GetAPIKey() != "new-api-key" {
		t.Errorf("expected 'new-api-key', got '%s'", cm.GetAPIKey())
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var savedConfig types.Config
	if err := json.Unmarshal(data, &savedConfig); err != nil {
		t.Fatalf("failed to parse saved config: %v", err)
	}

	if savedConfig.OpenAIAPIKey != "new-api-key" {
		t.Errorf("expected saved API key 'new-api-key', got '%s'", savedConfig.OpenAIAPIKey)
	}
}

func TestConfigManager_GettersWithDefaults(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cm, err := NewConfigManager(filepath.Join(tmpDir, "test-config.json"))
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}

	t.Run("GetModel returns default when empty", func(t *testing.T) {
		cm.SetConfig(&types.Config{OpenAIModel: ""})
		if cm.GetModel() != DefaultModel {
			t.Errorf("expected default model %s, got %s", DefaultModel, cm.GetModel())
		}
	})

	t.Run("GetModel returns configured value", func(t *testing.T) {
		cm.SetConfig(&types.Config{OpenAIModel: "gpt-3.5-turbo"})
		if cm.GetModel() != "gpt-3.5-turbo" {
			t.Errorf("expected 'gpt-3.5-turbo', got %s", cm.GetModel())
		}
	})

	t.Run("GetMaxBatchChars returns default when zero", func(t *testing.T) {
		cm.SetConfig(&types.Config{})
		if cm.GetMaxBatchChars() != DefaultMaxBatchChars {
			t.Errorf("expected %d, got %d", DefaultMaxBatchChars, cm.GetMaxBatchChars())
		}
	})

	t.Run("GetConcurrency returns default when zero", func(t *testing.T) {
		cm.SetConfig(&types.Config{})
		if cm.GetConcurrency() != DefaultConcurrency {
			t.Errorf("expected %d, got %d", DefaultConcurrency, cm.GetConcurrency())
		}
	})

	t.Run("GetRequestInterval converts milliseconds", func(t *testing.T) {
		cm.SetConfig(&types.Config{RequestIntervalMs: 250})
		if cm.GetRequestInterval() != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", cm.GetRequestInterval())
		}
	})

	t.Run("GetResultsDirectory returns configured value", func(t *testing.T) {
		cm.SetConfig(&types.Config{ResultsDirectory: "/custom/results"})
		if cm.GetResultsDirectory() != "/custom/results" {
			t.Errorf("expected '/custom/results', got %s", cm.GetResultsDirectory())
		}
	})

	t.Run("GetResultsDirectory falls back to home default", func(t *testing.T) {
		cm.SetConfig(&types.Config{})
		got := cm.GetResultsDirectory()
		if got == "" || filepath.Base(got) != DefaultResultsDirName {
			t.Errorf("expected default results dir under home, got %s", got)
		}
	})

	t.Run("GetWorkDirectory returns configured value", func(t *testing.T) {
		cm.SetConfig(&types.Config{WorkDirectory: "/custom/work"})
		if cm.GetWorkDirectory() != "/custom/work" {
			t.Errorf("expected '/custom/work', got %s", cm.GetWorkDirectory())
		}
	})

	t.Run("GetPDFFontName returns default when empty", func(t *testing.T) {
		cm.SetConfig(&types.Config{})
		if cm.GetPDFFontName() != DefaultPDFFontName {
			t.Errorf("expected %s, got %s", DefaultPDFFontName, cm.GetPDFFontName())
		}
	})

	t.Run("GetPDFFontName returns configured value", func(t *testing.T) {
		cm.SetConfig(&types.Config{PDFFontName: "NotoSansSC-Regular"})
		if cm.GetPDFFontName() != "NotoSansSC-Regular" {
			t.Errorf("expected 'NotoSansSC-Regular', got %s", cm.GetPDFFontName())
		}
	})
}

func TestConfigManager_Validate(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cm, err := NewConfigManager(filepath.Join(tmpDir, "test-config.json"))
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}

	t.Run("missing API key fails", func(t *testing.T) {
		originalEnv := os.Getenv(EnvOpenAIAPIKey)
		defer os.Setenv(EnvOpenAIAPIKey, originalEnv)
		os.Setenv(EnvOpenAIAPIKey, "")

		cm.SetConfig(&types.Config{OpenAIBaseURL: DefaultBaseURL, OpenAIModel: DefaultModel})

		err := cm.Validate()
		if err == nil {
			t.Fatal("expected validation error for missing API key")
		}
		appErr, ok := err.(*types.AppError)
		if !ok {
			t.Fatalf("expected *types.AppError, got %T", err)
		}
		if appErr.Code != types.ErrConfig {
			t.Errorf("expected code %s, got %s", types.ErrConfig, appErr.Code)
		}
	})

	t.Run("API key from env passes", func(t *testing.T) {
		originalEnv := os.Getenv(EnvOpenAIAPIKey)
		defer os.Setenv(EnvOpenAIAPIKey, originalEnv)
		os.Setenv(EnvOpenAIAPIKey, "env-key")

		cm.SetConfig(&types.Config{OpenAIBaseURL: DefaultBaseURL, OpenAIModel: DefaultModel})

		if err := cm.Validate(); err != nil {
			t.Errorf("expected validation to pass with env API key, got %v", err)
		}
	})

	t.Run("complete config passes", func(t *testing.T) {
		cm.SetConfig(&types.Config{
			OpenAIAPIKey:  "key",
			OpenAIBaseURL: DefaultBaseURL,
			OpenAIModel:   DefaultModel,
		})

		if err := cm.Validate(); err != nil {
			t.Errorf("expected validation to pass, got %v", err)
		}
	})
}

func TestConfigManager_SaveCreatesDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "nested", "dir", "config.json")

	cm, err := NewConfigManager(configPath)
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}

	if err := cm.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created in nested directory")
	}
}
