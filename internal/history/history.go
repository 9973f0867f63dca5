// Package history keeps records of past translation runs so users can
// find, reopen and clean up previous outputs.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"office-translator/internal/logger"
	"office-translator/internal/types"
)

// RunStatus 一次运行的最终状态
type RunStatus string

const (
	// StatusCompleted 全部单元翻译成功
	StatusCompleted RunStatus = "completed"
	// StatusPartial 产出了文档，但有单元失败或被取消
	StatusPartial RunStatus = "partial"
	// StatusCancelled 用户取消，产出了部分翻译的文档
	StatusCancelled RunStatus = "cancelled"
	// StatusFailed 没有产出文档
	StatusFailed RunStatus = "failed"
)

// RunRecord 一次翻译运行的存档记录
type RunRecord struct {
	ID           string       `json:"id"`
	FileName     string       `json:"file_name"`
	Format       types.Format `json:"format"`
	Language     string       `json:"language"`
	Status       RunStatus    `json:"status"`
	Translated   int          `json:"translated"`
	Failed       int          `json:"failed"`
	Skipped      int          `json:"skipped"`
	OutputPath   string       `json:"output_path,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Manager 管理结果目录下的 history.json，所有方法并发安全
type Manager struct {
	mu      sync.Mutex
	baseDir string
	path    string
}

// NewManager creates a Manager rooted at baseDir. An empty baseDir falls
// back to ~/office-translator-results. The directory is created if missing.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, types.NewAppError(types.ErrConfig, "无法确定用户主目录", err)
		}
		baseDir = filepath.Join(homeDir, "office-translator-results")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "无法创建结果目录", err)
	}
	return &Manager{
		baseDir: baseDir,
		path:    filepath.Join(baseDir, "history.json"),
	}, nil
}

// BaseDir returns the directory translated documents are saved into.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Record 追加一条运行记录，ID 为空时自动生成
func (m *Manager) Record(rec *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	records := m.loadLocked()
	records = append(records, rec)
	return m.saveLocked(records)
}

// List 返回全部运行记录，最新的在前
func (m *Manager) List() ([]*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.loadLocked()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// Get 按 ID 查找记录
func (m *Manager) Get(id string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.loadLocked() {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound,
		"找不到对应的翻译记录", id, nil)
}

// Delete 删除记录，并清理结果目录内的输出文件。
// 结果目录之外的路径一律不动
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.loadLocked()
	kept := records[:0]
	var removed *RunRecord
	for _, rec := range records {
		if rec.ID == id {
			removed = rec
			continue
		}
		kept = append(kept, rec)
	}
	if removed == nil {
		return types.NewAppErrorWithDetails(types.ErrFileNotFound,
			"找不到对应的翻译记录", id, nil)
	}

	if removed.OutputPath != "" && m.insideBaseDir(removed.OutputPath) {
		if err := os.Remove(removed.OutputPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove output file",
				logger.String("path", removed.OutputPath),
				logger.Err(err))
		}
	}

	return m.saveLocked(kept)
}

func (m *Manager) insideBaseDir(path string) bool {
	rel, err := filepath.Rel(m.baseDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// loadLocked 读取 history.json，文件缺失或损坏时返回空列表
func (m *Manager) loadLocked() []*RunRecord {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to read history file", logger.Err(err))
		}
		return nil
	}

	var records []*RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("history file corrupted, starting fresh", logger.Err(err))
		return nil
	}
	return records
}

func (m *Manager) saveLocked(records []*RunRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "无法序列化翻译记录", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return types.NewAppError(types.ErrWrite, "无法写入翻译记录", err)
	}
	return nil
}
