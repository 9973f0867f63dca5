package pipeline

import (
	"fmt"
	"sync"
	"time"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/types"
)

// Report 一次运行的最终报告，逐项列出未翻译的位置供用户复核
type Report struct {
	TotalUnits            int                 `json:"total_units"`
	Translated            int                 `json:"translated"`
	Failed                int                 `json:"failed"`
	Skipped               int                 `json:"skipped"`
	FailureReasons        map[string]int      `json:"failure_reasons,omitempty"`
	UntranslatedLocations []document.Location `json:"untranslated_locations,omitempty"`
	Warnings              []string            `json:"warnings,omitempty"`
	Duration              time.Duration       `json:"duration"`
}

// Reporter 汇总一次运行的单元结果并向调用方转发进度事件。
// OutcomeSet 本身不是并发安全的，所有访问都经过这里的互斥锁，
// 并发批次可以安全地同时落定各自的单元。
type Reporter struct {
	mu       sync.Mutex
	set      *document.OutcomeSet
	units    []document.Unit
	total    int
	started  time.Time
	warnings []string
	progress func(types.ProgressEvent)
}

// NewReporter creates a Reporter over the extracted units. The progress
// callback may be nil; it is invoked once per resolved batch.
func NewReporter(units []document.Unit, progress func(types.ProgressEvent)) *Reporter {
	return &Reporter{
		set:      document.NewOutcomeSet(units),
		units:    units,
		total:    len(units),
		started:  time.Now(),
		progress: progress,
	}
}

// Resolve 落定单个单元，不触发进度事件，供翻译前的跳过检查使用
func (r *Reporter) Resolve(id document.UnitID, o document.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveLocked(id, o)
}

// ResolveBatch 落定一个批次的全部单元并发出一次进度事件
func (r *Reporter) ResolveBatch(units []document.Unit, outcomes []document.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range units {
		r.resolveLocked(u.ID, outcomes[i])
	}
	r.emitLocked()
}

// FailBatch 将一个批次的全部单元落定为失败并发出一次进度事件
func (r *Reporter) FailBatch(units []document.Unit, reason string) {
	outcomes := make([]document.Outcome, len(units))
	for i := range outcomes {
		outcomes[i] = document.Outcome{State: document.StateFailed, Reason: reason}
	}
	r.ResolveBatch(units, outcomes)
}

func (r *Reporter) resolveLocked(id document.UnitID, o document.Outcome) {
	if err := r.set.Resolve(id, o); err != nil {
		// 每个单元只属于一个批次，重复落定说明调度有 bug
		logger.Error("failed to resolve translation unit", err,
			logger.Int("unit", int(id)))
	}
}

func (r *Reporter) emitLocked() {
	if r.progress == nil {
		return
	}
	translated, failed, skipped, _ := r.set.Counts()
	resolved := translated + failed + skipped
	r.progress(types.ProgressEvent{
		Phase:    types.PhaseTranslating,
		Resolved: resolved,
		Total:    r.total,
		Failed:   failed,
		Message:  fmt.Sprintf("已处理 %d/%d 个文本段", resolved, r.total),
	})
}

// Phase 对外通报一次阶段变化，Resolved/Total 沿用当前统计
func (r *Reporter) Phase(phase types.ProcessPhase, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		return
	}
	translated, failed, skipped, _ := r.set.Counts()
	r.progress(types.ProgressEvent{
		Phase:    phase,
		Resolved: translated + failed + skipped,
		Total:    r.total,
		Failed:   failed,
		Message:  message,
	})
}

// AddWarning 记录一条写入最终报告的警告
func (r *Reporter) AddWarning(w string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
}

// AddWarnings 批量记录警告
func (r *Reporter) AddWarnings(ws []string) {
	if len(ws) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, ws...)
}

// Outcomes returns the outcome map for the writer.
func (r *Reporter) Outcomes() map[document.UnitID]document.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.Map()
}

// TranslatedCount returns how many units resolved as translated so far.
func (r *Reporter) TranslatedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	translated, _, _, _ := r.set.Counts()
	return translated
}

// Finalize 生成最终报告。extractionSkips 是提取阶段就排除的位置
// （公式单元格等），计入 Skipped 总数
func (r *Reporter) Finalize(extractionSkips []document.Skip) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	translated, failed, skipped, pending := r.set.Counts()
	if pending > 0 {
		// 调度结束后不应再有 pending 单元
		logger.Warn("units left pending after dispatch", logger.Int("count", pending))
	}

	report := &Report{
		TotalUnits: r.total,
		Translated: translated,
		Failed:     failed,
		Skipped:    skipped + len(extractionSkips),
		Warnings:   r.warnings,
		Duration:   time.Since(r.started),
	}

	for _, u := range r.units {
		o, ok := r.set.Get(u.ID)
		if !ok || o.State != document.StateFailed {
			continue
		}
		report.UntranslatedLocations = append(report.UntranslatedLocations, u.Location)
		if report.FailureReasons == nil {
			report.FailureReasons = make(map[string]int)
		}
		report.FailureReasons[o.Reason]++
	}

	return report
}
