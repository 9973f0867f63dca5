// Package document defines the format-agnostic translation unit model and the
// extractor/writer contract shared by all supported document formats.
package document

import (
	"fmt"

	"office-translator/internal/types"
)

// UnitID 翻译单元编号，按提取顺序递增，一次运行内唯一
type UnitID int

// Kind 翻译单元的种类
type Kind string

const (
	// KindCell 表格单元格文本
	KindCell Kind = "cell"
	// KindSheetName 工作表名称
	KindSheetName Kind = "sheet_name"
	// KindListItem 数据验证下拉列表项
	KindListItem Kind = "list_item"
	// KindRun Word 文档中的文本 run
	KindRun Kind = "run"
	// KindParagraph 演示文稿中的段落
	KindParagraph Kind = "paragraph"
	// KindBlock PDF 页面上的文本块
	KindBlock Kind = "block"
)

// Location 不透明的位置标识，由生成它的格式包负责解释。
// 同一次提取中每个单元的位置唯一，且能映射回原文档中唯一的可写位置。
type Location string

// Unit 一个可翻译单元
type Unit struct {
	ID         UnitID   `json:"id"`
	Location   Location `json:"location"`
	SourceText string   `json:"source_text"`
	Kind       Kind     `json:"kind"`
}

// State 单元翻译结果的状态
type State string

const (
	StatePending    State = "pending"
	StateTranslated State = "translated"
	StateFailed     State = "failed"
	StateSkipped    State = "skipped"
)

// Outcome 单元的最终结果。State 为 translated 时 Text 是译文，
// 为 failed 或 skipped 时 Reason 说明原因。
type Outcome struct {
	State  State  `json:"state"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Skip 提取阶段被有意排除的位置（公式单元格等），计入最终报告
type Skip struct {
	Location Location `json:"location"`
	Reason   string   `json:"reason"`
}

// Extraction 一次提取的完整结果
type Extraction struct {
	Units    []Unit   `json:"units"`
	Skipped  []Skip   `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

// Extractor 从原始文档字节中提取翻译单元。
// 提取是单线程的，对同一文档必须产生相同顺序的相同单元。
type Extractor interface {
	Extract(data []byte) (*Extraction, error)
}

// Writer 将翻译结果写入原文档的工作副本并返回新文档的字节。
// 原始字节永不被修改；failed 和 skipped 单元保留原文。
// 返回的字符串是写入阶段产生的警告。
type Writer interface {
	Write(original []byte, units []Unit, outcomes map[UnitID]Outcome) ([]byte, []string, error)
}

// OutcomeSet 记录一次运行中每个单元的结果，保证每个单元只落定一次
type OutcomeSet struct {
	order    []UnitID
	outcomes map[UnitID]Outcome
}

// NewOutcomeSet creates an OutcomeSet with every unit pending.
func NewOutcomeSet(units []Unit) *OutcomeSet {
	s := &OutcomeSet{
		order:    make([]UnitID, 0, len(units)),
		outcomes: make(map[UnitID]Outcome, len(units)),
	}
	for _, u := range units {
		s.order = append(s.order, u.ID)
		s.outcomes[u.ID] = Outcome{State: StatePending}
	}
	return s
}

// Resolve 将一个单元从 pending 落定为终态，重复落定或未知单元报错
func (s *OutcomeSet) Resolve(id UnitID, o Outcome) error {
	cur, ok := s.outcomes[id]
	if !ok {
		return types.NewAppErrorWithDetails(types.ErrInternal,
			"未知的翻译单元", fmt.Sprintf("unit %d", id), nil)
	}
	if cur.State != StatePending {
		return types.NewAppErrorWithDetails(types.ErrInternal,
			"翻译单元重复落定", fmt.Sprintf("unit %d already %s", id, cur.State), nil)
	}
	if o.State == StatePending {
		return types.NewAppErrorWithDetails(types.ErrInternal,
			"翻译单元不能落定为 pending", fmt.Sprintf("unit %d", id), nil)
	}
	s.outcomes[id] = o
	return nil
}

// Get returns the outcome for a unit.
func (s *OutcomeSet) Get(id UnitID) (Outcome, bool) {
	o, ok := s.outcomes[id]
	return o, ok
}

// Map returns the underlying outcome map keyed by unit ID.
func (s *OutcomeSet) Map() map[UnitID]Outcome {
	return s.outcomes
}

// Counts 按状态统计单元数
func (s *OutcomeSet) Counts() (translated, failed, skipped, pending int) {
	for _, o := range s.outcomes {
		switch o.State {
		case StateTranslated:
			translated++
		case StateFailed:
			failed++
		case StateSkipped:
			skipped++
		default:
			pending++
		}
	}
	return
}

// Pending returns the IDs still unresolved, in extraction order.
func (s *OutcomeSet) Pending() []UnitID {
	var ids []UnitID
	for _, id := range s.order {
		if s.outcomes[id].State == StatePending {
			ids = append(ids, id)
		}
	}
	return ids
}
