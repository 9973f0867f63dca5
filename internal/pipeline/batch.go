// Package pipeline drives one translation run end to end: detect the format,
// extract translation units, batch and dispatch them to the translation
// client, write the outcomes back and produce the final report. The pipeline
// is format-agnostic, everything format specific lives behind the document
// Extractor and Writer interfaces.
package pipeline

import (
	"unicode/utf8"

	"office-translator/internal/document"
)

const (
	// DefaultMaxBatchChars 单个批次的最大字符数，约 400 token
	DefaultMaxBatchChars = 1600
	// DefaultMaxBatchUnits 单个批次的最大单元数
	DefaultMaxBatchUnits = 50
)

// BatchLimits bounds the size of one translation batch.
type BatchLimits struct {
	MaxChars int
	MaxUnits int
}

func (l BatchLimits) withDefaults() BatchLimits {
	if l.MaxChars <= 0 {
		l.MaxChars = DefaultMaxBatchChars
	}
	if l.MaxUnits <= 0 {
		l.MaxUnits = DefaultMaxBatchUnits
	}
	return l
}

// Batch 一批按提取顺序相邻的待翻译单元
type Batch struct {
	Index int
	Units []document.Unit
}

// makeBatches 按提取顺序贪心打包，永不拆分单元。超过字符上限的单元独占
// 一个批次。所有批次单元 ID 连接起来等于输入顺序
func makeBatches(units []document.Unit, limits BatchLimits) []Batch {
	limits = limits.withDefaults()

	var batches []Batch
	var cur []document.Unit
	curChars := 0

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, Batch{Index: len(batches), Units: cur})
			cur = nil
			curChars = 0
		}
	}

	for _, u := range units {
		n := utf8.RuneCountInString(u.SourceText)
		if n >= limits.MaxChars {
			flush()
			batches = append(batches, Batch{Index: len(batches), Units: []document.Unit{u}})
			continue
		}
		if len(cur) >= limits.MaxUnits || curChars+n > limits.MaxChars {
			flush()
		}
		cur = append(cur, u)
		curChars += n
	}
	flush()

	return batches
}
