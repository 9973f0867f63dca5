// Package docx implements translation unit extraction and write-back for
// WordprocessingML documents. Units are individual text runs so that inline
// formatting boundaries survive translation untouched.
package docx

import (
	"fmt"
	"strings"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/ooxml"
	"office-translator/internal/types"
)

const documentPart = "word/document.xml"

// Extractor 从 docx 文档中提取文本 run
type Extractor struct{}

// NewExtractor creates a docx Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract walks word/document.xml in document order, covering body text,
// table cells and text boxes alike. One unit per non-blank text run.
func (e *Extractor) Extract(data []byte) (*document.Extraction, error) {
	part, err := ooxml.ReadPart(data, documentPart)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtract, "无法读取 Word 文档正文", err)
	}

	spans, err := ooxml.ScanText(part, ooxml.NSWordMain)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtract, "Word 文档正文解析失败", err)
	}

	ex := &document.Extraction{}
	var id document.UnitID
	for _, span := range spans {
		if strings.TrimSpace(span.Text) == "" {
			continue
		}
		loc := spanLocation(span)
		if document.IsNumericOnly(span.Text) {
			ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "numeric-only"})
			continue
		}
		ex.Units = append(ex.Units, document.Unit{
			ID:         id,
			Location:   loc,
			SourceText: span.Text,
			Kind:       document.KindRun,
		})
		id++
	}

	logger.Debug("docx extraction complete",
		logger.Int("units", len(ex.Units)),
		logger.Int("skipped", len(ex.Skipped)))
	return ex, nil
}

// Writer 将译文写回 docx 工作副本
type Writer struct{}

// NewWriter creates a docx Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write re-scans the pristine original, verifies that each translated unit
// still matches its recorded source text, splices the translations into their
// runs and repackages the archive. Failed and skipped units keep the original
// text; mismatches degrade to a warning instead of failing the document.
func (w *Writer) Write(original []byte, units []document.Unit, outcomes map[document.UnitID]document.Outcome) ([]byte, []string, error) {
	part, err := ooxml.ReadPart(original, documentPart)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrWrite, "无法读取 Word 文档正文", err)
	}

	spans, err := ooxml.ScanText(part, ooxml.NSWordMain)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrWrite, "Word 文档正文解析失败", err)
	}

	byLocation := make(map[document.Location]int, len(spans))
	for i, span := range spans {
		byLocation[spanLocation(span)] = i
	}

	replacements := make(map[int]string)
	var warnings []string
	for _, u := range units {
		o, ok := outcomes[u.ID]
		if !ok || o.State != document.StateTranslated {
			continue
		}

		idx, ok := byLocation[u.Location]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("位置 %s 在文档中不存在，保留原文", u.Location))
			continue
		}
		if spans[idx].Text != u.SourceText {
			warnings = append(warnings, fmt.Sprintf("位置 %s 的内容与提取时不一致，保留原文", u.Location))
			continue
		}
		replacements[idx] = o.Text
	}

	if len(replacements) == 0 {
		out := make([]byte, len(original))
		copy(out, original)
		return out, warnings, nil
	}

	newPart, err := ooxml.Splice(part, spans, replacements)
	if err != nil {
		return nil, warnings, err
	}

	out, err := ooxml.Rewrite(original, map[string][]byte{documentPart: newPart})
	if err != nil {
		return nil, warnings, err
	}

	logger.Debug("docx write complete",
		logger.Int("translated", len(replacements)),
		logger.Int("warnings", len(warnings)))
	return out, warnings, nil
}

func spanLocation(span ooxml.TextSpan) document.Location {
	return document.Location(fmt.Sprintf("p%d.t%d", span.Para, span.Span))
}
