// Package xlsx implements translation unit extraction and write-back for
// SpreadsheetML workbooks. Cell text lives in a shared string table where a
// single entry may back many cells, so this package goes through excelize
// instead of splicing raw XML parts: the library keeps styles, merges and
// the rest of the workbook intact while individual cells are rewritten.
package xlsx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/types"
)

// Excel 限制工作表名最长 31 个字符
const maxSheetNameLength = 31

// Extractor 从 xlsx 工作簿中提取单元格文本、下拉列表项与工作表名
type Extractor struct{}

// NewExtractor creates an xlsx Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract opens the workbook and emits units for cell text, inline dropdown
// items and sheet names, in workbook order. Formula cells and numeric-only
// text are recorded as skips, typed numbers, booleans and dates are not text
// and never become units. A sheet that fails to read is reported as a
// warning so the rest of the workbook still translates.
func (e *Extractor) Extract(data []byte) (*document.Extraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewAppError(types.ErrExtract, "无法打开工作簿", err)
	}
	defer f.Close()

	ex := &document.Extraction{}
	var id document.UnitID
	add := func(loc document.Location, text string, kind document.Kind) {
		ex.Units = append(ex.Units, document.Unit{ID: id, Location: loc, SourceText: text, Kind: kind})
		id++
	}

	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			ex.Warnings = append(ex.Warnings, fmt.Sprintf("工作表 %s 读取失败，已跳过: %v", sheet, err))
			continue
		}
		for r, row := range rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					continue
				}
				loc := cellLocation(sheet, cell)

				// Formula cells keep their formula, including string
				// values that merely look like one
				formula, _ := f.GetCellFormula(sheet, cell)
				if formula != "" || strings.HasPrefix(value, "=") {
					ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "formula"})
					continue
				}
				if strings.TrimSpace(value) == "" {
					continue
				}
				if ct, _ := f.GetCellType(sheet, cell); !isTextCell(ct) {
					continue
				}
				if document.IsNumericOnly(value) {
					ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "numeric-only"})
					continue
				}
				add(loc, value, document.KindCell)
			}
		}

		dvs, err := f.GetDataValidations(sheet)
		if err != nil {
			ex.Warnings = append(ex.Warnings, fmt.Sprintf("工作表 %s 的数据验证读取失败: %v", sheet, err))
			continue
		}
		for _, dv := range dvs {
			for i, item := range dropListItems(dv) {
				add(dropLocation(sheet, dv.Sqref, i), item, document.KindListItem)
			}
		}
	}

	for i, sheet := range sheets {
		loc := sheetLocation(i)
		if document.IsNumericOnly(sheet) {
			ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "numeric-only"})
			continue
		}
		add(loc, sheet, document.KindSheetName)
	}

	logger.Debug("xlsx extraction complete",
		logger.Int("sheets", len(sheets)),
		logger.Int("units", len(ex.Units)),
		logger.Int("skipped", len(ex.Skipped)))
	return ex, nil
}

// Writer 将译文写回 xlsx 工作簿
type Writer struct{}

// NewWriter creates an xlsx Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write opens a fresh copy of the original workbook and applies translated
// cells, dropdown lists and sheet names. Dropdowns are rebuilt only when
// every item of the list translated, sheet renames run last so cell
// locations stay valid throughout, and anything that cannot be applied is
// reported as a warning while the rest of the workbook is still produced.
func (w *Writer) Write(original []byte, units []document.Unit, outcomes map[document.UnitID]document.Outcome) ([]byte, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(original))
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrWrite, "无法打开工作簿", err)
	}
	defer f.Close()

	var warnings []string
	resolved := func(u document.Unit) (string, bool) {
		o, ok := outcomes[u.ID]
		if !ok || o.State != document.StateTranslated {
			return "", false
		}
		return o.Text, true
	}

	type dropKey struct{ sheet, sqref string }
	type dropdown struct {
		items []string
		texts map[int]string
	}
	drops := make(map[dropKey]*dropdown)
	var dropOrder []dropKey
	type renameOp struct {
		index int
		text  string
	}
	var renames []renameOp

	for _, u := range units {
		switch u.Kind {
		case document.KindCell:
			text, ok := resolved(u)
			if !ok {
				continue
			}
			sheet, cell, ok := parseCellLocation(u.Location)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("位置 %s 无法解析，保留原文", u.Location))
				continue
			}
			current, _ := f.GetCellValue(sheet, cell)
			if current != u.SourceText {
				warnings = append(warnings, fmt.Sprintf("位置 %s 的内容与提取时不一致，保留原文", u.Location))
				continue
			}
			if err := f.SetCellStr(sheet, cell, text); err != nil {
				warnings = append(warnings, fmt.Sprintf("位置 %s 写入失败，保留原文: %v", u.Location, err))
			}

		case document.KindListItem:
			sheet, sqref, idx, ok := parseDropLocation(u.Location)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("位置 %s 无法解析，保留原文", u.Location))
				continue
			}
			k := dropKey{sheet: sheet, sqref: sqref}
			d := drops[k]
			if d == nil {
				d = &dropdown{texts: make(map[int]string)}
				drops[k] = d
				dropOrder = append(dropOrder, k)
			}
			for len(d.items) <= idx {
				d.items = append(d.items, "")
			}
			d.items[idx] = u.SourceText
			if text, ok := resolved(u); ok {
				d.texts[idx] = text
			}

		case document.KindSheetName:
			text, ok := resolved(u)
			if !ok {
				continue
			}
			idx, ok := parseSheetLocation(u.Location)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("位置 %s 无法解析，保留原文", u.Location))
				continue
			}
			renames = append(renames, renameOp{index: idx, text: text})
		}
	}

	for _, k := range dropOrder {
		d := drops[k]
		if len(d.texts) == 0 {
			continue
		}
		if len(d.texts) != len(d.items) {
			warnings = append(warnings, fmt.Sprintf("下拉列表 %s!%s 仅部分翻译，保留原文", k.sheet, k.sqref))
			continue
		}
		if err := w.rebuildDropdown(f, k.sheet, k.sqref, d.items, d.texts); err != nil {
			warnings = append(warnings, fmt.Sprintf("下拉列表 %s!%s 写入失败，保留原文: %v", k.sheet, k.sqref, err))
		}
	}

	// Renames run last against the workbook's original sheet order
	names := f.GetSheetList()
	for _, op := range renames {
		if op.index < 0 || op.index >= len(names) {
			warnings = append(warnings, fmt.Sprintf("工作表序号 %d 不存在，保留原名", op.index))
			continue
		}
		candidate := sanitizeSheetName(op.text)
		if candidate == "" {
			warnings = append(warnings, fmt.Sprintf("工作表 %s 的译名无效，保留原名", names[op.index]))
			continue
		}
		if strings.EqualFold(candidate, names[op.index]) {
			continue
		}
		candidate = uniqueSheetName(candidate, op.index, names)
		if err := f.SetSheetName(names[op.index], candidate); err != nil {
			warnings = append(warnings, fmt.Sprintf("工作表 %s 重命名失败，保留原名: %v", names[op.index], err))
			continue
		}
		names[op.index] = candidate
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, warnings, types.NewAppError(types.ErrWrite, "无法保存工作簿", err)
	}

	logger.Debug("xlsx write complete",
		logger.Int("renames", len(renames)),
		logger.Int("warnings", len(warnings)))
	return buf.Bytes(), warnings, nil
}

// rebuildDropdown replaces the inline list of the validation rule at sqref
// with the translated items.
func (w *Writer) rebuildDropdown(f *excelize.File, sheet, sqref string, items []string, texts map[int]string) error {
	dvs, err := f.GetDataValidations(sheet)
	if err != nil {
		return err
	}
	var target *excelize.DataValidation
	for _, dv := range dvs {
		if dv.Type == "list" && dv.Sqref == sqref {
			target = dv
			break
		}
	}
	if target == nil {
		return fmt.Errorf("validation rule not found")
	}

	translated := make([]string, len(items))
	for i := range items {
		// Inline lists have no escape for the item separator
		translated[i] = strings.ReplaceAll(texts[i], ",", " ")
	}

	ndv := excelize.NewDataValidation(target.AllowBlank)
	ndv.Sqref = target.Sqref
	ndv.ShowDropDown = target.ShowDropDown
	ndv.ShowErrorMessage = target.ShowErrorMessage
	ndv.ShowInputMessage = target.ShowInputMessage
	ndv.Error = target.Error
	ndv.ErrorTitle = target.ErrorTitle
	ndv.Prompt = target.Prompt
	ndv.PromptTitle = target.PromptTitle
	if err := ndv.SetDropList(translated); err != nil {
		return err
	}
	if err := f.DeleteDataValidation(sheet, sqref); err != nil {
		return err
	}
	return f.AddDataValidation(sheet, ndv)
}

func isTextCell(ct excelize.CellType) bool {
	return ct == excelize.CellTypeSharedString || ct == excelize.CellTypeInlineString
}

// dropListItems returns the items of an inline list validation. Rules that
// source their list from a cell range return nothing, those cells translate
// on their own.
func dropListItems(dv *excelize.DataValidation) []string {
	if dv.Type != "list" {
		return nil
	}
	formula := strings.TrimSpace(dv.Formula1)
	if !strings.HasPrefix(formula, `"`) || !strings.HasSuffix(formula, `"`) || len(formula) < 2 {
		return nil
	}
	var items []string
	for _, item := range strings.Split(strings.Trim(formula, `"`), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func cellLocation(sheet, cell string) document.Location {
	return document.Location(sheet + "!" + cell)
}

func parseCellLocation(loc document.Location) (sheet, cell string, ok bool) {
	s := string(loc)
	i := strings.LastIndex(s, "!")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func dropLocation(sheet, sqref string, item int) document.Location {
	return document.Location(fmt.Sprintf("%s!%s#%d", sheet, sqref, item))
}

func parseDropLocation(loc document.Location) (sheet, sqref string, item int, ok bool) {
	s := string(loc)
	hash := strings.LastIndex(s, "#")
	if hash < 0 {
		return "", "", 0, false
	}
	item, err := strconv.Atoi(s[hash+1:])
	if err != nil || item < 0 {
		return "", "", 0, false
	}
	s = s[:hash]
	bang := strings.LastIndex(s, "!")
	if bang <= 0 || bang == len(s)-1 {
		return "", "", 0, false
	}
	return s[:bang], s[bang+1:], item, true
}

func sheetLocation(index int) document.Location {
	return document.Location(fmt.Sprintf("sheet:%d", index))
}

func parseSheetLocation(loc document.Location) (int, bool) {
	s := strings.TrimPrefix(string(loc), "sheet:")
	if s == string(loc) {
		return 0, false
	}
	idx, err := strconv.Atoi(s)
	return idx, err == nil
}

// sanitizeSheetName rewrites a translated name into something Excel accepts:
// the runes : \ / ? * [ ] become spaces and the result is clamped to 31
// characters.
func sanitizeSheetName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(strings.TrimSpace(b.String()), "'")
	if utf8.RuneCountInString(out) > maxSheetNameLength {
		runes := []rune(out)
		out = strings.TrimSpace(string(runes[:maxSheetNameLength]))
	}
	return out
}

// uniqueSheetName appends a numeric suffix until the candidate collides with
// no other sheet. Excel compares names case-insensitively.
func uniqueSheetName(candidate string, self int, names []string) string {
	taken := func(name string) bool {
		for i, n := range names {
			if i != self && strings.EqualFold(n, name) {
				return true
			}
		}
		return false
	}
	if !taken(candidate) {
		return candidate
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := candidate
		if utf8.RuneCountInString(base)+len(suffix) > maxSheetNameLength {
			runes := []rune(base)
			base = strings.TrimSpace(string(runes[:maxSheetNameLength-len(suffix)]))
		}
		name := base + suffix
		if !taken(name) {
			return name
		}
	}
}
