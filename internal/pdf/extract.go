// Package pdf implements translation unit extraction and write-back for PDF
// documents. Extraction merges the glyph runs of each text row into position
// sorted blocks, write-back covers the original block and stamps the
// translated text over it. PDF text is not reflowable, so the overlay shrinks
// the font when the translation runs wider than the original block.
package pdf

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/width"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/types"
)

// 同一行文本的 Y 坐标容差（PDF 坐标系原点在左下角）
const rowTolerance = 5.0

const defaultFontSize = 10.0

// block 是页面上的一个文本块，坐标为 PDF 用户空间
type block struct {
	page  int // 1-based
	index int // position within the page after sorting
	text  string
	x, y  float64 // bottom-left corner
	w, h  float64
	size  float64 // average font size of the merged runs
}

// Extractor 从 PDF 中按阅读顺序提取文本块
type Extractor struct{}

// NewExtractor creates a PDF Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract walks the pages in order and emits one unit per text block. Blocks
// holding only numbers or formula notation are recorded as skips so page
// numbers and math survive untouched. A PDF with no extractable text at all,
// typically a scanned document, fails with an extraction error.
func (e *Extractor) Extract(data []byte) (*document.Extraction, error) {
	blocks, warnings, err := extractBlocks(data)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrExtract,
			"PDF 中没有可提取的文本", "扫描产生的 PDF 需要先进行 OCR 处理", nil)
	}

	ex := &document.Extraction{Warnings: warnings}
	var id document.UnitID
	for _, b := range blocks {
		loc := blockLocation(b.page, b.index)
		if document.IsNumericOnly(b.text) {
			ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "numeric-only"})
			continue
		}
		if isFormulaBlock(b.text) {
			ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "formula"})
			continue
		}
		ex.Units = append(ex.Units, document.Unit{
			ID:         id,
			Location:   loc,
			SourceText: b.text,
			Kind:       document.KindBlock,
		})
		id++
	}

	logger.Debug("pdf extraction complete",
		logger.Int("blocks", len(blocks)),
		logger.Int("units", len(ex.Units)),
		logger.Int("skipped", len(ex.Skipped)))
	return ex, nil
}

// extractBlocks parses every page and returns the text blocks sorted by page,
// then top to bottom, then left to right. Pages that fail to parse are
// reported as warnings and skipped.
func extractBlocks(data []byte) ([]block, []string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrExtract, "无法打开 PDF 文件", err)
	}

	var blocks []block
	var warnings []string
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("第 %d 页解析失败，已跳过: %v", pageNum, err))
			continue
		}
		for _, row := range rows {
			if b, ok := mergeRow(row); ok {
				b.page = pageNum
				blocks = append(blocks, b)
			}
		}
	}

	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].page != blocks[j].page {
			return blocks[i].page < blocks[j].page
		}
		if math.Abs(blocks[i].y-blocks[j].y) < rowTolerance {
			return blocks[i].x < blocks[j].x
		}
		// Higher Y is higher on the page
		return blocks[i].y > blocks[j].y
	})

	idx, lastPage := 0, 0
	for i := range blocks {
		if blocks[i].page != lastPage {
			lastPage = blocks[i].page
			idx = 0
		}
		blocks[i].index = idx
		idx++
	}
	return blocks, warnings, nil
}

// mergeRow concatenates the glyph runs of one row into a block with the
// bounding box of the merged runs. Rows whose text turns out to be content
// stream code or mostly unprintable bytes are dropped.
func mergeRow(row *pdf.Row) (block, bool) {
	var sb strings.Builder
	var minX, maxX, minY, maxY, fontSum float64
	count := 0
	for _, t := range row.Content {
		if t.S == "" {
			continue
		}
		sb.WriteString(t.S)
		if count == 0 {
			minX, maxX, minY, maxY = t.X, t.X, t.Y, t.Y
		} else {
			minX = math.Min(minX, t.X)
			maxX = math.Max(maxX, t.X)
			minY = math.Min(minY, t.Y)
			maxY = math.Max(maxY, t.Y)
		}
		fontSum += t.FontSize
		count++
	}

	text := strings.TrimSpace(sb.String())
	if text == "" || isContentStreamCode(text) || hasExcessiveNonPrintable(text) {
		return block{}, false
	}

	size := fontSum / float64(count)
	if size <= 0 {
		size = defaultFontSize
	}
	w := maxX - minX + size
	if est := estimateStringWidth(text, size); est > w {
		w = est
	}
	return block{
		text: text,
		x:    minX,
		y:    minY,
		w:    w,
		h:    maxY - minY + size*1.2,
		size: size,
	}, true
}

func blockLocation(page, index int) document.Location {
	return document.Location(fmt.Sprintf("page%d/b%d", page, index))
}

// estimateStringWidth approximates the rendered width of text at the given
// font size. East Asian wide runes take a full em, everything else half,
// spaces a quarter.
func estimateStringWidth(text string, size float64) float64 {
	var w float64
	for _, r := range text {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += size
		default:
			if r == ' ' || r == '\t' {
				w += 0.25 * size
			} else {
				w += 0.5 * size
			}
		}
	}
	return w
}

var contentStreamOperators = []string{
	"currentpoint", "gsave", "grestore", "newpath", "closepath",
	"setrgbcolor", "setgray", "setlinewidth", "showpage",
	"moveto", "lineto", "curveto",
}

// isContentStreamCode reports whether text looks like PostScript or PDF
// operator code that leaked out of the content stream instead of real prose.
func isContentStreamCode(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "null def") ||
		strings.Contains(text, "@stx") || strings.Contains(text, "@etx") ||
		strings.Contains(lower, "/burl") {
		return true
	}
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	for _, op := range contentStreamOperators {
		if strings.Contains(lower, op) {
			return true
		}
	}

	// Dense runs of /Name tokens, URLs excluded
	if strings.Contains(lower, "http") || strings.Contains(text, "://") {
		return false
	}
	names := 0
	for _, f := range strings.Fields(text) {
		if len(f) > 1 && f[0] == '/' && isNameToken(f[1:]) {
			names++
		}
	}
	return names >= 3
}

func isNameToken(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '@':
		default:
			return false
		}
	}
	return true
}

// hasExcessiveNonPrintable reports whether more than a tenth of the runes are
// control characters.
func hasExcessiveNonPrintable(text string) bool {
	bad, total := 0, 0
	for _, r := range text {
		total++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7F && r <= 0x9F) {
			bad++
		}
	}
	return total > 0 && float64(bad)/float64(total) > 0.1
}

const mathSymbols = "∫∑∏√∂∇±×÷≤≥≠≈∞∈∉⊂⊃∪∩∧∨¬∀∃"

// isFormulaBlock reports whether text reads as mathematical notation rather
// than prose. Formulas keep their original form, translating them would
// destroy them.
func isFormulaBlock(text string) bool {
	if strings.ContainsAny(text, "∫∑∏√∂∇") {
		return true
	}
	if strings.Count(text, "_")+strings.Count(text, "^") > 2 && len(text) < 100 {
		return true
	}

	symbols, total := 0, 0
	for _, r := range text {
		total++
		switch {
		case strings.ContainsRune("+-*/=<>^_~()[]{}", r):
			symbols++
		case strings.ContainsRune(mathSymbols, r):
			symbols++
		case unicode.Is(unicode.Greek, r):
			symbols++
		}
	}
	return total > 0 && float64(symbols)/float64(total) > 0.3
}
