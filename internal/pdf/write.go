package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/types"
)

// 覆盖层字号下限，再小就不可读了
const minOverlayFontSize = 6.0

// Helvetica 空格宽度约为 0.278 em
const spaceWidthFactor = 0.278

// Writer 将译文以覆盖层方式写回 PDF：先用白色矩形盖住原文块，再把译文
// 印在相同位置
type Writer struct {
	fontName string
	conf     *model.Configuration
}

// NewWriter creates a PDF Writer that stamps translations in the given font.
// The built-in Helvetica only covers Latin scripts, CJK targets need a user
// font installed into pdfcpu.
func NewWriter(fontName string) *Writer {
	if fontName == "" {
		fontName = "Helvetica"
	}
	return &Writer{
		fontName: fontName,
		conf:     model.NewDefaultConfiguration(),
	}
}

// Write re-parses the pristine original, then applies one cover stamp and one
// text stamp per translated block in a single pass. Blocks whose outcome is
// failed or skipped are left untouched, so the original text stays visible
// for them.
func (w *Writer) Write(original []byte, units []document.Unit, outcomes map[document.UnitID]document.Outcome) ([]byte, []string, error) {
	blocks, _, err := extractBlocks(original)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrWrite, "无法重新解析 PDF", err)
	}
	byLocation := make(map[document.Location]block, len(blocks))
	for _, b := range blocks {
		byLocation[blockLocation(b.page, b.index)] = b
	}

	var warnings []string
	overlays := make(map[int][]*model.Watermark)
	stamped := 0
	for _, u := range units {
		o, ok := outcomes[u.ID]
		if !ok || o.State != document.StateTranslated {
			continue
		}
		b, ok := byLocation[u.Location]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("位置 %s 在文档中不存在，保留原文", u.Location))
			continue
		}
		if b.text != u.SourceText {
			warnings = append(warnings, fmt.Sprintf("位置 %s 的内容与提取时不一致，保留原文", u.Location))
			continue
		}
		text := prepareOverlayText(o.Text)
		if text == "" {
			continue
		}

		cover, err := w.coverWatermark(b)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("位置 %s 覆盖层创建失败，保留原文: %v", u.Location, err))
			continue
		}
		stamp, err := w.textWatermark(text, b)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("位置 %s 文本层创建失败，保留原文: %v", u.Location, err))
			continue
		}
		overlays[b.page] = append(overlays[b.page], cover, stamp)
		stamped++
	}

	if stamped == 0 {
		out := make([]byte, len(original))
		copy(out, original)
		return out, warnings, nil
	}

	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(original), &buf, overlays, w.conf); err != nil {
		return nil, warnings, types.NewAppError(types.ErrWrite, "无法写入 PDF 覆盖层", err)
	}

	logger.Debug("pdf write complete",
		logger.Int("blocks", stamped),
		logger.Int("pages", len(overlays)),
		logger.Int("warnings", len(warnings)))
	return buf.Bytes(), warnings, nil
}

// coverWatermark paints a white box over the original block: a run of spaces
// wide enough to span the block, stamped with a white background. Text
// watermarks size their box from the text, so the run length controls the
// covered width and the font size controls the covered height.
func (w *Writer) coverWatermark(b block) (*model.Watermark, error) {
	size := b.h / 1.2
	if size < minOverlayFontSize {
		size = minOverlayFontSize
	}
	count := int(math.Ceil(b.w/(spaceWidthFactor*size))) + 2
	desc := fmt.Sprintf(
		"fontname:Helvetica, points:%d, scalefactor:1 abs, position:bl, offset:%.2f %.2f, fillcolor:#ffffff, bgcolor:#ffffff, rotation:0, opacity:1",
		int(size), b.x, b.y)
	return api.TextWatermark(strings.Repeat(" ", count), desc, true, false, 0)
}

// textWatermark stamps the translated text at the block position, shrinking
// the font until it fits the width of the original block.
func (w *Writer) textWatermark(text string, b block) (*model.Watermark, error) {
	size := fitFontSize(text, b.size, b.w)
	desc := fmt.Sprintf(
		"fontname:%s, points:%d, scalefactor:1 abs, position:bl, offset:%.2f %.2f, fillcolor:#000000, rotation:0, opacity:1",
		w.fontName, int(size), b.x, b.y)
	return api.TextWatermark(text, desc, true, false, 0)
}

// prepareOverlayText flattens the translation to a single line. pdfcpu treats
// newlines as line breaks, which would render outside the covered block.
func prepareOverlayText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\n", " ")
	return text
}

// fitFontSize shrinks the font until the translation fits the width of the
// original block, bottoming out at the overlay minimum. Text still wider at
// the minimum overflows to the right rather than being dropped.
func fitFontSize(text string, size, maxWidth float64) float64 {
	if size <= 0 {
		size = defaultFontSize
	}
	if maxWidth <= 0 || text == "" {
		return size
	}
	w := estimateStringWidth(text, size)
	if w <= maxWidth {
		return size
	}
	scaled := size * maxWidth / w
	if scaled < minOverlayFontSize {
		return minOverlayFontSize
	}
	return scaled
}
