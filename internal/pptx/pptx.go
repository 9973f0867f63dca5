// Package pptx implements translation unit extraction and write-back for
// PresentationML documents. Units are whole paragraphs: text boxes, grouped
// shapes and tables all reduce to a:p elements inside each slide part, so one
// traversal covers them uniformly.
package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"office-translator/internal/document"
	"office-translator/internal/logger"
	"office-translator/internal/ooxml"
	"office-translator/internal/types"
)

const (
	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extractor 从 pptx 演示文稿中按放映顺序提取段落
type Extractor struct{}

// NewExtractor creates a pptx Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract walks the slides in presentation order and emits one unit per
// paragraph with non-blank text. A slide that fails to parse is reported as
// a warning and skipped so the rest of the deck still translates.
func (e *Extractor) Extract(data []byte) (*document.Extraction, error) {
	parts, err := slideParts(data)
	if err != nil {
		return nil, err
	}

	ex := &document.Extraction{}
	var id document.UnitID
	for si, partName := range parts {
		part, err := ooxml.ReadPart(data, partName)
		if err != nil {
			ex.Warnings = append(ex.Warnings, fmt.Sprintf("幻灯片 %d 读取失败，已跳过: %v", si+1, err))
			continue
		}

		spans, err := ooxml.ScanText(part, ooxml.NSDrawingMain)
		if err != nil {
			ex.Warnings = append(ex.Warnings, fmt.Sprintf("幻灯片 %d 解析失败，已跳过: %v", si+1, err))
			continue
		}

		for _, para := range groupParagraphs(spans) {
			if strings.TrimSpace(para.text) == "" {
				continue
			}
			loc := paragraphLocation(si+1, para.ordinal)
			if document.IsNumericOnly(para.text) {
				ex.Skipped = append(ex.Skipped, document.Skip{Location: loc, Reason: "numeric-only"})
				continue
			}
			ex.Units = append(ex.Units, document.Unit{
				ID:         id,
				Location:   loc,
				SourceText: para.text,
				Kind:       document.KindParagraph,
			})
			id++
		}
	}

	logger.Debug("pptx extraction complete",
		logger.Int("slides", len(parts)),
		logger.Int("units", len(ex.Units)),
		logger.Int("skipped", len(ex.Skipped)))
	return ex, nil
}

// Writer 将译文写回 pptx 工作副本
type Writer struct{}

// NewWriter creates a pptx Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write splices each translated paragraph into the first writable text span
// of that paragraph and empties the remaining spans, leaving paragraph and
// run properties untouched. Failed and skipped paragraphs keep the original.
func (w *Writer) Write(original []byte, units []document.Unit, outcomes map[document.UnitID]document.Outcome) ([]byte, []string, error) {
	parts, err := slideParts(original)
	if err != nil {
		return nil, nil, err
	}

	// Units grouped per slide ordinal
	bySlide := make(map[int][]document.Unit)
	var warnings []string
	for _, u := range units {
		o, ok := outcomes[u.ID]
		if !ok || o.State != document.StateTranslated {
			continue
		}
		slide, _, ok := parseLocation(u.Location)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("位置 %s 无法解析，保留原文", u.Location))
			continue
		}
		bySlide[slide] = append(bySlide[slide], u)
	}

	rewrites := make(map[string][]byte)
	for si, partName := range parts {
		slideUnits := bySlide[si+1]
		if len(slideUnits) == 0 {
			continue
		}

		part, err := ooxml.ReadPart(original, partName)
		if err != nil {
			return nil, warnings, types.NewAppErrorWithDetails(types.ErrWrite, "无法读取幻灯片", partName, err)
		}
		spans, err := ooxml.ScanText(part, ooxml.NSDrawingMain)
		if err != nil {
			return nil, warnings, types.NewAppErrorWithDetails(types.ErrWrite, "幻灯片解析失败", partName, err)
		}

		spanIdx := make(map[int][]int) // paragraph ordinal -> span indexes
		paraText := make(map[int]*strings.Builder)
		for i, s := range spans {
			spanIdx[s.Para] = append(spanIdx[s.Para], i)
			b, ok := paraText[s.Para]
			if !ok {
				b = &strings.Builder{}
				paraText[s.Para] = b
			}
			b.WriteString(s.Text)
		}

		replacements := make(map[int]string)
		for _, u := range slideUnits {
			_, para, _ := parseLocation(u.Location)
			b, ok := paraText[para]
			if !ok {
				warnings = append(warnings, fmt.Sprintf("位置 %s 在幻灯片中不存在，保留原文", u.Location))
				continue
			}
			if b.String() != u.SourceText {
				warnings = append(warnings, fmt.Sprintf("位置 %s 的内容与提取时不一致，保留原文", u.Location))
				continue
			}

			target := -1
			for _, i := range spanIdx[para] {
				if !spans[i].SelfClosed {
					target = i
					break
				}
			}
			if target < 0 {
				warnings = append(warnings, fmt.Sprintf("位置 %s 没有可写入的文本元素，保留原文", u.Location))
				continue
			}

			replacements[target] = outcomes[u.ID].Text
			for _, i := range spanIdx[para] {
				if i != target {
					replacements[i] = ""
				}
			}
		}

		if len(replacements) == 0 {
			continue
		}
		newPart, err := ooxml.Splice(part, spans, replacements)
		if err != nil {
			return nil, warnings, err
		}
		rewrites[partName] = newPart
	}

	if len(rewrites) == 0 {
		out := make([]byte, len(original))
		copy(out, original)
		return out, warnings, nil
	}

	out, err := ooxml.Rewrite(original, rewrites)
	if err != nil {
		return nil, warnings, err
	}

	logger.Debug("pptx write complete",
		logger.Int("slides", len(rewrites)),
		logger.Int("warnings", len(warnings)))
	return out, warnings, nil
}

type paragraph struct {
	ordinal int
	text    string
}

// groupParagraphs merges the spans of each paragraph in document order.
func groupParagraphs(spans []ooxml.TextSpan) []paragraph {
	var order []int
	texts := make(map[int]*strings.Builder)
	for _, s := range spans {
		b, ok := texts[s.Para]
		if !ok {
			b = &strings.Builder{}
			texts[s.Para] = b
			order = append(order, s.Para)
		}
		b.WriteString(s.Text)
	}

	paras := make([]paragraph, 0, len(order))
	for _, p := range order {
		paras = append(paras, paragraph{ordinal: p, text: texts[p].String()})
	}
	return paras
}

func paragraphLocation(slide, para int) document.Location {
	return document.Location(fmt.Sprintf("slide%d/p%d", slide, para))
}

func parseLocation(loc document.Location) (slide, para int, ok bool) {
	n, err := fmt.Sscanf(string(loc), "slide%d/p%d", &slide, &para)
	return slide, para, err == nil && n == 2
}

// slideParts 返回幻灯片部件名，按 presentation.xml 中的放映顺序排列；
// 关系解析失败时退回到按文件名数字排序
func slideParts(data []byte) ([]string, error) {
	pres, err := ooxml.ReadPart(data, presentationPart)
	if err != nil {
		return nil, types.NewAppError(types.ErrExtract, "无法读取演示文稿目录", err)
	}

	rels, err := ooxml.ReadPart(data, presentationRels)
	if err != nil {
		logger.Warn("presentation relationships missing, falling back to name order", logger.Err(err))
		return fallbackSlideParts(data)
	}

	targets, err := parseRelationships(rels)
	if err != nil {
		logger.Warn("presentation relationships unreadable, falling back to name order", logger.Err(err))
		return fallbackSlideParts(data)
	}

	ids, err := parseSlideIDList(pres)
	if err != nil {
		logger.Warn("slide id list unreadable, falling back to name order", logger.Err(err))
		return fallbackSlideParts(data)
	}

	var parts []string
	for _, rid := range ids {
		target, ok := targets[rid]
		if !ok {
			continue
		}
		parts = append(parts, resolveTarget(target))
	}
	if len(parts) == 0 && len(ids) > 0 {
		return fallbackSlideParts(data)
	}
	return parts, nil
}

func resolveTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join("ppt", target)
}

func parseRelationships(rels []byte) (map[string]string, error) {
	var doc struct {
		Rels []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(rels, &doc); err != nil {
		return nil, err
	}

	targets := make(map[string]string, len(doc.Rels))
	for _, r := range doc.Rels {
		targets[r.ID] = r.Target
	}
	return targets, nil
}

// parseSlideIDList returns the r:id references of p:sldId elements in order.
func parseSlideIDList(pres []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(pres))
	var ids []string
	inList := false

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == ooxml.NSPresentationMain && t.Name.Local == "sldIdLst" {
				inList = true
			}
			if inList && t.Name.Space == ooxml.NSPresentationMain && t.Name.Local == "sldId" {
				for _, attr := range t.Attr {
					if attr.Name.Space == ooxml.NSRelationships && attr.Name.Local == "id" {
						ids = append(ids, attr.Value)
					}
				}
			}
		case xml.EndElement:
			if t.Name.Space == ooxml.NSPresentationMain && t.Name.Local == "sldIdLst" {
				return ids, nil
			}
		}
	}
	return ids, nil
}

func fallbackSlideParts(data []byte) ([]string, error) {
	names, err := ooxml.PartNames(data, "ppt/slides/slide")
	if err != nil {
		return nil, types.NewAppError(types.ErrExtract, "无法列出幻灯片部件", err)
	}

	type numbered struct {
		name string
		num  int
	}
	var slides []numbered
	for _, name := range names {
		m := slidePartPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, numbered{name: name, num: n})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	parts := make([]string, len(slides))
	for i, s := range slides {
		parts[i] = s.name
	}
	return parts, nil
}
