// Package ooxml provides shared plumbing for the zip-based Office Open XML
// formats (docx, pptx): reading parts, locating text element content by byte
// range, splicing replacement text, and repackaging the archive while keeping
// every untouched entry byte-identical.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"office-translator/internal/types"
)

const (
	// NSWordMain is the WordprocessingML main namespace
	NSWordMain = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	// NSDrawingMain is the DrawingML main namespace used by presentation text
	NSDrawingMain = "http://schemas.openxmlformats.org/drawingml/2006/main"
	// NSPresentationMain is the PresentationML main namespace
	NSPresentationMain = "http://schemas.openxmlformats.org/presentationml/2006/main"
	// NSRelationships is the officeDocument relationships namespace
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// ReadPart returns the named part's bytes from an OOXML archive.
func ReadPart(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "压缩包已损坏，无法读取", err)
	}

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrExtract, "无法读取文档部件", name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrExtract, "无法读取文档部件", name, err)
		}
		return content, nil
	}

	return nil, types.NewAppErrorWithDetails(types.ErrExtract, "文档部件不存在", name, nil)
}

// PartNames returns archive entry names with the given prefix, sorted by name.
func PartNames(data []byte, prefix string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "压缩包已损坏，无法读取", err)
	}

	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Rewrite 重新打包 OOXML 文档：parts 中列出的部件用新内容替换，
// 其余条目按原始压缩字节逐一拷贝，保证未触碰的部件字节级不变。
func Rewrite(original []byte, parts map[string][]byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		return nil, types.NewAppError(types.ErrInvalidInput, "压缩包已损坏，无法读取", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	replaced := make(map[string]bool, len(parts))
	for _, f := range zr.File {
		content, ok := parts[f.Name]
		if !ok {
			// Raw copy keeps the compressed bytes of the entry intact
			if err := zw.Copy(f); err != nil {
				zw.Close()
				return nil, types.NewAppErrorWithDetails(types.ErrWrite, "无法复制文档部件", f.Name, err)
			}
			continue
		}

		hdr := f.FileHeader
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			zw.Close()
			return nil, types.NewAppErrorWithDetails(types.ErrWrite, "无法写入文档部件", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			zw.Close()
			return nil, types.NewAppErrorWithDetails(types.ErrWrite, "无法写入文档部件", f.Name, err)
		}
		replaced[f.Name] = true
	}

	for name := range parts {
		if !replaced[name] {
			zw.Close()
			return nil, types.NewAppErrorWithDetails(types.ErrWrite, "替换的部件在原文档中不存在", name, nil)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, types.NewAppError(types.ErrWrite, "无法完成文档打包", err)
	}
	return buf.Bytes(), nil
}

// TextSpan 一个文本元素（<w:t> 或 <a:t>）的内容及其在部件中的字节范围。
// Para 是该部件内段落的全局序号（按出现顺序，含嵌套），Span 是该段落内
// 文本元素的序号。Start 和 End 界定元素内容的原始字节；自闭合元素
// （<w:t/>）两者相等且 SelfClosed 为真，无法向其写入内容。
type TextSpan struct {
	Para       int
	Span       int
	Start      int64
	End        int64
	Text       string
	SelfClosed bool
}

// ScanText walks an OOXML part and returns one TextSpan per text element in
// document order. ns selects the namespace of the p/r/t elements to match
// (NSWordMain for docx parts, NSDrawingMain for slide parts).
func ScanText(part []byte, ns string) ([]TextSpan, error) {
	dec := xml.NewDecoder(bytes.NewReader(part))

	var (
		spans       []TextSpan
		paraStack   []int
		nextPara    int
		spansInPara = make(map[int]int)
		cur         *TextSpan
		curText     strings.Builder
	)

	for {
		prevOffset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrExtract, "文档 XML 解析失败", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != ns {
				continue
			}
			switch t.Name.Local {
			case "p":
				paraStack = append(paraStack, nextPara)
				nextPara++
			case "t":
				para := -1
				if len(paraStack) > 0 {
					para = paraStack[len(paraStack)-1]
				}
				cur = &TextSpan{
					Para:  para,
					Span:  spansInPara[para],
					Start: dec.InputOffset(),
				}
				spansInPara[para]++
				curText.Reset()
			}
		case xml.EndElement:
			if t.Name.Space != ns {
				continue
			}
			switch t.Name.Local {
			case "p":
				if len(paraStack) > 0 {
					paraStack = paraStack[:len(paraStack)-1]
				}
			case "t":
				if cur != nil {
					cur.End = prevOffset
					if cur.End <= cur.Start {
						cur.End = cur.Start
						cur.SelfClosed = bytes.HasSuffix(part[:cur.Start], []byte("/>"))
					}
					cur.Text = curText.String()
					spans = append(spans, *cur)
					cur = nil
				}
			}
		case xml.CharData:
			if cur != nil {
				curText.Write(t)
			}
		}
	}

	return spans, nil
}

// Splice 将 replacements 中指定的文本元素内容替换为新文本（按 XML 转义），
// 其余字节原样保留。键是 ScanText 返回的 span 下标。
func Splice(part []byte, spans []TextSpan, replacements map[int]string) ([]byte, error) {
	if len(replacements) == 0 {
		return part, nil
	}

	indexes := make([]int, 0, len(replacements))
	for i := range replacements {
		if i < 0 || i >= len(spans) {
			return nil, types.NewAppErrorWithDetails(types.ErrWrite,
				"替换位置越界", fmt.Sprintf("span %d of %d", i, len(spans)), nil)
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var out bytes.Buffer
	out.Grow(len(part))
	var prev int64

	for _, i := range indexes {
		span := spans[i]
		if span.Start < prev || span.End > int64(len(part)) || span.End < span.Start {
			return nil, types.NewAppErrorWithDetails(types.ErrWrite,
				"替换范围非法", fmt.Sprintf("span %d [%d,%d)", i, span.Start, span.End), nil)
		}
		// Splicing into a self-closed element would break its markup
		if span.SelfClosed && replacements[i] != "" {
			return nil, types.NewAppErrorWithDetails(types.ErrWrite,
				"无法向自闭合元素写入文本", fmt.Sprintf("span %d", i), nil)
		}

		out.Write(part[prev:span.Start])
		if err := xml.EscapeText(&out, []byte(replacements[i])); err != nil {
			return nil, types.NewAppError(types.ErrWrite, "文本转义失败", err)
		}
		prev = span.End
	}

	out.Write(part[prev:])
	return out.Bytes(), nil
}
