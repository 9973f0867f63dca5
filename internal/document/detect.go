package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"office-translator/internal/logger"
	"office-translator/internal/types"
)

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04} // "PK\x03\x04"
	pdfMagic = []byte("%PDF-")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Detect 根据文件名和内容识别文档格式。
// 扩展名只作为提示，最终以内容签名为准；识别不出或是旧版二进制
// Office 格式时返回 UNSUPPORTED_FORMAT。
func Detect(filename string, data []byte) (types.Format, error) {
	if len(data) == 0 {
		return types.FormatUnknown, types.NewAppErrorWithDetails(types.ErrInvalidInput,
			"文件内容为空", filename, nil)
	}

	hinted := formatForExtension(filepath.Ext(filename))

	detected, err := sniff(data)
	if err != nil {
		return types.FormatUnknown, err
	}
	if detected == types.FormatUnknown {
		return types.FormatUnknown, types.NewAppErrorWithDetails(types.ErrUnsupportedFormat,
			"无法识别的文件格式",
			fmt.Sprintf("%s，支持的格式：xlsx, docx, pptx, pdf", filename), nil)
	}

	if hinted != types.FormatUnknown && hinted != detected {
		logger.Warn("file extension does not match content, trusting content",
			logger.String("file", filename),
			logger.String("extension", string(hinted)),
			logger.String("content", string(detected)))
	}

	return detected, nil
}

// formatForExtension maps a file extension to the expected format.
func formatForExtension(ext string) types.Format {
	ext = strings.ToLower(ext)
	for _, f := range types.SupportedFormats() {
		for _, e := range f.Extensions() {
			if ext == e {
				return f
			}
		}
	}
	return types.FormatUnknown
}

// sniff identifies the format from the content signature alone.
func sniff(data []byte) (types.Format, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		return types.FormatPDF, nil
	}

	if bytes.HasPrefix(data, oleMagic) {
		// Legacy .xls/.doc/.ppt compound files are not supported
		return types.FormatUnknown, types.NewAppErrorWithDetails(types.ErrUnsupportedFormat,
			"不支持旧版二进制 Office 格式",
			"请先另存为 xlsx/docx/pptx 后再试", nil)
	}

	if !bytes.HasPrefix(data, zipMagic) {
		return types.FormatUnknown, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.FormatUnknown, types.NewAppError(types.ErrInvalidInput, "压缩包已损坏，无法读取", err)
	}

	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			return types.FormatDOCX, nil
		case "xl/workbook.xml":
			return types.FormatXLSX, nil
		case "ppt/presentation.xml":
			return types.FormatPPTX, nil
		}
	}

	return types.FormatUnknown, nil
}
