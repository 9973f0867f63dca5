package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"office-translator/internal/types"
)

// systemPrompt is the fixed contract of the JSON array protocol. The model
// must return an array of the same length so that segment boundaries survive
// the round trip.
const systemPrompt = `You are a professional translator for office documents.
You will receive a JSON array of text segments extracted from a document.
Translate every segment to the target language given in the task.

CRITICAL RULES:
1. Preserve special characters, tabs, newlines, bullet markers, unicode characters and numbers inside each segment.
2. Do not introduce extra newlines, spaces or tabs.
3. If a segment is programming code or a formula, return it unchanged.
4. The output must be a JSON array with exactly the same number of elements as the input, in the same order, preserving duplicate segments.
5. Return only the JSON array without explanations or markdown fences.`

// buildUserPrompt assembles the task message: target language, optional
// document context, the Japanese register instruction, and the input array.
func (c *Client) buildUserPrompt(texts []string, lang types.Language) (string, error) {
	payload, err := encodeInput(texts)
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "无法序列化翻译请求", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the following %d text segments to %s.\n", len(texts), lang)
	if c.fileDescription != "" {
		fmt.Fprintf(&sb, "The segments come from a document described as: %s\n", c.fileDescription)
	}
	if lang == types.LangJapanese {
		sb.WriteString("Translate into the dictionary form (plain form, 辞書形 - jishokei).\n")
	}
	sb.WriteString("Input JSON:\n")
	sb.Write(payload)
	return sb.String(), nil
}

// encodeInput marshals the segments without HTML escaping so the model sees
// the original characters.
func encodeInput(texts []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(texts); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// parseTranslations extracts the JSON string array from the model response.
// Markdown fences and surrounding prose are tolerated, a length differing
// from want is reported as a count mismatch for the caller to split on.
func parseTranslations(content string, want int) ([]string, error) {
	raw := stripCodeFence(content)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, types.NewAppErrorWithDetails(types.ErrTranslation,
			"响应中没有 JSON 数组", snippet(content), nil)
	}

	var out []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrTranslation,
			"无法解析翻译结果", snippet(content), err)
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w：期望 %d 个，实际 %d 个", errCountMismatch, want, len(out))
	}
	return out, nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// Drop the info string line, e.g. "json"
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	const max = 200
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var (
	newlineRuns = regexp.MustCompile(`\n+`)
	tabRuns     = regexp.MustCompile(`\t+`)
)

// PreprocessText 压缩连续的换行和制表符并去掉首尾空白，与缓存键保持一致
func PreprocessText(text string) string {
	text = newlineRuns.ReplaceAllString(text, "\n")
	text = tabRuns.ReplaceAllString(text, "\t")
	return strings.TrimSpace(text)
}
