package document

import (
	"strings"
	"unicode"
)

// IsNumericOnly 判断文本是否只包含数字和分隔符（如 "42"、"3.14"、"1,000"），
// 这类文本不需要翻译
func IsNumericOnly(s string) bool {
	hasDigit := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case r == '.' || r == ',' || r == '-' || r == '+' || r == '%' || r == ' ':
			// separators and signs
		default:
			return false
		}
	}
	return hasDigit
}
