package interpret

import "regexp"

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`서울특별시\s+[\p{L}\p{N}_]+구\s+[\p{L}\p{N}_]+동`),
	regexp.MustCompile(`서울시\s+[\p{L}\p{N}_]+구\s+[\p{L}\p{N}_]+동`),
	regexp.MustCompile(`[\p{L}\p{N}_]+시\s+[\p{L}\p{N}_]+구\s+[\p{L}\p{N}_]+동`),
}

// ExtractLocation finds a "city district neighborhood" address in text,
// such as "서울시 마포구 서교동". It returns "" when there is none.
func ExtractLocation(text string) string {
	for _, p := range locationPatterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
