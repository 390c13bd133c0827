package interpret

import (
	"regexp"
	"strings"
)

// skipKeywords mark receipt boilerplate. A line containing any of them is
// never a store name or a menu item.
var skipKeywords = []string{
	"합계", "부가세", "과세", "면세", "할인", "결제", "현금", "카드", "총액",
	"주문번호", "영수증", "점포", "지점", "매장", "전화", "주소", "Tel", "FAX",
	"사업자", "번호", "주문", "배달", "포장", "수량", "QTY", "단가",
}

// storePatterns match known café brands and generic "카페 X" / "COFFEE X" names.
var storePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)스타벅스|STARBUCKS`),
	regexp.MustCompile(`(?i)투썸플레이스|TWOSOME`),
	regexp.MustCompile(`(?i)이디야|EDIYA`),
	regexp.MustCompile(`(?i)커피빈|COFFEE\s*BEAN`),
	regexp.MustCompile(`(?i)할리스|HOLLYS`),
	regexp.MustCompile(`(?i)폴바셋|PAUL\s*BASSETT`),
	regexp.MustCompile(`(?i)카페\s*[가-힣a-zA-Z]+`),
	regexp.MustCompile(`(?i)커피\s*[가-힣a-zA-Z]+`),
	regexp.MustCompile(`(?i)CAFE\s*[가-힣a-zA-Z]+`),
	regexp.MustCompile(`(?i)COFFEE\s*[가-힣a-zA-Z]+`),
}

var (
	datePattern  = regexp.MustCompile(`\d{4}[-./]\d{2}[-./]\d{2}`)
	timePattern  = regexp.MustCompile(`\d{2}:\d{2}(?::\d{2})?`)
	pricePattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})*원?`)
	totalPattern = regexp.MustCompile(`(?i)합\s*계|총\s*액|결제금액|Total`)
)

var (
	dateSeparators = strings.NewReplacer(".", "-", "/", "-")
	priceMarkers   = strings.NewReplacer(",", "", "원", "")
)

func hasSkipKeyword(line string) bool {
	for _, kw := range skipKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

func matchesStorePattern(line string) bool {
	for _, p := range storePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
