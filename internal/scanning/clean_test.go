package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = DescribeTable("CleanText",
	func(in, want string) {
		Expect(CleanText(in)).To(Equal(want))
	},
	Entry("empty", "", ""),
	Entry("CRLF line endings", "a\r\nb\rc", "a\nb\nc"),
	Entry("fullwidth digits and letters", "아메리카노 ４，５００", "아메리카노 4,500"),
	Entry("tabs and repeated spaces", "라떼\t\t5,000   원", "라떼 5,000 원"),
	Entry("separator rules", "STARBUCKS\n-----------\n라떼 5,000\n=====", "STARBUCKS\n\n라떼 5,000"),
	Entry("surrounding whitespace", "  \n카페 모모  \n", "카페 모모"),
)
