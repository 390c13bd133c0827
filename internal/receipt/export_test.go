package receipt

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("ExportVisitsXLSX", func() {
	var (
		db      *mockDB
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		db.visits["v1"] = &Visit{
			ID:         "v1",
			CafeName:   "카페 모모",
			VisitDate:  time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
			MenuItems:  "라떼: 5000원",
			TotalPrice: 5000,
			Rating:     4,
		}
		service = NewService(db, newMockScanner(), newMockStorage())
	})

	It("should write one row per visit under a header", func() {
		data, err := service.ExportVisitsXLSX()
		Expect(err).NotTo(HaveOccurred())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := f.GetRows(visitSheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0][0]).To(Equal("Visit Date"))
		Expect(rows[1][0]).To(Equal("2024-03-15 14:30"))
		Expect(rows[1][1]).To(Equal("카페 모모"))
		Expect(rows[1][3]).To(Equal("5000"))
	})
})
