package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// describeDB runs the same behavior checks against every DB implementation
func describeDB(name string, open func(path string) (DB, error)) {
	Describe(name, func() {
		var (
			db  DB
			now time.Time
		)

		BeforeEach(func() {
			var err error
			db, err = open(filepath.Join(GinkgoT().TempDir(), "test.db"))
			Expect(err).NotTo(HaveOccurred())
			now = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
		})

		AfterEach(func() {
			Expect(db.Close()).To(Succeed())
		})

		newReceipt := func(id string, visit time.Time) *Receipt {
			return &Receipt{
				ID:          id,
				StoreName:   "스타벅스 강남점",
				VisitDate:   visit,
				TotalAmount: 9500,
				MenuItems:   []MenuItem{{Name: "아메리카노", Price: 4500}, {Name: "카페라떼", Price: 5000}},
				Filename:    id + "_receipt.jpg",
				ContentType: "image/jpeg",
				RawText:     "raw",
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		}

		Describe("receipts", func() {
			When("a receipt is saved", func() {
				BeforeEach(func() {
					Expect(db.SaveReceipt(newReceipt("r1", now))).To(Succeed())
				})

				It("should return it with its menu items in order", func() {
					got, err := db.GetReceipt("r1")
					Expect(err).NotTo(HaveOccurred())
					Expect(got.StoreName).To(Equal("스타벅스 강남점"))
					Expect(got.VisitDate.Equal(now)).To(BeTrue())
					Expect(got.TotalAmount).To(Equal(9500))
					Expect(got.MenuItems).To(Equal([]MenuItem{{Name: "아메리카노", Price: 4500}, {Name: "카페라떼", Price: 5000}}))
					Expect(got.Placeholder).To(BeFalse())
				})

				It("should replace the menu items on update", func() {
					r := newReceipt("r1", now)
					r.MenuItems = []MenuItem{{Name: "스콘", Price: 3500}}
					r.Placeholder = true
					Expect(db.SaveReceipt(r)).To(Succeed())

					got, err := db.GetReceipt("r1")
					Expect(err).NotTo(HaveOccurred())
					Expect(got.MenuItems).To(Equal([]MenuItem{{Name: "스콘", Price: 3500}}))
					Expect(got.Placeholder).To(BeTrue())
				})

				It("should delete it", func() {
					Expect(db.DeleteReceipt("r1")).To(Succeed())
					_, err := db.GetReceipt("r1")
					Expect(err).To(MatchError(ErrNotFound))
				})
			})

			It("should list receipts newest visit first", func() {
				Expect(db.SaveReceipt(newReceipt("old", now.Add(-48*time.Hour)))).To(Succeed())
				Expect(db.SaveReceipt(newReceipt("new", now))).To(Succeed())

				list, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(2))
				Expect(list[0].ID).To(Equal("new"))
				Expect(list[1].ID).To(Equal("old"))
				Expect(list[1].MenuItems).To(HaveLen(2))
			})

			It("should return an empty list", func() {
				list, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(list).NotTo(BeNil())
				Expect(list).To(BeEmpty())
			})

			It("should report missing receipts", func() {
				_, err := db.GetReceipt("missing")
				Expect(err).To(MatchError(ErrNotFound))
				Expect(db.DeleteReceipt("missing")).To(MatchError(ErrNotFound))
			})
		})

		Describe("visits", func() {
			newVisit := func(id string, visit time.Time) *Visit {
				return &Visit{
					ID:         id,
					ReceiptID:  "r1",
					CafeName:   "카페 모모",
					VisitDate:  visit,
					MenuItems:  "라떼: 5000원",
					TotalPrice: 5000,
					Location:   "서울시 마포구 서교동",
					Rating:     4,
					Comment:    "창가 자리",
					Latitude:   DefaultLatitude,
					Longitude:  DefaultLongitude,
					CreatedAt:  now,
					UpdatedAt:  now,
				}
			}

			It("should round-trip a visit", func() {
				Expect(db.SaveVisit(newVisit("v1", now))).To(Succeed())
				got, err := db.GetVisit("v1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.CafeName).To(Equal("카페 모모"))
				Expect(got.Rating).To(Equal(4))
				Expect(got.Latitude).To(Equal(DefaultLatitude))
				Expect(got.VisitDate.Equal(now)).To(BeTrue())
			})

			It("should overwrite on save", func() {
				v := newVisit("v1", now)
				Expect(db.SaveVisit(v)).To(Succeed())
				v.Comment = "다시 방문"
				Expect(db.SaveVisit(v)).To(Succeed())

				list, err := db.ListVisits()
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(1))
				Expect(list[0].Comment).To(Equal("다시 방문"))
			})

			It("should list visits newest first", func() {
				Expect(db.SaveVisit(newVisit("a", now.Add(-time.Hour)))).To(Succeed())
				Expect(db.SaveVisit(newVisit("b", now))).To(Succeed())
				list, err := db.ListVisits()
				Expect(err).NotTo(HaveOccurred())
				Expect(list[0].ID).To(Equal("b"))
			})

			It("should delete visits", func() {
				Expect(db.SaveVisit(newVisit("v1", now))).To(Succeed())
				Expect(db.DeleteVisit("v1")).To(Succeed())
				_, err := db.GetVisit("v1")
				Expect(err).To(MatchError(ErrNotFound))
				Expect(db.DeleteVisit("v1")).To(MatchError(ErrNotFound))
			})
		})
	})
}

var _ = Describe("DB", func() {
	describeDB("BoltDB", func(path string) (DB, error) { return NewBoltDB(path) })
	describeDB("SQLiteDB", func(path string) (DB, error) { return NewSQLiteDB(path) })
})
