package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/cafe-diary/internal/receipt"
	"github.com/zombor/cafe-diary/internal/scanning"
)

// fixedRecognizer stands in for tesseract
type fixedRecognizer struct {
	text  string
	width int
}

func (f *fixedRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	f.width = img.Bounds().Dx()
	return f.text, nil
}

var _ = Describe("Integration", func() {
	var (
		db         receipt.DB
		store      receipt.Storage
		recognizer *fixedRecognizer
		server     *receipt.Server
		ghServer   *ghttp.Server
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = receipt.NewSQLiteDB(filepath.Join(tempDir, "cafe_diary.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = receipt.NewLocalStorage(filepath.Join(tempDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())

		recognizer = &fixedRecognizer{text: "영수증\nSTARBUCKS 강남점\n서울특별시 강남구 역삼동 823\n2024-03-15 14:30 결제완료\n아메리카노 4,500\n카페라떼 5,000\n합계 9,500\n"}
		service := receipt.NewService(db, scanning.NewOCR(recognizer), store)
		server = receipt.NewServer(service, receipt.BasicAuth{})

		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	It("should upload a receipt photo, read it, and record the visit", func() {
		ghServer.AppendHandlers(server.ServeHTTP)

		img := image.NewGray(image.Rect(0, 0, 1600, 2400))
		var photo bytes.Buffer
		Expect(png.Encode(&photo, img)).To(Succeed())

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("receipt", "영수증.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(photo.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest("POST", ghServer.URL()+"/api/receipts", body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var out struct {
			Receipt     receipt.Receipt `json:"receipt"`
			Visit       receipt.Visit   `json:"visit"`
			ReceiptInfo struct {
				DateTime string `json:"datetime"`
			} `json:"receipt_info"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())

		Expect(recognizer.width).To(Equal(1000))
		Expect(out.ReceiptInfo.DateTime).To(Equal("2024-03-15 14:30"))

		saved, err := db.GetReceipt(out.Receipt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.StoreName).To(Equal("STARBUCKS 강남점"))
		Expect(saved.TotalAmount).To(Equal(9500))
		Expect(saved.MenuItems).To(Equal([]receipt.MenuItem{
			{Name: "아메리카노", Price: 4500},
			{Name: "카페라떼", Price: 5000},
		}))

		_, err = store.Get(saved.Filename)
		Expect(err).NotTo(HaveOccurred())

		visit, err := db.GetVisit(out.Visit.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(visit.Location).To(Equal("서울특별시 강남구 역삼동"))
		Expect(visit.MenuItems).To(Equal("아메리카노: 4500원\n카페라떼: 5000원"))
	})
})
