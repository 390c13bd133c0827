package scanning

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/cafe-diary/internal/interpret"
)

type mockRecognizer struct {
	text     string
	err      error
	received image.Image
	deadline bool
	canceled bool
}

func (m *mockRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	m.received = img
	_, m.deadline = ctx.Deadline()
	if err := ctx.Err(); err != nil {
		m.canceled = true
		return "", err
	}
	return m.text, m.err
}

func pngBytes(w, h int) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("OCR", func() {
	var (
		recognizer  *mockRecognizer
		scanner     *OCR
		imageData   []byte
		contentType string
		rec         *interpret.Record
		err         error
	)

	BeforeEach(func() {
		recognizer = &mockRecognizer{text: "카페 모모\r\n2024-03-15 14:30\n아메리카노\t４，５００\n카페라떼 5,000\n"}
		scanner = NewOCR(recognizer, WithOCRTimeout(5*time.Second))
		imageData = pngBytes(2400, 600)
		contentType = "image/png"
	})

	JustBeforeEach(func() {
		rec, err = scanner.ScanReceipt(imageData, contentType)
	})

	It("should interpret the recognized text", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.StoreName).To(Equal("카페 모모"))
		Expect(rec.MenuItems).To(Equal([]interpret.MenuItem{
			{Name: "아메리카노", Price: 4500},
			{Name: "카페라떼", Price: 5000},
		}))
		Expect(rec.TotalPrice).To(Equal(9500))
	})

	It("should hand the recognizer a normalized image", func() {
		Expect(recognizer.received.Bounds().Dx()).To(Equal(1000))
		Expect(recognizer.received.Bounds().Dy()).To(Equal(250))
	})

	It("should bound the recognizer call", func() {
		Expect(recognizer.deadline).To(BeTrue())
	})

	When("the recognizer fails", func() {
		BeforeEach(func() {
			recognizer.err = errors.New("tesseract not installed")
		})

		It("should return the fallback record", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.StoreName).To(Equal(interpret.UnknownStore))
			Expect(rec.TotalPrice).To(Equal(interpret.PlaceholderTotal))
			Expect(rec.Fallbacks.Has(interpret.Catastrophic)).To(BeTrue())
		})
	})

	When("the data is not an image", func() {
		BeforeEach(func() {
			imageData = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns an unsupported format error", func() {
			Expect(err).To(MatchError(ErrUnsupportedFormat))
			Expect(recognizer.received).To(BeNil())
		})
	})

	Describe("ScanReceiptContext", func() {
		It("should return the caller's cancellation instead of a fallback record", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			r, scanErr := scanner.ScanReceiptContext(ctx, imageData, contentType)
			Expect(scanErr).To(MatchError(context.Canceled))
			Expect(r).To(BeNil())
			Expect(recognizer.canceled).To(BeTrue())
		})

		It("should still fall back when only the recognizer times out", func() {
			recognizer.err = context.DeadlineExceeded

			r, scanErr := scanner.ScanReceiptContext(context.Background(), imageData, contentType)
			Expect(scanErr).NotTo(HaveOccurred())
			Expect(r.Fallbacks.Has(interpret.Catastrophic)).To(BeTrue())
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect HEIC brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00"))).To(BeTrue())
	})

	It("should reject other data", func() {
		Expect(isHEICFormat([]byte("\x89PNG\r\n\x1a\n0000"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})

var _ = Describe("normalizeMimeType", func() {
	It("should lowercase and drop parameters", func() {
		Expect(normalizeMimeType(" Image/JPEG; charset=binary")).To(Equal("image/jpeg"))
	})
})
