package scanning

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockRunner struct {
	name   string
	args   []string
	stdin  []byte
	stdout []byte
	stderr []byte
	err    error
}

func (m *mockRunner) Run(ctx context.Context, name string, stdin []byte, args ...string) ([]byte, []byte, error) {
	m.name = name
	m.args = args
	m.stdin = stdin
	return m.stdout, m.stderr, m.err
}

var _ = Describe("TesseractCLI", func() {
	var (
		runner *mockRunner
		tess   *TesseractCLI
		text   string
		err    error
	)

	BeforeEach(func() {
		runner = &mockRunner{stdout: []byte("스타벅스\n아메리카노 4,500\n")}
		tess = NewTesseractCLI("/usr/local/bin/tesseract", nil)
		tess.Runner = runner
	})

	JustBeforeEach(func() {
		text, err = tess.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	})

	It("should return the recognized text", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("스타벅스\n아메리카노 4,500\n"))
	})

	It("should run the configured binary with the default modes", func() {
		Expect(runner.name).To(Equal("/usr/local/bin/tesseract"))
		Expect(runner.args).To(Equal([]string{"stdin", "stdout", "-l", "kor+eng", "--oem", "3", "--psm", "6"}))
	})

	It("should pipe the image as PNG", func() {
		img, err := png.Decode(bytes.NewReader(runner.stdin))
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(4))
	})

	When("a tessdata directory is set", func() {
		BeforeEach(func() {
			tess.TessdataDir = "/opt/tessdata"
		})

		It("should pass it through", func() {
			Expect(runner.args).To(ContainElements("--tessdata-dir", "/opt/tessdata"))
		})
	})

	When("the binary fails", func() {
		BeforeEach(func() {
			runner.err = errors.New("exit status 1")
			runner.stderr = []byte("Failed loading language 'kor'")
		})

		It("returns the error with stderr", func() {
			Expect(err).To(MatchError(ContainSubstring("Failed loading language 'kor'")))
		})
	})
})

var _ = Describe("Gosseract", func() {
	It("should split the language list", func() {
		Expect(NewGosseract("").languages()).To(Equal([]string{"kor", "eng"}))
	})
})
