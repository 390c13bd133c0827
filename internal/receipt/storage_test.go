package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = filepath.Join(GinkgoT().TempDir(), "receipts")
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the directory", func() {
		Expect(tmpDir).To(BeADirectory())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "r1_영수증.jpg"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, []byte("test file content"))
		})

		It("should save the file to disk", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(savedPath).To(Equal(filename))
			Expect(filepath.Join(tmpDir, filename)).To(BeAnExistingFile())
		})

		When("the name escapes the directory", func() {
			BeforeEach(func() {
				filename = "../escape.jpg"
			})

			It("returns an error", func() {
				Expect(err).To(HaveOccurred())
				Expect(filepath.Join(filepath.Dir(tmpDir), "escape.jpg")).NotTo(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "a.png"), []byte("png"), 0644)).To(Succeed())
		})

		It("should read the file", func() {
			data, err := storage.Get("a.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("png")))
		})

		It("returns an error for missing files", func() {
			_, err := storage.Get("missing.png")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "a.png"), []byte("png"), 0644)).To(Succeed())
		})

		It("should remove the file", func() {
			Expect(storage.Delete("a.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.png")).NotTo(BeAnExistingFile())
		})

		It("returns an error for missing files", func() {
			Expect(storage.Delete("missing.png")).NotTo(Succeed())
		})
	})
})
