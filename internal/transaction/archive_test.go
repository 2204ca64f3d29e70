package transaction

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalArchive", func() {
	var (
		tmpDir  string
		archive Archive
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		archive, err = NewLocalArchive(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("writes the upload to disk and returns its name", func() {
			name, err := archive.Save("upload.png", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("upload.png"))

			data, err := os.ReadFile(filepath.Join(tmpDir, "upload.png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image bytes")))
		})
	})

	Describe("NewLocalArchive", func() {
		It("creates the archive directory if it does not exist", func() {
			nested := filepath.Join(tmpDir, "a", "b")
			_, err := NewLocalArchive(nested)
			Expect(err).NotTo(HaveOccurred())

			info, err := os.Stat(nested)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})
})
