package logging_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliadvertman/segctl/internal/logging"
)

func TestLogging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logging Suite")
}

var _ = Describe("Build", func() {
	It("defaults to info level and standard format", func() {
		cfg := logging.DefaultConfig()
		Expect(cfg.Level).To(Equal("info"))
		Expect(cfg.Format).To(Equal("standard"))
	})

	It("builds a usable logger for standard and json formats", func() {
		for _, format := range []string{"standard", "json"} {
			cfg := logging.DefaultConfig()
			cfg.Format = format
			log, err := logging.Build(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(func() { log.Info("hello", "format", format) }).NotTo(Panic())
		}
	})

	It("reports but does not fail on an unwritable log file", func() {
		cfg := logging.DefaultConfig()
		cfg.File = "/nonexistent-dir/does-not-exist/log.txt"
		_, err := logging.Build(cfg)
		Expect(err).To(HaveOccurred())
	})
})
