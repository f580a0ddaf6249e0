package scheduler_test

import (
	"context"
	"os"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliadvertman/segctl/pkg/scheduler"
)

type fakeRunner struct {
	result scheduler.CommandResult
	err    error
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (scheduler.CommandResult, error) {
	f.calls = append(f.calls, name)
	return f.result, f.err
}

var _ = Describe("Client", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "scratch")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tmpDir)
	})

	Describe("Submit", func() {
		It("parses the job id and cleans up the scratch file", func() {
			runner := &fakeRunner{result: scheduler.CommandResult{Stdout: "Submitted batch job 4242\n", ExitCode: 0}}
			cfg := scheduler.DefaultConfig()
			cfg.ScratchDir = tmpDir
			client := scheduler.NewClient(cfg, runner, logr.Discard())

			id, err := client.Submit(context.Background(), "#!/bin/bash\necho hi\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("4242"))

			entries, err := os.ReadDir(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty(), "scratch file must be removed on every exit path")
		})

		It("fails when the job id cannot be parsed", func() {
			runner := &fakeRunner{result: scheduler.CommandResult{Stdout: "no id here", ExitCode: 0}}
			cfg := scheduler.DefaultConfig()
			cfg.ScratchDir = tmpDir
			client := scheduler.NewClient(cfg, runner, logr.Discard())

			_, err := client.Submit(context.Background(), "script")
			Expect(err).To(HaveOccurred())
		})

		It("fails when the command exits non-zero", func() {
			runner := &fakeRunner{result: scheduler.CommandResult{ExitCode: 1, Stderr: "sbatch: error"}}
			cfg := scheduler.DefaultConfig()
			cfg.ScratchDir = tmpDir
			client := scheduler.NewClient(cfg, runner, logr.Discard())

			_, err := client.Submit(context.Background(), "script")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Info", func() {
		It("treats a non-zero query exit as NotFound -> COMPLETED", func() {
			runner := &fakeRunner{result: scheduler.CommandResult{ExitCode: 1, Stderr: "Invalid job id specified"}}
			client := scheduler.NewClient(scheduler.DefaultConfig(), runner, logr.Discard())

			info, found, err := client.Info(context.Background(), "999")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(info.InternalStatus).To(Equal(scheduler.StatusCompleted))
			Expect(info.StartTime).To(BeNil())
			Expect(info.EndTime).NotTo(BeNil())
		})

		It("parses a successful RUNNING job", func() {
			runner := &fakeRunner{result: scheduler.CommandResult{
				Stdout:   "JobId=42 JobState=RUNNING StartTime=2025-09-13T12:14:02 EndTime=Unknown ExitCode=0:0 Reason=None",
				ExitCode: 0,
			}}
			client := scheduler.NewClient(scheduler.DefaultConfig(), runner, logr.Discard())

			info, found, err := client.Info(context.Background(), "42")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(info.InternalStatus).To(Equal(scheduler.StatusRunning))
			Expect(info.StartTime).NotTo(BeNil())
		})

		It("surfaces a transport error distinctly from NotFound", func() {
			runner := &fakeRunner{err: scheduler.ErrCommandNotFound}
			client := scheduler.NewClient(scheduler.DefaultConfig(), runner, logr.Discard())

			_, _, err := client.Info(context.Background(), "1")
			Expect(err).To(HaveOccurred())
		})
	})
})
