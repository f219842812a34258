package suite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/diagnostics"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/recovery"
)

// Attachment names added by the after-test hook.
const (
	AttachmentPayload     = "after test payload"
	AttachmentFailureMeta = "failure meta"
	AttachmentFilteredLog = "app logs (filtered)"
	AttachmentLogcatPass  = "logcat (pass tail 200)"
	AttachmentLogcatFail  = "logcat (tail 500)"
	AttachmentMeminfo     = "dumpsys meminfo (partial)"
)

// beforeTest recovers from a previous failure and prepares log capture.
// Nothing here can fail the test.
func (s *Suite) beforeTest(ctx context.Context) *recovery.Outcome {
	var outcome *recovery.Outcome
	if s.deps.Recoverer != nil {
		logger.Info("[suite] before test: previousTestFailed=%t", s.deps.Flags.PreviousTestFailed())
		o := s.deps.Recoverer.EnsureClean(ctx)
		outcome = &o
		if o.Skipped == "" {
			logger.Info("[suite] recovery %s -> %s via %s in %s", o.From, o.To, o.Strategy, o.Duration)
		}
	}

	art := s.opts.Config.Artifacts
	if art.ClearLogcat {
		if s.deps.Device == nil {
			logger.Warn("[suite] no adb device, logcat not cleared")
		} else if err := s.deps.Device.ClearLogcat(ctx); err != nil {
			logger.Warn("[suite] clear logcat: %v", err)
		}
	}

	s.recording = false
	if art.Video {
		if err := s.deps.Session.StartRecording(); err != nil {
			logger.Warn("[suite] start screen recording: %v", err)
		} else {
			s.recording = true
		}
	}
	return outcome
}

// afterTest records the result in the run flags and attaches whatever
// artifacts the configuration asks for. Artifact failures are logged and
// never change the test's status.
func (s *Suite) afterTest(ctx context.Context, name string, status core.TestStatus, testErr error) {
	passed := status == core.StatusPassed
	s.deps.Flags.MarkTestResult(passed)

	sink := s.deps.Reporter
	art := s.opts.Config.Artifacts
	pkg := s.opts.Config.AppPackage

	s.attachPayload(name, passed, testErr)
	logger.Info("[suite] after test %q passed=%t error=%v", name, passed, errText(testErr))

	var video []byte
	if s.recording {
		v, err := s.deps.Session.StopRecording()
		if err != nil {
			logger.Warn("[suite] stop screen recording: %v", err)
		}
		video = v
		s.recording = false
	}

	if art.Screenshot && art.ShouldCapture(status) {
		if png, err := s.deps.Session.Screenshot(); err != nil {
			logger.Warn("[suite] screenshot: %v", err)
		} else {
			sink.Attach(core.AttachmentScreenshot, core.ContentTypePNG, png)
		}
	}

	if !passed {
		meta := fmt.Sprintf("Test failed: %s\nError: %s\n", name, errText(testErr))
		sink.Attach(AttachmentFailureMeta, core.ContentTypeText, []byte(meta))

		if art.EnhancedDebug {
			s.attachDiagnostics(ctx, name, testErr)
		}
		if len(video) > 0 {
			sink.Attach(core.AttachmentVideo, core.ContentTypeMP4, video)
		}
		if art.DeviceLogs {
			s.attachLogcat(ctx, AttachmentLogcatFail, diagnostics.FailureLogTail)
		}
		if art.Meminfo {
			s.attachMeminfo(ctx, pkg, art.MeminfoLines)
		}
		return
	}

	if art.AlwaysVideo && len(video) > 0 {
		sink.Attach(core.AttachmentVideo, core.ContentTypeMP4, video)
	}
	if art.LogsOnPass {
		s.attachLogcat(ctx, AttachmentLogcatPass, diagnostics.PassLogTail)
	}
}

func (s *Suite) attachPayload(name string, passed bool, testErr error) {
	payload := map[string]interface{}{
		"title":    name,
		"passed":   passed,
		"hasError": testErr != nil,
	}
	if testErr != nil {
		payload["errorMessage"] = testErr.Error()
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Warn("[suite] payload: %v", err)
		return
	}
	s.deps.Reporter.Attach(AttachmentPayload, core.ContentTypeJSON, body)
}

func (s *Suite) attachDiagnostics(ctx context.Context, name string, testErr error) {
	logger.Info("[suite] collecting debug info for %q", name)
	info := s.collector.Collect(ctx, name, testErr)

	sink := s.deps.Reporter
	sink.Attach(core.AttachmentDebugReport, core.ContentTypeText, []byte(diagnostics.FormatReport(info)))
	if info.HierarchyOK && info.UIHierarchy != "" {
		sink.Attach(core.AttachmentHierarchy, core.ContentTypeXML, []byte(info.UIHierarchy))
	}
	if info.LogsOK && info.FilteredLogs != "" {
		sink.Attach(AttachmentFilteredLog, core.ContentTypeText, []byte(info.FilteredLogs))
	}
}

func (s *Suite) attachLogcat(ctx context.Context, attachment string, lines int) {
	if s.deps.Device == nil {
		logger.Warn("[suite] no adb device, %s skipped", attachment)
		return
	}
	out, err := diagnostics.LogcatTail(ctx, s.deps.Device, s.opts.Config.AppPackage, lines)
	if err != nil {
		logger.Warn("[suite] %s: %v", attachment, err)
		return
	}
	s.deps.Reporter.Attach(attachment, core.ContentTypeText, []byte(out))
}

func (s *Suite) attachMeminfo(ctx context.Context, pkg string, limit int) {
	if s.deps.Device == nil {
		return
	}
	raw, err := s.deps.Device.Meminfo(ctx, pkg)
	if err != nil {
		logger.Warn("[suite] meminfo: %v", err)
		return
	}
	s.deps.Reporter.Attach(AttachmentMeminfo, core.ContentTypeText, []byte(diagnostics.MeminfoSummary(raw, limit)))
}

func errText(err error) string {
	if err == nil {
		return "none"
	}
	return err.Error()
}
