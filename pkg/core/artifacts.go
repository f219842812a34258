package core

// Common attachment names
const (
	AttachmentScreenshot  = "screenshot"
	AttachmentHierarchy   = "hierarchy"
	AttachmentDeviceLog   = "logcat"
	AttachmentMeminfo     = "meminfo"
	AttachmentDebugReport = "debug report"
	AttachmentVideo       = "video"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
	ContentTypeXML  = "text/xml"
	ContentTypeMP4  = "video/mp4"
)

// AttachmentSink accepts named attachments for the current test.
// The harness writes to it and never reads back.
type AttachmentSink interface {
	Attach(name, contentType string, body []byte)
}

// NopSink discards attachments.
type NopSink struct{}

// Attach implements AttachmentSink.
func (NopSink) Attach(string, string, []byte) {}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: false (SCREENSHOT_ON_PASS)

	// What to capture
	Screenshot    bool `yaml:"screenshot" json:"screenshot"`       // Default: true
	EnhancedDebug bool `yaml:"enhancedDebug" json:"enhancedDebug"` // Default: true (ENHANCED_DEBUG)
	DeviceLogs    bool `yaml:"deviceLogs" json:"deviceLogs"`       // Default: true
	Meminfo       bool `yaml:"meminfo" json:"meminfo"`             // Default: true
	Video         bool `yaml:"video" json:"video"`                 // Default: false
	ClearLogcat   bool `yaml:"clearLogcat" json:"clearLogcat"`     // Default: true (CLEAR_LOGCAT)
	MeminfoLines  int  `yaml:"meminfoLines" json:"meminfoLines"`   // Default: 120 (MEMINFO_LINES)

	// Passed tests
	LogsOnPass  bool `yaml:"logsOnPass" json:"logsOnPass"`   // Default: false (LOGS_ON_PASS)
	AlwaysVideo bool `yaml:"alwaysVideo" json:"alwaysVideo"` // Default: false (ALWAYS_ATTACH_VIDEO)
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Screenshot:       true,
		EnhancedDebug:    true,
		DeviceLogs:       true,
		Meminfo:          true,
		Video:            false,
		ClearLogcat:      true,
		MeminfoLines:     120,
	}
}

// ShouldCapture returns true if a screenshot should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status TestStatus) bool {
	switch status {
	case StatusFailed, StatusBroken:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}
