// Package core provides the capability interfaces and shared types of the
// whiteswan e2e harness.
package core

// Session is the automation driver session the harness drives.
// Implementations: appium (W3C WebDriver over HTTP), mock (tests).
// Every call may be slow and may fail; callers bound them with their own
// timeouts.
type Session interface {
	// Element returns a lazy handle for selector. Nothing is looked up until
	// a property of the handle is queried.
	Element(selector string) Element

	// Source returns the serialized UI tree (page source XML).
	Source() (string, error)

	// WindowSize returns the screen dimensions in pixels.
	WindowSize() (width, height int, err error)

	// Swipe performs a single-finger pointer gesture: move to from, press,
	// hold for holdMs, move to `to` over durationMs, release.
	Swipe(from, to Point, holdMs, durationMs int) error

	// Tap taps raw screen coordinates.
	Tap(p Point) error

	// Keys sends key events to the focused element. Named keys ("Enter")
	// are translated to their W3C code points.
	Keys(keys ...string) error

	// ExecuteMobile runs an Appium "mobile: <command>" extension.
	ExecuteMobile(command string, args map[string]interface{}) (interface{}, error)

	// Screenshot captures the current screen as PNG.
	Screenshot() ([]byte, error)

	// App lifecycle.
	ActivateApp(appID string) error
	TerminateApp(appID string) error
	LaunchApp() error
	InstallApp(path string) error
	RemoveApp(appID string) error

	// Foreground state queries (Android).
	CurrentActivity() (string, error)
	CurrentPackage() (string, error)

	// NetworkConnection returns the Appium network connection bitmask.
	NetworkConnection() (int, error)

	// Screen recording; StopRecording returns the encoded video.
	StartRecording() error
	StopRecording() ([]byte, error)
}

// Element is a capability reference into the live element tree.
// Properties are queried fresh on every call; mobile UI state changes
// between queries so nothing is cached.
type Element interface {
	// Selector returns the selector the handle was created from,
	// or "" for handles obtained from a collection lookup.
	Selector() string

	Exists() (bool, error)
	Displayed() (bool, error)
	DisplayedInViewport() (bool, error)
	Enabled() (bool, error)
	Clickable() (bool, error)
	Rect() (Bounds, error)
	Text() (string, error)
	Attributes() (map[string]string, error)

	Click() error
	SetValue(value string) error

	// Elements finds descendants matching selector.
	Elements(selector string) ([]Element, error)
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Empty reports whether the bounds have no area.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}
