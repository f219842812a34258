// Package mock provides scriptable fakes for testing without a real device:
// a core.Session, lazy elements, a virtual clock and an adb runner.
package mock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// Call is one recorded session or element call.
type Call struct {
	Method string
	Args   []interface{}
	At     time.Duration // Virtual time since the clock started
}

// Session is a scriptable core.Session. Zero values give an empty screen of
// 1080x2400 where every lookup misses.
type Session struct {
	Clock *Clock

	// Screen size returned by WindowSize.
	Width, Height int

	// SourceFunc builds the page source. Default: a digest of the gesture
	// count, so every gesture changes the source.
	SourceFunc func(s *Session) (string, error)

	// MobileFunc handles ExecuteMobile. Default: returns nil, nil.
	MobileFunc func(command string, args map[string]interface{}) (interface{}, error)

	// OnGesture runs after every Swipe or scroll gesture with the running
	// gesture count.
	OnGesture func(n int)

	// Activities and Packages are consumed one per query; the last value
	// repeats.
	Activities []string
	Packages   []string

	// Errors forces a method to fail, keyed by method name.
	Errors map[string]error

	ScreenshotData []byte
	VideoData      []byte
	Network        int

	mu        sync.Mutex
	elements  map[string]*Element
	calls     []Call
	gestures  int
	activityN int
	packageN  int
}

var _ core.Session = (*Session)(nil)

// NewSession creates a session bound to clock.
func NewSession(clock *Clock) *Session {
	if clock == nil {
		clock = NewClock()
	}
	return &Session{
		Clock:          clock,
		Width:          1080,
		Height:         2400,
		Errors:         map[string]error{},
		ScreenshotData: PNG(),
		Network:        6,
	}
}

// AddElement registers el under selector and returns it.
func (s *Session) AddElement(selector string, el *Element) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elements == nil {
		s.elements = map[string]*Element{}
	}
	el.session = s
	el.selector = selector
	s.elements[selector] = el
	return el
}

// Lookup returns the element registered for selector, or nil.
func (s *Session) Lookup(selector string) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements[selector]
}

func (s *Session) record(method string, args ...interface{}) error {
	var at time.Duration
	if s.Clock != nil {
		at = s.Clock.Elapsed()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Args: args, At: at})
	return s.Errors[method]
}

// Calls returns recorded calls, optionally filtered by method names.
func (s *Session) Calls(methods ...string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(methods) == 0 {
		return append([]Call(nil), s.calls...)
	}
	var out []Call
	for _, c := range s.calls {
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// CallCount returns how many times method was called.
func (s *Session) CallCount(method string) int {
	return len(s.Calls(method))
}

// Gestures returns the number of swipes and scroll gestures performed.
func (s *Session) Gestures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gestures
}

func (s *Session) gesture() {
	s.mu.Lock()
	s.gestures++
	n := s.gestures
	hook := s.OnGesture
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
}

// Element returns the registered element, or a missing element.
func (s *Session) Element(selector string) core.Element {
	if el := s.Lookup(selector); el != nil {
		return el
	}
	return &Element{session: s, selector: selector}
}

// Source implements core.Session.
func (s *Session) Source() (string, error) {
	if err := s.record("Source"); err != nil {
		return "", err
	}
	if s.SourceFunc != nil {
		return s.SourceFunc(s)
	}
	return fmt.Sprintf(`<hierarchy gestures="%d"/>`, s.Gestures()), nil
}

// WindowSize implements core.Session.
func (s *Session) WindowSize() (int, int, error) {
	if err := s.record("WindowSize"); err != nil {
		return 0, 0, err
	}
	return s.Width, s.Height, nil
}

// Swipe implements core.Session.
func (s *Session) Swipe(from, to core.Point, holdMs, durationMs int) error {
	if err := s.record("Swipe", from, to, holdMs, durationMs); err != nil {
		return err
	}
	s.gesture()
	return nil
}

// Tap implements core.Session.
func (s *Session) Tap(p core.Point) error {
	return s.record("Tap", p)
}

// Keys implements core.Session.
func (s *Session) Keys(keys ...string) error {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return s.record("Keys", args...)
}

// ExecuteMobile implements core.Session. scrollGesture calls count as
// gestures unless they fail.
func (s *Session) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	if err := s.record("ExecuteMobile", command, args); err != nil {
		return nil, err
	}
	var result interface{}
	var err error
	if s.MobileFunc != nil {
		result, err = s.MobileFunc(command, args)
	}
	if err == nil && strings.HasSuffix(command, "Gesture") {
		s.gesture()
	}
	return result, err
}

// Screenshot implements core.Session.
func (s *Session) Screenshot() ([]byte, error) {
	if err := s.record("Screenshot"); err != nil {
		return nil, err
	}
	return s.ScreenshotData, nil
}

// ActivateApp implements core.Session.
func (s *Session) ActivateApp(appID string) error { return s.record("ActivateApp", appID) }

// TerminateApp implements core.Session.
func (s *Session) TerminateApp(appID string) error { return s.record("TerminateApp", appID) }

// LaunchApp implements core.Session.
func (s *Session) LaunchApp() error { return s.record("LaunchApp") }

// InstallApp implements core.Session.
func (s *Session) InstallApp(path string) error { return s.record("InstallApp", path) }

// RemoveApp implements core.Session.
func (s *Session) RemoveApp(appID string) error { return s.record("RemoveApp", appID) }

// CurrentActivity implements core.Session.
func (s *Session) CurrentActivity() (string, error) {
	if err := s.record("CurrentActivity"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return next(s.Activities, &s.activityN), nil
}

// CurrentPackage implements core.Session.
func (s *Session) CurrentPackage() (string, error) {
	if err := s.record("CurrentPackage"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return next(s.Packages, &s.packageN), nil
}

func next(seq []string, n *int) string {
	if len(seq) == 0 {
		return ""
	}
	i := *n
	if i >= len(seq) {
		i = len(seq) - 1
	}
	*n++
	return seq[i]
}

// NetworkConnection implements core.Session.
func (s *Session) NetworkConnection() (int, error) {
	if err := s.record("NetworkConnection"); err != nil {
		return 0, err
	}
	return s.Network, nil
}

// StartRecording implements core.Session.
func (s *Session) StartRecording() error { return s.record("StartRecording") }

// StopRecording implements core.Session.
func (s *Session) StopRecording() ([]byte, error) {
	if err := s.record("StopRecording"); err != nil {
		return nil, err
	}
	return s.VideoData, nil
}

// Element is a scriptable core.Element. Property fields may be changed by
// tests at any time, directly or through At.
type Element struct {
	Present   bool
	Visible   bool
	Active    bool // Enabled
	Tappable  bool // Clickable
	OffScreen bool // Displayed but outside the viewport
	Bounds    core.Bounds
	Label     string
	Attrs     map[string]string
	Children  map[string][]*Element

	// Errors forces a property or action to fail, keyed by method name.
	Errors map[string]error

	session  *Session
	selector string

	mu        sync.Mutex
	scheduled []scheduled
	clicks    int
	values    []string
}

type scheduled struct {
	at    time.Duration
	apply func(*Element)
}

var _ core.Element = (*Element)(nil)

// Ready returns an element that exists, is displayed and enabled.
func Ready() *Element {
	return &Element{
		Present:  true,
		Visible:  true,
		Active:   true,
		Tappable: true,
		Bounds:   core.Bounds{X: 100, Y: 200, Width: 200, Height: 80},
	}
}

// Hidden returns an element that exists but is not displayed.
func Hidden() *Element {
	return &Element{Present: true, Bounds: core.Bounds{X: 100, Y: 200, Width: 200, Height: 80}}
}

// At schedules fn to mutate the element once the session clock has
// advanced by at least d.
func (e *Element) At(d time.Duration, fn func(*Element)) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduled = append(e.scheduled, scheduled{at: d, apply: fn})
	sort.SliceStable(e.scheduled, func(i, j int) bool { return e.scheduled[i].at < e.scheduled[j].at })
	return e
}

// Clicks returns how many times Click succeeded.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Values returns values set through SetValue.
func (e *Element) Values() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.values...)
}

// state is a consistent copy of the scriptable fields.
type state struct {
	present, visible, active, tappable, offScreen bool
	bounds                                         core.Bounds
	label                                          string
	attrs                                          map[string]string
	children                                       map[string][]*Element
}

// query applies due scheduled mutations, records the call and snapshots the
// element.
func (e *Element) query(method string, args ...interface{}) (state, error) {
	var elapsed time.Duration
	if e.session != nil && e.session.Clock != nil {
		elapsed = e.session.Clock.Elapsed()
	}
	if e.session != nil {
		_ = e.session.record(e.selector+"."+method, args...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.scheduled) > 0 && e.scheduled[0].at <= elapsed {
		next := e.scheduled[0]
		e.scheduled = e.scheduled[1:]
		next.apply(e)
	}
	st := state{
		present:   e.Present,
		visible:   e.Visible,
		active:    e.Active,
		tappable:  e.Tappable,
		offScreen: e.OffScreen,
		bounds:    e.Bounds,
		label:     e.Label,
		attrs:     e.Attrs,
		children:  e.Children,
	}
	return st, e.Errors[method]
}

func (e *Element) notFound() error {
	return core.ErrElementNotFound.WithMessage(fmt.Sprintf("element %q not found", e.selector))
}

// Selector implements core.Element.
func (e *Element) Selector() string { return e.selector }

// Exists implements core.Element.
func (e *Element) Exists() (bool, error) {
	st, err := e.query("Exists")
	if err != nil {
		return false, err
	}
	return st.present, nil
}

// Displayed implements core.Element. Missing elements are not displayed.
func (e *Element) Displayed() (bool, error) {
	st, err := e.query("Displayed")
	if err != nil {
		return false, err
	}
	return st.present && st.visible, nil
}

// DisplayedInViewport implements core.Element.
func (e *Element) DisplayedInViewport() (bool, error) {
	st, err := e.query("DisplayedInViewport")
	if err != nil {
		return false, err
	}
	return st.present && st.visible && !st.offScreen, nil
}

// Enabled implements core.Element.
func (e *Element) Enabled() (bool, error) {
	st, err := e.query("Enabled")
	if err != nil {
		return false, err
	}
	if !st.present {
		return false, e.notFound()
	}
	return st.active, nil
}

// Clickable implements core.Element.
func (e *Element) Clickable() (bool, error) {
	st, err := e.query("Clickable")
	if err != nil {
		return false, err
	}
	if !st.present {
		return false, e.notFound()
	}
	return st.tappable, nil
}

// Rect implements core.Element.
func (e *Element) Rect() (core.Bounds, error) {
	st, err := e.query("Rect")
	if err != nil {
		return core.Bounds{}, err
	}
	if !st.present {
		return core.Bounds{}, e.notFound()
	}
	return st.bounds, nil
}

// Text implements core.Element.
func (e *Element) Text() (string, error) {
	st, err := e.query("Text")
	if err != nil {
		return "", err
	}
	if !st.present {
		return "", e.notFound()
	}
	return st.label, nil
}

// Attributes implements core.Element.
func (e *Element) Attributes() (map[string]string, error) {
	st, err := e.query("Attributes")
	if err != nil {
		return nil, err
	}
	if !st.present {
		return nil, e.notFound()
	}
	out := make(map[string]string, len(st.attrs))
	for k, v := range st.attrs {
		out[k] = v
	}
	return out, nil
}

// Click implements core.Element.
func (e *Element) Click() error {
	st, err := e.query("Click")
	if err != nil {
		return err
	}
	if !st.present {
		return e.notFound()
	}
	e.mu.Lock()
	e.clicks++
	e.mu.Unlock()
	return nil
}

// SetValue implements core.Element.
func (e *Element) SetValue(value string) error {
	st, err := e.query("SetValue", value)
	if err != nil {
		return err
	}
	if !st.present {
		return e.notFound()
	}
	e.mu.Lock()
	e.values = append(e.values, value)
	e.mu.Unlock()
	return nil
}

// Elements implements core.Element.
func (e *Element) Elements(selector string) ([]core.Element, error) {
	st, err := e.query("Elements", selector)
	if err != nil {
		return nil, err
	}
	if !st.present {
		return nil, e.notFound()
	}
	children := st.children[selector]
	out := make([]core.Element, 0, len(children))
	for _, c := range children {
		c.mu.Lock()
		if c.session == nil {
			c.session = e.session
		}
		c.mu.Unlock()
		out = append(out, c)
	}
	return out, nil
}

// PNG returns a minimal valid PNG (1x1 transparent pixel).
func PNG() []byte {
	return []byte{
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
		0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
		0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	}
}
