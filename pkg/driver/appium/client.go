// Package appium implements core.Session against an Appium server using the
// W3C WebDriver protocol plus Appium's Android extensions.
package appium

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// W3C key codes for named keys accepted by Keys.
var namedKeys = map[string]string{
	"Enter":     "\uE007",
	"Tab":       "\uE004",
	"Backspace": "\uE003",
	"Escape":    "\uE00C",
}

// WebDriverError is an error payload returned by the server.
type WebDriverError struct {
	Status  int    // HTTP status
	Code    string // W3C error code: "no such element", "stale element reference", ...
	Message string
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err means the element is not (or no
// longer) in the tree.
func IsNoSuchElement(err error) bool {
	var wdErr *WebDriverError
	if errors.As(err, &wdErr) {
		return wdErr.Code == "no such element" || wdErr.Code == "stale element reference"
	}
	return false
}

// Client handles HTTP communication with Appium server.
// It implements core.Session.
type Client struct {
	serverURL  string
	sessionID  string
	client     *http.Client
	appPackage string

	mu      sync.Mutex
	screenW int
	screenH int
}

var _ core.Session = (*Client)(nil)

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for install/screenshot
		},
	}
}

// Connect creates a new Android session with the given capabilities.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	caps := make(map[string]interface{}, len(capabilities)+2)
	for k, v := range capabilities {
		caps[k] = v
	}
	if _, ok := caps["platformName"]; !ok {
		caps["platformName"] = "Android"
	}
	if _, ok := caps["appium:automationName"]; !ok {
		caps["appium:automationName"] = "UiAutomator2"
	}
	c.appPackage, _ = caps["appium:appPackage"].(string)

	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": caps,
		},
	}

	resp, err := c.post("/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}
	logger.Info("[appium] session %s created at %s", c.sessionID, c.serverURL)

	// Don't add an implicit idle wait to every element lookup; the
	// interaction layer polls on its own schedule.
	if err := c.SetSettings(map[string]interface{}{
		"waitForIdleTimeout":     0,
		"waitForSelectorTimeout": 0,
	}); err != nil {
		logger.Warn("[appium] settings not applied: %v", err)
	}

	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(c.sessionPath())
	c.sessionID = ""
	return err
}

// SessionID returns the active session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// WindowSize returns the screen dimensions. The first successful lookup is
// cached for the lifetime of the session.
func (c *Client) WindowSize() (int, int, error) {
	c.mu.Lock()
	w, h := c.screenW, c.screenH
	c.mu.Unlock()
	if w > 0 && h > 0 {
		return w, h, nil
	}

	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		return 0, 0, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return 0, 0, fmt.Errorf("invalid window rect response")
	}
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)

	c.mu.Lock()
	c.screenW, c.screenH = int(wf), int(hf)
	c.mu.Unlock()
	return int(wf), int(hf), nil
}

// Element returns a lazy handle for selector.
func (c *Client) Element(selector string) core.Element {
	return &Element{client: c, selector: selector}
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(strategy, value string) (string, error) {
	return c.findElementFrom(c.sessionPath(), strategy, value)
}

// FindElements finds multiple elements.
func (c *Client) FindElements(strategy, value string) ([]string, error) {
	return c.findElementsFrom(c.sessionPath(), strategy, value)
}

func (c *Client) findElementFrom(base, strategy, value string) (string, error) {
	resp, err := c.post(base+"/element", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &WebDriverError{Code: "no such element", Message: value}
	}
	id := extractElementID(elemValue)
	if id == "" {
		return "", &WebDriverError{Code: "no such element", Message: value}
	}
	return id, nil
}

func (c *Client) findElementsFrom(base, strategy, value string) ([]string, error) {
	resp, err := c.post(base+"/elements", map[string]interface{}{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", nil)
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/clear", nil)
	return err
}

// SetElementValue replaces an element's text.
func (c *Client) SetElementValue(elementID, text string) error {
	_, err := c.post(c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(elementID, name string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/attribute/" + name)
	if err != nil {
		return "", err
	}
	switch v := resp["value"].(type) {
	case string:
		return v, nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(elementID string) (core.Bounds, error) {
	resp, err := c.get(c.elementPath(elementID) + "/rect")
	if err != nil {
		return core.Bounds{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return core.Bounds{}, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return core.Bounds{X: int(xf), Y: int(yf), Width: int(wf), Height: int(hf)}, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// Touch/Gesture Operations (W3C Actions)

func (c *Client) performTouchAction(actions []map[string]interface{}) error {
	payload := []map[string]interface{}{
		{
			"type":       "pointer",
			"id":         "finger1",
			"parameters": map[string]interface{}{"pointerType": "touch"},
			"actions":    actions,
		},
	}
	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{"actions": payload})
	return err
}

// Tap performs a tap at coordinates using W3C touch actions.
func (c *Client) Tap(p core.Point) error {
	return c.performTouchAction([]map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": p.X, "y": p.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": 50},
		{"type": "pointerUp", "button": 0},
	})
}

// Swipe presses at from, holds for holdMs, moves to `to` over durationMs and
// releases.
func (c *Client) Swipe(from, to core.Point, holdMs, durationMs int) error {
	return c.performTouchAction([]map[string]interface{}{
		{"type": "pointerMove", "duration": 0, "x": from.X, "y": from.Y, "origin": "viewport"},
		{"type": "pointerDown", "button": 0},
		{"type": "pause", "duration": holdMs},
		{"type": "pointerMove", "duration": durationMs, "x": to.X, "y": to.Y, "origin": "viewport"},
		{"type": "pointerUp", "button": 0},
	})
}

// Text Input

// Keys sends each key as a discrete down/up pair. Named keys such as "Enter"
// are translated to W3C code points; anything else is sent rune by rune.
func (c *Client) Keys(keys ...string) error {
	var keyActions []map[string]interface{}
	var legacy []string
	for _, k := range keys {
		if code, ok := namedKeys[k]; ok {
			keyActions = append(keyActions,
				map[string]interface{}{"type": "keyDown", "value": code},
				map[string]interface{}{"type": "keyUp", "value": code},
			)
			legacy = append(legacy, code)
			continue
		}
		for _, ch := range k {
			keyActions = append(keyActions,
				map[string]interface{}{"type": "keyDown", "value": string(ch)},
				map[string]interface{}{"type": "keyUp", "value": string(ch)},
			)
			legacy = append(legacy, string(ch))
		}
	}

	_, err := c.post(c.sessionPath()+"/actions", map[string]interface{}{
		"actions": []map[string]interface{}{
			{
				"type":    "key",
				"id":      "keyboard",
				"actions": keyActions,
			},
		},
	})
	if err != nil {
		// Fallback: legacy keys endpoint
		_, err = c.post(c.sessionPath()+"/keys", map[string]interface{}{
			"value": legacy,
		})
	}
	return err
}

// App Management

// ActivateApp brings an installed app to the foreground.
func (c *Client) ActivateApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/activate_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// TerminateApp terminates an app.
func (c *Client) TerminateApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/terminate_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// LaunchApp starts the session's configured app.
func (c *Client) LaunchApp() error {
	_, err := c.post(c.sessionPath()+"/appium/app/launch", nil)
	return err
}

// InstallApp installs an APK from a path visible to the Appium server.
func (c *Client) InstallApp(path string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/install_app", map[string]interface{}{
		"appPath": path,
	})
	return err
}

// RemoveApp uninstalls an app.
func (c *Client) RemoveApp(appID string) error {
	_, err := c.post(c.sessionPath()+"/appium/device/remove_app", map[string]interface{}{
		"appId": appID,
	})
	return err
}

// CurrentActivity returns the foreground activity, e.g. ".MainActivity".
func (c *Client) CurrentActivity() (string, error) {
	resp, err := c.get(c.sessionPath() + "/appium/device/current_activity")
	if err != nil {
		return "", err
	}
	activity, _ := resp["value"].(string)
	return activity, nil
}

// CurrentPackage returns the foreground package.
func (c *Client) CurrentPackage() (string, error) {
	resp, err := c.get(c.sessionPath() + "/appium/device/current_package")
	if err != nil {
		return "", err
	}
	pkg, _ := resp["value"].(string)
	return pkg, nil
}

// NetworkConnection returns the connection bitmask
// (1 airplane, 2 wifi, 4 data).
func (c *Client) NetworkConnection() (int, error) {
	resp, err := c.get(c.sessionPath() + "/network_connection")
	if err != nil {
		return 0, err
	}
	state, ok := resp["value"].(float64)
	if !ok {
		return 0, fmt.Errorf("invalid network connection response")
	}
	return int(state), nil
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// StartRecording starts native screen recording.
func (c *Client) StartRecording() error {
	_, err := c.post(c.sessionPath()+"/appium/start_recording_screen", map[string]interface{}{
		"options": map[string]interface{}{},
	})
	return err
}

// StopRecording stops screen recording and returns the MP4 bytes.
func (c *Client) StopRecording() ([]byte, error) {
	resp, err := c.post(c.sessionPath()+"/appium/stop_recording_screen", map[string]interface{}{
		"options": map[string]interface{}{},
	})
	if err != nil {
		return nil, err
	}
	encoded, _ := resp["value"].(string)
	if encoded == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// SetSettings updates UiAutomator2 driver settings.
func (c *Client) SetSettings(settings map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/appium/settings", map[string]interface{}{
		"settings": settings,
	})
	return err
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(command string, args map[string]interface{}) (interface{}, error) {
	resp, err := c.post(c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request("GET", path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.request("POST", path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request("DELETE", path, nil)
}

func (c *Client) request(method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	} else if method == "POST" {
		bodyReader = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}
	if resp == nil {
		return nil, fmt.Errorf("nil response from server")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			errMsg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: errMsg}
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
