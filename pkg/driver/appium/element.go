package appium

import (
	"errors"
	"fmt"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// Attributes collected by Element.Attributes. UiAutomator2 has no bulk
// attribute endpoint, so each is fetched individually.
var androidAttributes = []string{
	"resource-id",
	"class",
	"text",
	"content-desc",
	"package",
	"checkable",
	"checked",
	"clickable",
	"enabled",
	"focusable",
	"focused",
	"scrollable",
	"selected",
	"displayed",
	"bounds",
}

// Element is a lazy core.Element. Handles created from a selector re-run the
// lookup on every query; handles returned by Elements are bound to the
// server-side ID they were found with.
type Element struct {
	client   *Client
	selector string
	parent   *Element
	id       string
}

var _ core.Element = (*Element)(nil)

// Selector returns the selector the handle was created from.
func (e *Element) Selector() string {
	return e.selector
}

func (e *Element) notFound() error {
	return core.ErrElementNotFound.WithMessage(fmt.Sprintf("element %q not found", e.describe()))
}

func (e *Element) describe() string {
	if e.selector != "" {
		return e.selector
	}
	return "element:" + e.id
}

// resolve returns the current server-side ID.
func (e *Element) resolve() (string, error) {
	if e.id != "" {
		return e.id, nil
	}
	base := e.client.sessionPath()
	if e.parent != nil {
		parentID, err := e.parent.resolve()
		if err != nil {
			return "", err
		}
		base = e.client.elementPath(parentID)
	}
	strategy, value := ParseSelector(e.selector)
	id, err := e.client.findElementFrom(base, strategy, value)
	if err != nil {
		if IsNoSuchElement(err) {
			return "", e.notFound()
		}
		return "", err
	}
	return id, nil
}

// Exists reports whether the selector currently matches anything.
func (e *Element) Exists() (bool, error) {
	if e.id != "" {
		_, err := e.client.IsElementDisplayed(e.id)
		if IsNoSuchElement(err) {
			return false, nil
		}
		return err == nil, err
	}
	base := e.client.sessionPath()
	if e.parent != nil {
		parentID, err := e.parent.resolve()
		if err != nil {
			if errors.Is(err, core.ErrElementNotFound) {
				return false, nil
			}
			return false, err
		}
		base = e.client.elementPath(parentID)
	}
	strategy, value := ParseSelector(e.selector)
	ids, err := e.client.findElementsFrom(base, strategy, value)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// Displayed reports visibility. A missing element is not displayed.
func (e *Element) Displayed() (bool, error) {
	id, err := e.resolve()
	if err != nil {
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		return false, err
	}
	displayed, err := e.client.IsElementDisplayed(id)
	if IsNoSuchElement(err) {
		return false, nil
	}
	return displayed, err
}

// DisplayedInViewport reports whether the element is displayed and its
// rectangle intersects the screen.
func (e *Element) DisplayedInViewport() (bool, error) {
	displayed, err := e.Displayed()
	if err != nil || !displayed {
		return false, err
	}
	rect, err := e.Rect()
	if err != nil {
		return false, err
	}
	w, h, err := e.client.WindowSize()
	if err != nil {
		return false, err
	}
	if rect.Empty() {
		return false, nil
	}
	return rect.X < w && rect.Y < h && rect.X+rect.Width > 0 && rect.Y+rect.Height > 0, nil
}

// Enabled reports whether the element accepts input.
func (e *Element) Enabled() (bool, error) {
	id, err := e.resolve()
	if err != nil {
		return false, err
	}
	return e.client.IsElementEnabled(id)
}

// Clickable reads the UiAutomator2 "clickable" attribute.
func (e *Element) Clickable() (bool, error) {
	id, err := e.resolve()
	if err != nil {
		return false, err
	}
	v, err := e.client.GetElementAttribute(id, "clickable")
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// Rect returns the element's bounding rectangle.
func (e *Element) Rect() (core.Bounds, error) {
	id, err := e.resolve()
	if err != nil {
		return core.Bounds{}, err
	}
	return e.client.GetElementRect(id)
}

// Text returns the element's text.
func (e *Element) Text() (string, error) {
	id, err := e.resolve()
	if err != nil {
		return "", err
	}
	return e.client.GetElementText(id)
}

// Attributes returns the Android attribute map. Attributes the server
// refuses are omitted.
func (e *Element) Attributes() (map[string]string, error) {
	id, err := e.resolve()
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]string, len(androidAttributes))
	for _, name := range androidAttributes {
		v, err := e.client.GetElementAttribute(id, name)
		if err != nil {
			if IsNoSuchElement(err) {
				return nil, e.notFound()
			}
			continue
		}
		attrs[name] = v
	}
	return attrs, nil
}

// Click clicks the element.
func (e *Element) Click() error {
	id, err := e.resolve()
	if err != nil {
		return err
	}
	return e.client.ClickElement(id)
}

// SetValue clears the element and types value into it.
func (e *Element) SetValue(value string) error {
	id, err := e.resolve()
	if err != nil {
		return err
	}
	if err := e.client.ClearElement(id); err != nil && !IsNoSuchElement(err) {
		return err
	}
	return e.client.SetElementValue(id, value)
}

// Elements finds descendants matching selector.
func (e *Element) Elements(selector string) ([]core.Element, error) {
	id, err := e.resolve()
	if err != nil {
		return nil, err
	}
	strategy, value := ParseSelector(selector)
	ids, err := e.client.findElementsFrom(e.client.elementPath(id), strategy, value)
	if err != nil {
		return nil, err
	}
	out := make([]core.Element, 0, len(ids))
	for _, childID := range ids {
		out = append(out, &Element{client: e.client, id: childID})
	}
	return out, nil
}

// Child returns a lazy handle for selector scoped to this element.
func (e *Element) Child(selector string) *Element {
	return &Element{client: e.client, selector: selector, parent: e}
}
