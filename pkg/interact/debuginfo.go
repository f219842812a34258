package interact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// ElementDebugInfo describes el for failure messages. Each fact is queried
// on its own; a failing query contributes its error text instead of
// aborting the snapshot.
func ElementDebugInfo(el core.Element, selector string) string {
	if el == nil {
		return fmt.Sprintf("Selector: %q; element handle unavailable", selector)
	}
	parts := []string{fmt.Sprintf("Selector: %q", selector)}

	flags := []struct {
		name  string
		query func() (bool, error)
	}{
		{"isDisplayed", el.Displayed},
		{"isEnabled", el.Enabled},
		{"isClickable", el.Clickable},
	}
	for _, f := range flags {
		v, err := f.query()
		if err != nil {
			parts = append(parts, fmt.Sprintf("%s: error - %v", f.name, err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %t", f.name, v))
	}

	if r, err := el.Rect(); err != nil {
		parts = append(parts, fmt.Sprintf("Rect: error - %v", err))
	} else {
		parts = append(parts, fmt.Sprintf("Rect: x=%d, y=%d, width=%d, height=%d", r.X, r.Y, r.Width, r.Height))
	}

	if text, err := el.Text(); err != nil {
		parts = append(parts, fmt.Sprintf("Text: error - %v", err))
	} else {
		parts = append(parts, fmt.Sprintf("Text: %q", text))
	}

	if attrs, err := el.Attributes(); err != nil {
		parts = append(parts, fmt.Sprintf("Attributes: error - %v", err))
	} else if len(attrs) > 0 {
		data, _ := json.Marshal(attrs)
		parts = append(parts, "Attributes: "+string(data))
	}

	return strings.Join(parts, "; ")
}
