package appium

import (
	"regexp"
	"strings"
)

// Locator strategies understood by UiAutomator2.
const (
	StrategyAccessibilityID = "accessibility id"
	StrategyXPath           = "xpath"
	StrategyUiAutomator     = "-android uiautomator"
	StrategyID              = "id"
	StrategyClassName       = "class name"
)

var resourceIDPattern = regexp.MustCompile(`^[\w.]+:id/\w+$`)

// ParseSelector maps a selector string to a locator strategy and value.
//
//	~Label                             accessibility id
//	//xpath, (//xpath)[2]              xpath
//	-android uiautomator: new Ui...    UiAutomator
//	android=new UiSelector()...        UiAutomator
//	id=com.pkg:id/name, com.pkg:id/n   resource id
//	android.widget.TextView            class name
func ParseSelector(selector string) (strategy, value string) {
	s := strings.TrimSpace(selector)
	switch {
	case strings.HasPrefix(s, "~"):
		return StrategyAccessibilityID, s[1:]
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "(/"), strings.HasPrefix(s, "./"):
		return StrategyXPath, s
	case strings.HasPrefix(s, "-android uiautomator:"):
		return StrategyUiAutomator, strings.TrimSpace(strings.TrimPrefix(s, "-android uiautomator:"))
	case strings.HasPrefix(s, "android="):
		return StrategyUiAutomator, strings.TrimPrefix(s, "android=")
	case strings.HasPrefix(s, "id="):
		return StrategyID, strings.TrimPrefix(s, "id=")
	case resourceIDPattern.MatchString(s):
		return StrategyID, s
	default:
		return StrategyClassName, s
	}
}
