package recovery

import (
	"strings"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Strategy is a device state reset procedure.
type Strategy string

const (
	Restart   Strategy = "restart"
	ClearData Strategy = "clear-data"
	Reinstall Strategy = "reinstall"
)

// ParseStrategy resolves a configured strategy name. Unknown names fall
// back to ClearData with a warning.
func ParseStrategy(s string) Strategy {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return ClearData
	}
	switch Strategy(raw) {
	case Restart, ClearData, Reinstall:
		return Strategy(raw)
	}
	logger.Warn("[recovery] unknown strategy %q, using %s", raw, ClearData)
	return ClearData
}

// ComponentSpec builds the `am start -n` component for activity:
// ".Main" -> "pkg/pkg.Main", "pkg.ui.Main" -> "pkg/pkg.ui.Main",
// "Main" -> "pkg/pkg.Main".
func ComponentSpec(pkg, activity string) string {
	switch {
	case strings.HasPrefix(activity, "."):
		return pkg + "/" + pkg + activity
	case strings.Contains(activity, pkg):
		return pkg + "/" + activity
	default:
		return pkg + "/" + pkg + "." + activity
	}
}

func installable(apkPath string) bool {
	return apkPath != "" && strings.HasSuffix(apkPath, ".apk")
}
