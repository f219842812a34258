package report

import (
	"encoding/json"
	"fmt"
)

func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return atomicWriteFile(path, data, 0o644)
}
