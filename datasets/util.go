package datasets

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	return strconv.ParseFloat(s, 64)
}

// joinImagePath resolves an annotation's image name against root. Names are
// written with forward slashes in the CSV regardless of platform.
func joinImagePath(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimSpace(name)))
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("index %d out of range [0, %d): %w", i, n, ErrIndex)
	}
	return nil
}
