package core

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd tries to find the project root (the directory holding go.mod).
// go-test changes the working directory to the test package being run during tests,
// so config files are looked up from the root instead.
// Deployed binaries have no go.mod around them: the current directory is returned then.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// FormatDecimal formats `f` with exactly 2 decimals, "76" -> "76.00".
func FormatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// RoundHalfAway rounds half away from zero to the nearest integer.
func RoundHalfAway(f float64) int64 {
	return int64(math.Round(f))
}
