package provision

import (
	"strconv"
	"strings"

	"github.com/provedorpro/subsync/pkg/fault"
)

// NormalizeRate converts a human-entered bandwidth magnitude into the
// device's rate syntax: an integer followed by a single unit letter.
//
//	"50M"   -> "50M"
//	"50MB"  -> "50M"
//	" 1gb " -> "1G"
//	"50"    -> "50M"   (bare numbers are megabits)
//
// Non-positive or unparseable magnitudes are rejected.
func NormalizeRate(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fault.New(fault.KindValidation, "bandwidth rate is empty")
	}

	unit := "M"
	switch {
	case strings.HasSuffix(s, "KB"), strings.HasSuffix(s, "MB"), strings.HasSuffix(s, "GB"):
		unit = s[len(s)-2 : len(s)-1]
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "M"), strings.HasSuffix(s, "G"):
		unit = s[len(s)-1:]
		s = s[:len(s)-1]
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return "", fault.Newf(fault.KindValidation, "unparseable bandwidth rate %q", raw)
	}
	if n <= 0 {
		return "", fault.Newf(fault.KindValidation, "bandwidth rate %q must be positive", raw)
	}
	return strconv.Itoa(n) + unit, nil
}

// MaxLimit builds the device queue max-limit value, download/upload,
// from a plan's two magnitudes.
func MaxLimit(download, upload string) (string, error) {
	down, err := NormalizeRate(download)
	if err != nil {
		return "", err
	}
	up, err := NormalizeRate(upload)
	if err != nil {
		return "", err
	}
	return down + "/" + up, nil
}
