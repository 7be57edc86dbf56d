// (c) Copyright 2018 Hewlett Packard Enterprise Development LP

package conversion

import (
	"fmt"
	"strconv"
	"strings"
)

// ConvertMiBToGiB converts MiB into GiB
func ConvertMiBToGiB(value float64) float64 {
	return value / 1024
}

// ConvertBytesToGiB converts bytes into GiB
func ConvertBytesToGiB(value uint64) float64 {
	return float64(value) / (1024 * 1024 * 1024)
}

// FormatGiB renders a GiB value the way tgt-manager reports every size, e.g. "2.00 GB"
func FormatGiB(value float64) string {
	return fmt.Sprintf("%.2f GB", value)
}

// MiBStrToGiBStr converts the leading number of a size string reported in MiB (e.g. "2048 MB")
// into a GiB string (e.g. "2.00 GB").  ok is false if no number could be parsed.
func MiBStrToGiBStr(size string) (gib string, ok bool) {
	fields := strings.Fields(size)
	if len(fields) == 0 {
		return "", false
	}
	mib, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", false
	}
	return FormatGiB(ConvertMiBToGiB(mib)), true
}
