package utils

import "strings"

// NormalizePlate uppercases a plate string and strips the separators cameras
// and humans tend to insert.
func NormalizePlate(plate string) string {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	var b strings.Builder
	b.Grow(len(plate))
	for _, ch := range plate {
		switch ch {
		case ' ', '-', '.', '\t', '\n':
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
