package plate

import (
	"regexp"

	"eagleeye/internal/domain/anpr"
	"eagleeye/internal/utils"
)

// Ordered grammar patterns: the standard format first, then the legacy
// variant with a single-digit district number.
var platePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z]{1,2}\d{1,4}$`),
	regexp.MustCompile(`^[A-Z]{2}\d{1,2}[A-Z]{1,2}\d{1,4}$`),
}

// Validate checks a plate string against the plate grammar and the
// region-code allow-list. NormalizedText carries the cleaned form even when
// the plate is rejected.
func Validate(text string) anpr.ValidationResult {
	cleaned := utils.NormalizePlate(text)
	if cleaned == "" {
		return anpr.ValidationResult{
			IsValid:        false,
			NormalizedText: cleaned,
			Message:        "empty",
		}
	}

	matched := false
	for _, p := range platePatterns {
		if p.MatchString(cleaned) {
			matched = true
			break
		}
	}
	if !matched {
		return anpr.ValidationResult{
			IsValid:        false,
			NormalizedText: cleaned,
			Message:        "format mismatch",
		}
	}

	if !IsRegionCode(cleaned[:2]) {
		return anpr.ValidationResult{
			IsValid:        false,
			NormalizedText: cleaned,
			Message:        "unknown region code",
		}
	}

	return anpr.ValidationResult{
		IsValid:        true,
		NormalizedText: cleaned,
		Message:        "ok",
	}
}
