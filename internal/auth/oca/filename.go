package oca

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// CredentialFileName returns the filename used to persist a credential stored
// under id. Characters outside letters and digits collapse into single dashes.
func CredentialFileName(id string) string {
	name := normalizeForFilename(id)
	if name == "" {
		return "oca.json"
	}
	return fmt.Sprintf("%s.json", name)
}

// TenantLabel derives a short label from an IDCS URL, e.g. "idcs-9dc693e8".
func TenantLabel(idcsURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(idcsURL))
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	first, _, _ := strings.Cut(parsed.Hostname(), ".")
	label := normalizeForFilename(first)
	if len(label) > 13 {
		label = label[:13]
	}
	return label
}

func normalizeForFilename(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	parts := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return ""
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(part))
	}
	return strings.Join(parts, "-")
}
