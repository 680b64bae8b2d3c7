package oca

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ErrInvalidIDCSURL matches every *InvalidURLError via errors.Is.
var ErrInvalidIDCSURL = errors.New("invalid IDCS URL")

const maxErrorDetailLength = 240

// InvalidURLError reports a malformed identity service URL.
type InvalidURLError struct {
	Value string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("Invalid IDCS URL: %s", e.Value)
}

// Is reports whether target is ErrInvalidIDCSURL.
func (e *InvalidURLError) Is(target error) bool {
	return target == ErrInvalidIDCSURL
}

// TokenError is returned when the token endpoint answers with a non-2xx status.
type TokenError struct {
	// Operation is "Token refresh" or "Token exchange".
	Operation  string
	StatusCode int
	// Detail is the best-effort message extracted from the response body.
	Detail string
}

func (e *TokenError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s failed: %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %d (%s)", e.Operation, e.StatusCode, e.Detail)
}

// StatusCode returns the HTTP status of a *TokenError in err's chain, or 0.
func StatusCode(err error) int {
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.StatusCode
	}
	return 0
}

// extractErrorDetail pulls a human readable message out of an error body.
// JSON bodies contribute "error: error_description", "error" or "message";
// anything else is whitespace-collapsed and truncated.
func extractErrorDetail(contentType string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if strings.Contains(strings.ToLower(contentType), "json") || gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		code := strings.TrimSpace(parsed.Get("error").String())
		description := strings.TrimSpace(parsed.Get("error_description").String())
		switch {
		case code != "" && description != "":
			return code + ": " + description
		case code != "":
			return code
		}
		if message := strings.TrimSpace(parsed.Get("message").String()); message != "" {
			return message
		}
	}
	text := strings.Join(strings.Fields(string(body)), " ")
	return truncateRunes(text, maxErrorDetailLength)
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
