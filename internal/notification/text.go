package notification

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once

	localMobile = regexp.MustCompile(`^0\d{9}$`)
)

// PlainText strips every HTML tag from s and decodes entities, turning
// non-breaking spaces into ordinary ones.
func PlainText(s string) string {
	policyOnce.Do(func() { strictPolicy = bluemonday.StrictPolicy() })
	out := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.ReplaceAll(out, "\u00a0", " ")
}

// NormalizePhone converts raw into the digits-only international form used by
// SMS gateways. A local number of a zero followed by nine digits is rewritten
// with countryCode.
func NormalizePhone(raw, countryCode string) string {
	mobile := strings.TrimSpace(raw)
	mobile = strings.TrimPrefix(mobile, "+")
	if countryCode != "" && localMobile.MatchString(mobile) {
		mobile = countryCode + mobile[1:]
	}
	return mobile
}

// PrepareSMSText renders message as plain text. Gateways reject bodies shorter
// than three characters, so those are padded.
func PrepareSMSText(message string) string {
	text := strings.TrimSpace(PlainText(message))
	if utf8.RuneCountInString(text) < 3 {
		text += " - message"
	}
	return text
}
