package authcore

import (
	"regexp"

	"archivecore.io/core/internal/domain"
)

// PIIKind names a detector (§4.6 Confidentiality escalation from PII).
type PIIKind string

const (
	PIISSN            PIIKind = "ssn"
	PIIPaymentCard    PIIKind = "payment_card"
	PIIPhone          PIIKind = "phone"
	PIIEmail          PIIKind = "email"
	PIIIPAddress      PIIKind = "ip_address"
	PIIDateOfBirth    PIIKind = "date_of_birth"
	PIIPassport       PIIKind = "passport"
	PIIDriversLicense PIIKind = "drivers_license"
)

// PIIMatch is one detector hit within scanned text.
type PIIMatch struct {
	Kind       PIIKind
	Text       string
	Confidence float64
}

// EscalationThreshold is the confidence at which a match forces
// confidentiality to at least EscalatedFloor (§4.6).
const EscalationThreshold = 0.8

// EscalatedFloor is the minimum confidentiality level PII escalation
// raises a page to.
const EscalatedFloor = domain.ConfidentialityConfidential

var (
	ssnPattern      = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern     = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	phonePattern    = regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)
	emailPattern    = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
	ipv4Pattern     = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)
	dobPattern      = regexp.MustCompile(`\b(?:0[1-9]|1[0-2])/(?:0[1-9]|[12]\d|3[01])/(?:19|20)\d{2}\b`)
	passportPattern = regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{6,9}\b`)
	driversPattern  = regexp.MustCompile(`\b[A-Z]{1}[0-9]{6,8}\b`)
)

// ScanText runs every detector over text and returns every match
// found, including low-confidence ones (callers filter by threshold).
func ScanText(text string) []PIIMatch {
	var matches []PIIMatch

	for _, m := range ssnPattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIISSN, Text: m, Confidence: 0.9})
	}
	for _, m := range cardPattern.FindAllString(text, -1) {
		digits := onlyDigits(m)
		if len(digits) < 13 || len(digits) > 19 || !luhnValid(digits) {
			continue
		}
		matches = append(matches, PIIMatch{Kind: PIIPaymentCard, Text: m, Confidence: 0.95})
	}
	for _, m := range emailPattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIIEmail, Text: m, Confidence: 0.85})
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIIPhone, Text: m, Confidence: 0.7})
	}
	for _, m := range ipv4Pattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIIIPAddress, Text: m, Confidence: 0.6})
	}
	for _, m := range dobPattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIIDateOfBirth, Text: m, Confidence: 0.65})
	}
	for _, m := range passportPattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIIPassport, Text: m, Confidence: 0.55})
	}
	for _, m := range driversPattern.FindAllString(text, -1) {
		matches = append(matches, PIIMatch{Kind: PIIDriversLicense, Text: m, Confidence: 0.5})
	}

	return matches
}

// HighestConfidence returns the largest confidence among matches, or 0
// when matches is empty.
func HighestConfidence(matches []PIIMatch) float64 {
	var max float64
	for _, m := range matches {
		if m.Confidence > max {
			max = m.Confidence
		}
	}
	return max
}

// Escalate applies §4.6's PII-driven confidentiality escalation to
// page in place: when text contains a match at or above
// EscalationThreshold, Confidentiality is raised to at least
// EscalatedFloor, and OriginalConfidentiality preserves the pre-scan
// level the first time escalation happens.
func Escalate(page *domain.Page, matches []PIIMatch) bool {
	if HighestConfidence(matches) < EscalationThreshold {
		return false
	}
	if page.Confidentiality >= EscalatedFloor {
		return false
	}
	page.OriginalConfidentiality = page.Confidentiality
	page.Confidentiality = EscalatedFloor
	return true
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// luhnValid checks digits against the Luhn checksum used by every
// major payment card scheme.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
