package authcore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archivecore.io/core/internal/domain"
)

func TestScanTextDetectsSSN(t *testing.T) {
	matches := ScanText("employee ssn is 123-45-6789 on file")
	found := false
	for _, m := range matches {
		if m.Kind == PIISSN {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScanTextValidatesPaymentCardChecksum(t *testing.T) {
	// 4111111111111111 is a well-known Luhn-valid test Visa number.
	valid := ScanText("card on file: 4111111111111111")
	foundValid := false
	for _, m := range valid {
		if m.Kind == PIIPaymentCard {
			foundValid = true
		}
	}
	assert.True(t, foundValid)

	invalid := ScanText("card on file: 4111111111111112")
	for _, m := range invalid {
		assert.NotEqual(t, PIIPaymentCard, m.Kind)
	}
}

func TestScanTextDetectsEmailAndPhone(t *testing.T) {
	matches := ScanText("contact jane.doe@example.com or 415-555-0134")
	kinds := map[PIIKind]bool{}
	for _, m := range matches {
		kinds[m.Kind] = true
	}
	assert.True(t, kinds[PIIEmail])
	assert.True(t, kinds[PIIPhone])
}

func TestEscalateRaisesConfidentialityAboveThreshold(t *testing.T) {
	page := domain.Page{Confidentiality: domain.ConfidentialityPublic}
	matches := []PIIMatch{{Kind: PIISSN, Confidence: 0.9}}
	escalated := Escalate(&page, matches)
	assert.True(t, escalated)
	assert.Equal(t, domain.ConfidentialityConfidential, page.Confidentiality)
	assert.Equal(t, domain.ConfidentialityPublic, page.OriginalConfidentiality)
}

func TestEscalateNoOpBelowThreshold(t *testing.T) {
	page := domain.Page{Confidentiality: domain.ConfidentialityPublic}
	matches := []PIIMatch{{Kind: PIIIPAddress, Confidence: 0.6}}
	escalated := Escalate(&page, matches)
	assert.False(t, escalated)
	assert.Equal(t, domain.ConfidentialityPublic, page.Confidentiality)
}

func TestEscalateNoOpWhenAlreadyAtOrAboveFloor(t *testing.T) {
	page := domain.Page{Confidentiality: domain.ConfidentialityRestricted}
	matches := []PIIMatch{{Kind: PIISSN, Confidence: 0.9}}
	escalated := Escalate(&page, matches)
	assert.False(t, escalated)
	assert.Equal(t, domain.ConfidentialityRestricted, page.Confidentiality)
	assert.Equal(t, domain.Confidentiality(0), page.OriginalConfidentiality)
}
