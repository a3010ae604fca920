// Package routing assigns a routing severity and a human-readable
// reason list to a processed page, per §4.1's layered rule evaluation.
package routing

import "archivecore.io/core/internal/domain"

// RequiredFields maps a doc type to the field names that must be
// present (and confident) for the page to auto-route. Populated from
// configuration in a full deployment; the defaults below cover the
// closed doc_type enumeration's common required fields.
var RequiredFields = map[domain.DocType][]string{
	domain.DocTypeInvoice:  {"invoice_number", "amount"},
	domain.DocTypeReceipt:  {"amount"},
	domain.DocTypeContract: {"parties"},
	domain.DocTypeForm:     {},
	domain.DocTypeLetter:   {},
	domain.DocTypeMemo:     {},
	domain.DocTypeReport:   {},
	domain.DocTypeOther:    {},
}

const (
	sensitiveConfidenceFloor = 0.9
	autoConfidenceFloor      = 0.9
	autoFieldConfidenceFloor = 0.85
	manualConfidenceFloor    = 0.7
)

// Input is everything the routing engine needs to decide a severity.
type Input struct {
	DocType        domain.DocType
	Classification domain.Classification
	Fields         map[string]domain.FieldValue
}

// Decision is the routing engine's verdict.
type Decision struct {
	Severity domain.Severity
	Reasons  []string
}

// Route evaluates the layered rules in §4.1, in order, returning the
// first rule's verdict. Malformed or missing input never fails loud:
// it defaults to qc with a single explanatory reason.
func Route(in Input) Decision {
	if !valid(in) {
		return Decision{Severity: domain.SeverityQC, Reasons: []string{"incomplete_routing_input"}}
	}

	if domain.SensitiveDocTypes[in.DocType] && in.Classification.Confidence < sensitiveConfidenceFloor {
		return Decision{Severity: domain.SeverityManual, Reasons: []string{"sensitive_doc_low_conf"}}
	}

	missing := missingRequiredFields(in)
	avgFieldConf := averageFieldConfidence(in.Fields)

	if in.Classification.Confidence >= autoConfidenceFloor &&
		avgFieldConf >= autoFieldConfidenceFloor &&
		len(missing) == 0 {
		return Decision{Severity: domain.SeverityAuto}
	}

	if in.Classification.Confidence >= manualConfidenceFloor {
		reasons := []string{}
		if in.Classification.Confidence < autoConfidenceFloor {
			reasons = append(reasons, "classification_confidence_below_auto_threshold")
		}
		if avgFieldConf < autoFieldConfidenceFloor {
			reasons = append(reasons, "field_confidence_below_auto_threshold")
		}
		for _, f := range missing {
			reasons = append(reasons, "missing_required_field:"+f)
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "manual_review_required")
		}
		return Decision{Severity: domain.SeverityManual, Reasons: reasons}
	}

	return Decision{Severity: domain.SeverityQC, Reasons: []string{"classification_confidence_below_manual_threshold"}}
}

func valid(in Input) bool {
	if in.DocType == "" || !domain.ValidDocType(in.DocType) {
		return false
	}
	if in.Classification.Confidence < 0 || in.Classification.Confidence > 1 {
		return false
	}
	return true
}

func missingRequiredFields(in Input) []string {
	var missing []string
	for _, name := range RequiredFields[in.DocType] {
		if _, ok := in.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func averageFieldConfidence(fields map[string]domain.FieldValue) float64 {
	if len(fields) == 0 {
		return 1.0
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields))
}
