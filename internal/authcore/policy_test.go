package authcore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"archivecore.io/core/internal/domain"
)

func TestPolicyAdminAlwaysAllowed(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", Roles: []domain.Role{domain.RoleAdmin}}
	res := Resource{OwnerID: "other", Confidentiality: domain.ConfidentialityRestricted}
	dec := p.Evaluate(user, res)
	assert.True(t, dec.Allowed)
	assert.Equal(t, "admin_role", dec.Reason)
}

func TestPolicyClearanceSufficientAllows(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", ClearanceLevel: domain.ConfidentialityConfidential}
	res := Resource{OwnerID: "other", Confidentiality: domain.ConfidentialityInternal}
	dec := p.Evaluate(user, res)
	assert.True(t, dec.Allowed)
	assert.Equal(t, "clearance_sufficient", dec.Reason)
}

func TestPolicyDepartmentMatchAllows(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", Department: "finance", ClearanceLevel: domain.ConfidentialityPublic}
	res := Resource{OwnerID: "other", Department: "finance", Confidentiality: domain.ConfidentialityConfidential}
	dec := p.Evaluate(user, res)
	assert.True(t, dec.Allowed)
	assert.Equal(t, "department_match", dec.Reason)
}

func TestPolicyOwnerMatchAllows(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", Department: "eng", ClearanceLevel: domain.ConfidentialityPublic}
	res := Resource{OwnerID: "u1", Department: "finance", Confidentiality: domain.ConfidentialityConfidential}
	dec := p.Evaluate(user, res)
	assert.True(t, dec.Allowed)
	assert.Equal(t, "owner_match", dec.Reason)
}

func TestPolicyPublicDocumentAllows(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", Department: "eng"}
	res := Resource{OwnerID: "other", Department: "finance", Confidentiality: domain.ConfidentialityPublic}
	dec := p.Evaluate(user, res)
	assert.True(t, dec.Allowed)
	// Clearance 0 already meets a public document's level, so the
	// clearance rule matches before public_document is reached.
	assert.Equal(t, "clearance_sufficient", dec.Reason)
}

func TestPolicyFallsBackToDenyWithNoMatchingRule(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", Department: "eng", ClearanceLevel: domain.ConfidentialityPublic}
	res := Resource{OwnerID: "other", Department: "finance", Confidentiality: domain.ConfidentialityRestricted}
	dec := p.Evaluate(user, res)
	assert.False(t, dec.Allowed)
	assert.Equal(t, "no_matching_rule", dec.Reason)
}

func TestPolicyRuleOrderAdminBeatsEverythingElse(t *testing.T) {
	p := NewPolicy()
	user := domain.User{UserID: "u1", Roles: []domain.Role{domain.RoleAdmin}, ClearanceLevel: domain.ConfidentialityPublic}
	res := Resource{OwnerID: "other", Confidentiality: domain.ConfidentialityRestricted}
	dec := p.Evaluate(user, res)
	assert.Equal(t, "admin_role", dec.Reason)
}
