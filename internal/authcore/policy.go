package authcore

import (
	"archivecore.io/core/internal/domain"
)

// Resource is the subset of a protected page's attributes the policy
// engine needs to reach a verdict, decoupling policy evaluation from
// the full Page type.
type Resource struct {
	OwnerID         string
	Department      string
	Confidentiality domain.Confidentiality
}

// ResourceFromPage projects a Page into the fields ABAC rules read.
func ResourceFromPage(p domain.Page) Resource {
	return Resource{
		OwnerID:         p.Owner,
		Department:      p.Department,
		Confidentiality: p.Confidentiality,
	}
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

// Rule is one ordered ABAC rule: it either reaches a verdict (ok) or
// abstains to let the next rule run.
type Rule struct {
	Reason string
	Match  func(user domain.User, res Resource) bool
}

// DefaultRules is the fixed, priority-ordered rule set (§4.6 Policy
// evaluation). The first matching rule wins; reaching the end without
// a match denies with reason "no_matching_rule".
var DefaultRules = []Rule{
	{
		Reason: "admin_role",
		Match:  func(user domain.User, _ Resource) bool { return user.IsAdmin() },
	},
	{
		Reason: "clearance_sufficient",
		Match: func(user domain.User, res Resource) bool {
			return user.ClearanceLevel >= res.Confidentiality
		},
	},
	{
		Reason: "department_match",
		Match: func(user domain.User, res Resource) bool {
			return res.Department != "" && user.Department == res.Department
		},
	},
	{
		Reason: "owner_match",
		Match: func(user domain.User, res Resource) bool {
			return res.OwnerID != "" && user.UserID == res.OwnerID
		},
	},
	{
		Reason: "public_document",
		Match:  func(_ domain.User, res Resource) bool { return res.Confidentiality == domain.ConfidentialityPublic },
	},
}

// Policy evaluates an ordered rule list against a user/resource pair.
type Policy struct {
	rules []Rule
}

// NewPolicy returns a Policy over the default rule set.
func NewPolicy() *Policy { return &Policy{rules: DefaultRules} }

// NewPolicyWithRules returns a Policy over a caller-supplied rule set,
// for tests or deployments needing a custom ordering.
func NewPolicyWithRules(rules []Rule) *Policy { return &Policy{rules: rules} }

// Evaluate returns the first matching rule's verdict, or a denial with
// reason "no_matching_rule" if none match.
func (p *Policy) Evaluate(user domain.User, res Resource) Decision {
	for _, r := range p.rules {
		if r.Match(user, res) {
			return Decision{Allowed: true, Reason: r.Reason}
		}
	}
	return Decision{Allowed: false, Reason: "no_matching_rule"}
}
