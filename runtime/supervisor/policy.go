package supervisor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// Rule maps an exception signal to a resolution strategy. Rules are data
	// the model consults, not code paths: the supervisor renders the active
	// rule set into its prompt, so new exception classes are added by editing
	// the policy, never the loop.
	Rule struct {
		// Class is the classification label assigned when the rule matches.
		Class string `yaml:"class"`
		// Signal is the human-readable description of the exception signal.
		Signal string `yaml:"signal"`
		// Keywords match against the exception status, reason, and driver
		// notes (case-insensitive substring). Any keyword matching selects
		// the rule.
		Keywords []string `yaml:"keywords"`
		// MinOrderValue additionally requires the order value to exceed this
		// amount. Zero disables the check.
		MinOrderValue float64 `yaml:"minOrderValue,omitempty"`
		// Strategy is the resolution strategy the model should follow.
		Strategy string `yaml:"strategy"`
	}

	// Policy is the ordered decision table. The first matching rule wins, so
	// more specific rules (high order value) come before general ones.
	Policy struct {
		// Rules are evaluated in order.
		Rules []Rule `yaml:"rules"`
		// Fallback is the classification assigned when no rule matches.
		Fallback Rule `yaml:"fallback"`
	}
)

// DefaultPolicy returns the built-in decision table for delivery exceptions.
func DefaultPolicy() *Policy {
	return &Policy{
		Rules: []Rule{
			{
				Class:         "damaged_or_lost_high_value",
				Signal:        "order value over $200 and package damaged or lost",
				Keywords:      []string{"damaged", "lost"},
				MinOrderValue: 200,
				Strategy:      "refund the order with the expedite flag set, then allocate replacement inventory, then recreate the order, then notify the customer; treat as priority",
			},
			{
				Class:    "loss_or_theft",
				Signal:   "complete loss or theft of the package",
				Keywords: []string{"theft", "stolen", "complete loss"},
				Strategy: "issue an immediate full refund, then allocate replacement inventory, then recreate the order, then notify the customer",
			},
			{
				Class:    "damaged_or_lost",
				Signal:   "package damaged or lost in transit",
				Keywords: []string{"damaged", "lost"},
				Strategy: "refund the order, then allocate replacement inventory, then recreate the order, then notify the customer",
			},
			{
				Class:    "customer_not_home",
				Signal:   "first-attempt customer not home or access issue",
				Keywords: []string{"customer not home", "not home", "access"},
				Strategy: "notify the customer and update the order status; do not refund",
			},
			{
				Class:    "repeated_failed_attempts",
				Signal:   "three or more failed delivery attempts",
				Keywords: []string{"third attempt", "3 attempts", "failed attempts", "multiple attempts"},
				Strategy: "notify the customer to arrange pickup; if the customer is unreachable after the grace window, refund the order, cancel it, and send a final notice",
			},
		},
		Fallback: Rule{
			Class:    "unclassifiable",
			Signal:   "anything not matched above",
			Strategy: "send a direct customer notification only; take no other action",
		},
	}
}

// LoadPolicy reads a policy table from a YAML file. Operators override the
// default table without a rebuild.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if len(p.Rules) == 0 {
		return nil, fmt.Errorf("policy %s defines no rules", path)
	}
	if p.Fallback.Class == "" {
		p.Fallback = DefaultPolicy().Fallback
	}
	return &p, nil
}

// Classify returns the classification label of the first rule matching the
// exception, or the fallback class. Classification is bookkeeping for the
// resolution summary; the model consults the full table independently.
func (p *Policy) Classify(exc Exception) string {
	haystack := strings.ToLower(strings.Join([]string{exc.Status.Status, exc.Status.Reason, exc.DriverNotes}, " "))
	for _, r := range p.Rules {
		if r.MinOrderValue > 0 && exc.OrderValue <= r.MinOrderValue {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return r.Class
			}
		}
	}
	return p.Fallback.Class
}

// Render formats the decision table for inclusion in the supervisor's system
// prompt.
func (p *Policy) Render() string {
	var b strings.Builder
	b.WriteString("Decision policy (first matching signal wins):\n")
	for _, r := range p.Rules {
		fmt.Fprintf(&b, "- %s: %s\n", r.Signal, r.Strategy)
	}
	fmt.Fprintf(&b, "- %s: %s\n", p.Fallback.Signal, p.Fallback.Strategy)
	return b.String()
}
