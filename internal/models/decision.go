package models

// RuleResult is the per-rule audit record inside a RiskDecision.
type RuleResult struct {
	RuleID     string             `json:"rule_id"`
	Allowed    bool               `json:"allowed"`
	ReasonCode string             `json:"reason_code,omitempty"`
	Message    string             `json:"message,omitempty"`
	Metadata   map[string]float64 `json:"metadata,omitempty"`
}

// RiskDecision is the final or partial verdict of an evaluation. Reason
// codes are ordered, deduplicated, and present only when Allowed is false.
type RiskDecision struct {
	Allowed     bool         `json:"allowed"`
	ReasonCodes []string     `json:"reject_reason_codes,omitempty"`
	Message     string       `json:"message,omitempty"`
	RuleResults []RuleResult `json:"rule_results,omitempty"`
}

// NewAllowedDecision returns a decision that starts out allowed.
func NewAllowedDecision() RiskDecision {
	return RiskDecision{Allowed: true}
}

// AddRule records a rule result. A failing rule marks the decision denied
// and appends its reason code, keeping codes ordered and deduplicated.
func (d *RiskDecision) AddRule(r RuleResult) {
	d.RuleResults = append(d.RuleResults, r)
	if r.Allowed {
		return
	}
	d.Allowed = false
	if r.ReasonCode != "" {
		for _, c := range d.ReasonCodes {
			if c == r.ReasonCode {
				return
			}
		}
		d.ReasonCodes = append(d.ReasonCodes, r.ReasonCode)
	}
}

// Deny records a failing rule in one call.
func (d *RiskDecision) Deny(ruleID, code, message string, metadata map[string]float64) {
	d.AddRule(RuleResult{
		RuleID:     ruleID,
		Allowed:    false,
		ReasonCode: code,
		Message:    message,
		Metadata:   metadata,
	})
	if d.Message == "" {
		d.Message = message
	}
}

// Pass records a passing rule in one call.
func (d *RiskDecision) Pass(ruleID string, metadata map[string]float64) {
	d.AddRule(RuleResult{RuleID: ruleID, Allowed: true, Metadata: metadata})
}
