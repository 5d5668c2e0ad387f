package view

type RateLimitDecision struct {
	Allowed     bool `json:"allowed"`
	Remaining   int  `json:"remaining"`
	Approaching bool `json:"approaching"`
}
