package models

import "strings"

const reasonSeparator = "; "

// RowRule is one declarative validation rule for a silver record. Failed
// reports whether the record violates the rule; Reason is recorded verbatim
// in the rejection audit. Predicates must not touch the database, rule
// evaluation is pure.
type RowRule[T any] struct {
	Reason string
	Failed func(rec *T) bool
}

// EvaluateRowRules collects the reasons of every rule the record violates,
// in declaration order. An empty result means the record is accepted.
func EvaluateRowRules[T any](rec *T, rules []RowRule[T]) []string {
	var reasons []string
	for _, rule := range rules {
		if rule.Failed(rec) {
			reasons = append(reasons, rule.Reason)
		}
	}
	return reasons
}

// JoinReasons renders accumulated reasons as the single audit string.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, reasonSeparator)
}
