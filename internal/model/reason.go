package model

import (
	"fmt"
	"sort"
	"strings"
)

// PurgeReason is one of the closed set of policy violations that can put a
// user on the purge queue.
type PurgeReason string

const (
	ReasonActiveStatus   PurgeReason = "ACTIVE_STATUS"
	ReasonLastActive     PurgeReason = "LAST_ACTIVE"
	ReasonDuplicateEmail PurgeReason = "DUPLICATE_EMAIL"
	ReasonDuplicateName  PurgeReason = "DUPLICATE_NAME"
)

var reasonRank = map[PurgeReason]int{
	ReasonActiveStatus:   0,
	ReasonLastActive:     1,
	ReasonDuplicateEmail: 2,
	ReasonDuplicateName:  3,
}

// Valid reports whether r is a known reason.
func (r PurgeReason) Valid() bool {
	_, ok := reasonRank[r]
	return ok
}

// ParsePurgeReason accepts the wire form of a reason.
func ParsePurgeReason(s string) (PurgeReason, error) {
	r := PurgeReason(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown purge reason %q", ErrValidation, s)
	}
	return r, nil
}

// ReasonSet is a sorted, duplicate-free list of reasons. The zero value is
// an empty set. Sets are treated as values: Add and Union return new sets.
type ReasonSet []PurgeReason

// NewReasonSet builds a normalized set from rs, dropping unknown reasons.
func NewReasonSet(rs ...PurgeReason) ReasonSet {
	seen := make(map[PurgeReason]struct{}, len(rs))
	out := make(ReasonSet, 0, len(rs))
	for _, r := range rs {
		if !r.Valid() {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return reasonRank[out[i]] < reasonRank[out[j]] })
	return out
}

// Has reports membership.
func (s ReasonSet) Has(r PurgeReason) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}

// Add returns s with r included.
func (s ReasonSet) Add(r PurgeReason) ReasonSet {
	return NewReasonSet(append(append(ReasonSet{}, s...), r)...)
}

// Union returns the set of reasons present in either s or o.
// Union is idempotent and commutative.
func (s ReasonSet) Union(o ReasonSet) ReasonSet {
	all := make(ReasonSet, 0, len(s)+len(o))
	all = append(all, s...)
	all = append(all, o...)
	return NewReasonSet(all...)
}

// Equal compares two sets irrespective of input order.
func (s ReasonSet) Equal(o ReasonSet) bool {
	a, b := NewReasonSet(s...), NewReasonSet(o...)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Strings returns the wire form of every reason in order.
func (s ReasonSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

func (s ReasonSet) String() string { return strings.Join(s.Strings(), ",") }
