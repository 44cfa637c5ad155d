// Package policy turns a directory roster into purge candidates.
//
// Evaluate is pure: it never touches storage or the network, and the same
// inputs always produce the same output regardless of how the pairwise
// duplicate scan is split across workers.
package policy

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/model"
)

// DefaultSimilarityThreshold is the similarity at or above which two names
// (or two emails) count as duplicates.
const DefaultSimilarityThreshold = 0.8

// Options tunes the evaluator.
type Options struct {
	SimilarityThreshold float64
	// Workers bounds the pairwise scan fan-out. Values <= 1 scan inline.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// Candidates maps a user id to the reasons it should be purged for.
type Candidates map[string]model.ReasonSet

func (c Candidates) add(userID string, r model.PurgeReason) {
	c[userID] = c[userID].Add(r)
}

func (c Candidates) merge(o Candidates) {
	for id, rs := range o {
		c[id] = c[id].Union(rs)
	}
}

// Evaluate applies p to roster at now.
func Evaluate(p model.Policy, roster []model.DirectoryUser, now time.Time, opts Options) Candidates {
	opts = opts.withDefaults()
	out := Candidates{}

	if p.CheckDoubleName || p.CheckDoubleEmail {
		out.merge(duplicates(p, roster, opts))
	}

	for _, u := range roster {
		if p.CheckActiveStatus && !u.Active {
			out.add(u.ID, model.ReasonActiveStatus)
		}
		if p.LastActiveDays > 0 && Inactive(u, p.LastActiveDays, now) {
			out.add(u.ID, model.ReasonLastActive)
		}
	}
	return out
}

// Inactive reports whether u has not been seen within days of now.
func Inactive(u model.DirectoryUser, days int, now time.Time) bool {
	return !u.EffectiveLastActive().Add(time.Duration(days) * model.Day).After(now)
}

// duplicates compares every unordered pair once. Row i is owned by worker
// i % workers so the triangular workload spreads evenly; partial results
// are merged in worker order.
func duplicates(p model.Policy, roster []model.DirectoryUser, opts Options) Candidates {
	workers := opts.Workers
	if workers > len(roster) {
		workers = len(roster)
	}
	if workers <= 1 {
		part := Candidates{}
		scanRows(p, roster, opts.SimilarityThreshold, 0, 1, part)
		return part
	}

	parts := make([]Candidates, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		parts[w] = Candidates{}
		g.Go(func() error {
			scanRows(p, roster, opts.SimilarityThreshold, w, workers, parts[w])
			return nil
		})
	}
	_ = g.Wait()

	out := Candidates{}
	for _, part := range parts {
		out.merge(part)
	}
	return out
}

func scanRows(p model.Policy, roster []model.DirectoryUser, threshold float64, start, step int, out Candidates) {
	for i := start; i < len(roster); i += step {
		for j := i + 1; j < len(roster); j++ {
			a, b := roster[i], roster[j]
			if a.ID == b.ID {
				continue
			}
			flagged := later(a, b).ID
			if p.CheckDoubleName && Similarity(a.DisplayName, b.DisplayName) >= threshold {
				out.add(flagged, model.ReasonDuplicateName)
			}
			if p.CheckDoubleEmail && Similarity(a.Email, b.Email) >= threshold {
				out.add(flagged, model.ReasonDuplicateEmail)
			}
		}
	}
}

// later picks the more recently created of a pair; on a tie the second one.
func later(a, b model.DirectoryUser) model.DirectoryUser {
	if a.Created.After(b.Created) {
		return a
	}
	return b
}
