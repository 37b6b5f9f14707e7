// Package diff classifies local entities against platform entities into
// create, update, delete and unchanged sets.
package diff

import (
	"sort"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/fingerprint"
)

// Local is desired state at any level of the hierarchy.
type Local interface {
	LocalKey() string
	DisplayName() string
	IsDraft() bool
	ContentHash() string
	SyncFields() map[string]any
}

// Remote is observed platform state at any level of the hierarchy.
type Remote interface {
	PlatformKey() string
	LinkedLocalID() string
	DisplayName() string
	ContentHash() string
	SyncFields() map[string]any
}

type Options struct {
	IncludeDeleted bool     `json:"include_deleted"`
	IgnoreFields   []string `json:"ignore_fields,omitempty"`
}

// MatchKind records how a pair was linked.
type MatchKind string

const (
	MatchByLocalID MatchKind = "local_id"
	MatchByHash    MatchKind = "hash"
)

type Pair[L Local, R Remote] struct {
	Local    L         `json:"local"`
	Platform R         `json:"platform"`
	MatchBy  MatchKind `json:"match_by"`
}

type Update[L Local, R Remote] struct {
	Local         L         `json:"local"`
	Platform      R         `json:"platform"`
	MatchBy       MatchKind `json:"match_by"`
	ChangedFields []string  `json:"changed_fields"`
}

type Summary struct {
	CreateCount       int `json:"create_count"`
	UpdateCount       int `json:"update_count"`
	DeleteCount       int `json:"delete_count"`
	UnchangedCount    int `json:"unchanged_count"`
	EstimatedAPICalls int `json:"estimated_api_calls"`
}

type Result[L Local, R Remote] struct {
	Creates []L            `json:"creates"`
	Updates []Update[L, R] `json:"updates"`
	Deletes []R            `json:"deletes"`
	InSync  []Pair[L, R]   `json:"in_sync"`
	Skipped []L            `json:"skipped"`
	Summary Summary        `json:"summary"`
}

// Calculate matches locals to platform entities, localId first and content
// hash second, in time linear in the input sizes. Drafts still claim their
// linked platform entity but never produce an operation, and never take part
// in hash matching.
func Calculate[L Local, R Remote](local []L, platform []R, opts Options) Result[L, R] {
	res := Result[L, R]{
		Creates: []L{},
		Updates: []Update[L, R]{},
		Deletes: []R{},
		InSync:  []Pair[L, R]{},
		Skipped: []L{},
	}

	byLocalID := make(map[string]int, len(platform))
	byHash := make(map[string][]int, len(platform))
	for i, p := range platform {
		if id := p.LinkedLocalID(); id != "" {
			if _, exists := byLocalID[id]; !exists {
				byLocalID[id] = i
			}
		}
		h := p.ContentHash()
		byHash[h] = append(byHash[h], i)
	}

	consumed := make([]bool, len(platform))
	matched := make([]int, len(local))
	kinds := make([]MatchKind, len(local))

	// localId links are resolved for every local before any hash match, so a
	// hash match can never steal a platform entity another local is linked to.
	for i, l := range local {
		matched[i] = -1
		if j, ok := byLocalID[l.LocalKey()]; ok && !consumed[j] {
			consumed[j] = true
			matched[i] = j
			kinds[i] = MatchByLocalID
		}
	}
	for i, l := range local {
		if matched[i] >= 0 || l.IsDraft() {
			continue
		}
		queue := byHash[l.ContentHash()]
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if !consumed[j] {
				consumed[j] = true
				matched[i] = j
				kinds[i] = MatchByHash
				break
			}
		}
		byHash[l.ContentHash()] = queue
	}

	for i, l := range local {
		j := matched[i]
		if l.IsDraft() {
			res.Skipped = append(res.Skipped, l)
			continue
		}
		if j < 0 {
			res.Creates = append(res.Creates, l)
			continue
		}
		p := platform[j]
		lf, pf := l.SyncFields(), p.SyncFields()
		if fingerprint.Of(lf, opts.IgnoreFields...) == fingerprint.Of(pf, opts.IgnoreFields...) {
			res.InSync = append(res.InSync, Pair[L, R]{Local: l, Platform: p, MatchBy: kinds[i]})
			continue
		}
		res.Updates = append(res.Updates, Update[L, R]{
			Local: l, Platform: p, MatchBy: kinds[i],
			ChangedFields: ChangedFields(lf, pf, opts.IgnoreFields),
		})
	}

	if opts.IncludeDeleted {
		for j, p := range platform {
			if !consumed[j] {
				res.Deletes = append(res.Deletes, p)
			}
		}
	}

	res.Summary = Summary{
		CreateCount:    len(res.Creates),
		UpdateCount:    len(res.Updates),
		DeleteCount:    len(res.Deletes),
		UnchangedCount: len(res.InSync),
	}
	res.Summary.EstimatedAPICalls = res.Summary.CreateCount + res.Summary.UpdateCount + res.Summary.DeleteCount
	return res
}

// ChangedFields lists top-level keys whose values differ, sorted.
func ChangedFields(local, platform map[string]any, ignore []string) []string {
	skip := make(map[string]bool, len(ignore))
	for _, k := range ignore {
		skip[k] = true
	}
	var out []string
	seen := map[string]bool{}
	check := func(k string) {
		if seen[k] || skip[k] {
			return
		}
		seen[k] = true
		if !fingerprint.Equal(local[k], platform[k]) {
			out = append(out, k)
		}
	}
	for k := range local {
		check(k)
	}
	for k := range platform {
		check(k)
	}
	sort.Strings(out)
	return out
}
