// Package model holds the campaign hierarchy shared by generation, diffing and sync.
package model

import (
	"fmt"
	"strconv"

	"github.com/spf13/cast"
)

// Row is one record of tabular input data: field name → scalar value.
type Row map[string]any

// Clone returns a shallow copy safe to mutate at the top level.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SourceID identifies the row for traceability; falls back to its position.
func (r Row) SourceID(index int) string {
	for _, k := range []string{"id", "_id", "row_id"} {
		if v, ok := r[k]; ok && v != nil {
			if s := Stringify(v); s != "" {
				return s
			}
		}
	}
	return "row-" + strconv.Itoa(index)
}

// Stringify renders a scalar row value as text. nil renders empty.
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// Platform is a target advertising platform.
type Platform string

const (
	PlatformReddit   Platform = "reddit"
	PlatformGoogle   Platform = "google"
	PlatformFacebook Platform = "facebook"
)

// IsValid reports whether p is a known platform.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformReddit, PlatformGoogle, PlatformFacebook:
		return true
	}
	return false
}

// Status is the local lifecycle state. Drafts never sync.
type Status string

const (
	StatusDraft Status = "draft"
	StatusReady Status = "ready"
)

func (s Status) IsValid() bool { return s == StatusDraft || s == StatusReady }

// EntityType names a level of the campaign hierarchy.
type EntityType string

const (
	EntityCampaign EntityType = "campaign"
	EntityAdGroup  EntityType = "ad_group"
	EntityAd       EntityType = "ad"
)
