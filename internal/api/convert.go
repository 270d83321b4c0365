package api

import (
	"slices"
	"time"

	"landing/internal/artifact"
	"landing/internal/records"
)

// PreviewPath returns the authenticated preview route for a landing.
func PreviewPath(landingID string) string {
	return "/api/landings/" + landingID + "/preview"
}

// AssetPath returns the anonymous asset route prefix for a landing.
func AssetPath(landingID string) string {
	return "/asset/" + landingID + "/"
}

// FromBundle converts an on-disk bundle to its API representation.
func FromBundle(b artifact.Bundle) LandingSummary {
	meta := b.Metadata
	dto := LandingSummary{
		LandingID:     b.LandingID,
		OwnerID:       b.OwnerID,
		Title:         meta.Title,
		Prompt:        meta.Prompt,
		Assets:        nonNil(meta.Assets),
		Sounds:        nonNil(meta.Sounds),
		MissingAssets: meta.MissingAssets,
		CreatedAt:     formatTime(meta.CreatedAt),
		CompletedAt:   formatTime(meta.CompletedAt),
		DurationMs:    meta.DurationMs,
		PreviewURL:    PreviewPath(b.LandingID),
	}
	return dto
}

// FromBundles converts a slice of bundles, preserving order.
func FromBundles(bundles []artifact.Bundle) []LandingSummary {
	out := make([]LandingSummary, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, FromBundle(b))
	}
	return out
}

// FromRecord converts a durable record when the bundle itself is unavailable.
func FromRecord(rec *records.Landing) LandingSummary {
	if rec == nil {
		return LandingSummary{Assets: []string{}, Sounds: []string{}}
	}
	return LandingSummary{
		LandingID:   rec.LandingID,
		OwnerID:     rec.OwnerID,
		Title:       rec.Title,
		Prompt:      rec.Prompt,
		Assets:      []string{},
		Sounds:      []string{},
		CreatedAt:   formatTime(rec.CreatedAt),
		CompletedAt: formatTime(rec.CompletedAt),
		DurationMs:  rec.DurationMs,
		PreviewURL:  PreviewPath(rec.LandingID),
	}
}

// SortedStates returns the keys of a state histogram in stable order.
func SortedStates(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FormatTime renders t the way API payloads do, or "" for the zero time.
func FormatTime(t time.Time) string {
	return formatTime(t)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
