package records

import (
	"database/sql"
	"errors"
	"time"
)

func scanLanding(scanner interface{ Scan(dest ...any) error }) (*Landing, error) {
	var (
		landingID    string
		ownerID      int64
		title        sql.NullString
		prompt       sql.NullString
		assetCount   int
		soundCount   int
		missingCount int
		createdRaw   string
		completedRaw string
		durationMs   int64
	)
	if err := scanner.Scan(
		&landingID,
		&ownerID,
		&title,
		&prompt,
		&assetCount,
		&soundCount,
		&missingCount,
		&createdRaw,
		&completedRaw,
		&durationMs,
	); err != nil {
		return nil, err
	}

	rec := &Landing{
		LandingID:    landingID,
		OwnerID:      ownerID,
		Title:        title.String,
		Prompt:       prompt.String,
		AssetCount:   assetCount,
		SoundCount:   soundCount,
		MissingCount: missingCount,
		DurationMs:   durationMs,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if completed, err := parseTimeString(completedRaw); err == nil {
		rec.CompletedAt = completed
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
