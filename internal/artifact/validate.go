package artifact

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"landing/internal/services"
)

// MaxLandingIDLength bounds landing identifiers. UUIDs are 36 characters.
const MaxLandingIDLength = 64

var (
	landingIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)
	assetKeyPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ValidateLandingID rejects anything that is not a bounded alphanumeric and
// hyphen token. Identifiers are never sanitized.
func ValidateLandingID(id string) error {
	if !landingIDPattern.MatchString(id) {
		return services.Wrap(services.ErrValidation, "artifact", "validate landing id", "landing id must be 1-64 letters, digits, or hyphens", nil)
	}
	return nil
}

// ValidateOwnerID accepts positive identifiers that fit in 32 bits.
func ValidateOwnerID(id int64) error {
	if id <= 0 || id > math.MaxInt32 {
		return services.Wrap(services.ErrValidation, "artifact", "validate owner id", "owner id must be a positive integer", nil)
	}
	return nil
}

// ParseOwnerID parses an owner identifier from untrusted text. Signs,
// whitespace, and non-digit characters are rejected.
func ParseOwnerID(raw string) (int64, error) {
	if raw == "" || len(raw) > 10 || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, services.Wrap(services.ErrValidation, "artifact", "parse owner id", "owner id must be numeric", nil)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "artifact", "parse owner id", "owner id out of range", err)
	}
	if err := ValidateOwnerID(id); err != nil {
		return 0, err
	}
	return id, nil
}

// ValidAssetKey reports whether key can be used as an asset file stem and
// placeholder name.
func ValidAssetKey(key string) bool {
	return assetKeyPattern.MatchString(key)
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
