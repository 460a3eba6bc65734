package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSlugAttempts bounds the numeric suffix probe
const DefaultMaxSlugAttempts = 20

const maxSlugTitleRunes = 60

// Slugify lowercases s, strips combining marks and collapses every run of
// characters that is not a letter or digit into a single hyphen. Letters of
// any script are kept so Arabic titles stay readable.
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	count := 0
	for _, r := range strings.ToLower(folded) {
		if count >= maxSlugTitleRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
				count++
			}
			b.WriteRune(r)
			count++
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	return strings.Trim(b.String(), "-")
}

// BaseProductSlug synthesizes {merchantId}-{externalId}-{slugified title}
func BaseProductSlug(merchantID uuid.UUID, externalID, title string) string {
	base := fmt.Sprintf("%s-%s", merchantID, Slugify(externalID))
	if titled := Slugify(title); titled != "" {
		base += "-" + titled
	}
	return base
}

// CategorySlug builds a merchant-scoped category slug
func CategorySlug(name, externalID string) string {
	if s := Slugify(name); s != "" {
		return s + "-" + Slugify(externalID)
	}
	return "category-" + Slugify(externalID)
}

// SlugChecker reports whether a slug is already taken
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// AllocateSlug probes base, base-2, base-3 ... until a free slug is found.
// It returns ErrSlugExhausted after maxAttempts probes.
func AllocateSlug(ctx context.Context, checker SlugChecker, base string, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSlugAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		taken, err := checker.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrSlugExhausted, base, maxAttempts)
}
