package tracking

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/souq/backend/internal/domain/tracking"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// RateLimiter counts hits per key over a sliding window
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventFilterConfig holds the fraud heuristics
type EventFilterConfig struct {
	// BaseURL is the public origin of the marketplace; referrers must share it.
	BaseURL              string
	AllowedReferrerPaths []string
	BotUserAgents        []string
	PerIPLimit           int
	PerIPProductLimit    int
	Window               time.Duration
}

// Signal is one click or engagement event to be judged
type Signal struct {
	Scope     string // "click" or "event"; rate limits are counted per scope
	ProductID uuid.UUID
	IPHash    string
	UserAgent string
	Referrer  string
}

// Verdict is the outcome of EventFilter.Evaluate
type Verdict struct {
	Qualified bool
	Reason    tracking.DisqualifyReason
}

func qualified() Verdict { return Verdict{Qualified: true} }

func rejected(reason tracking.DisqualifyReason) Verdict {
	return Verdict{Reason: reason}
}

// EventFilter applies bot, referrer and rate limit checks in that order.
// The checks never fail a request: limiter errors let the signal through.
type EventFilter struct {
	origin       string
	allowedPaths []string
	bots         []string
	perIP        int
	perPair      int
	window       time.Duration
	limiter      RateLimiter
	logger       *zap.Logger
}

// NewEventFilter creates a new EventFilter
func NewEventFilter(cfg EventFilterConfig, limiter RateLimiter, logger *zap.Logger) (*EventFilter, error) {
	origin, err := originOf(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bots := make([]string, 0, len(cfg.BotUserAgents))
	for _, b := range cfg.BotUserAgents {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			bots = append(bots, b)
		}
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Hour
	}
	return &EventFilter{
		origin:       origin,
		allowedPaths: cfg.AllowedReferrerPaths,
		bots:         bots,
		perIP:        cfg.PerIPLimit,
		perPair:      cfg.PerIPProductLimit,
		window:       window,
		limiter:      limiter,
		logger:       logger,
	}, nil
}

// Evaluate judges a signal. Rate limit slots are only consumed by signals
// that passed the bot and referrer checks.
func (f *EventFilter) Evaluate(ctx context.Context, s Signal) Verdict {
	ua := strings.ToLower(strings.TrimSpace(s.UserAgent))
	if ua == "" {
		return rejected(tracking.ReasonMissingUserAgent)
	}
	for _, bot := range f.bots {
		if strings.Contains(ua, bot) {
			return rejected(tracking.ReasonBotUserAgent)
		}
	}

	ref, err := url.Parse(strings.TrimSpace(s.Referrer))
	if err != nil || s.Referrer == "" || !strings.EqualFold(ref.Scheme+"://"+ref.Host, f.origin) {
		return rejected(tracking.ReasonForeignReferrer)
	}
	if !f.pathAllowed(ref.Path) {
		return rejected(tracking.ReasonReferrerPath)
	}

	if f.limiter == nil {
		return qualified()
	}
	ipKey := fmt.Sprintf("tracking:%s:ip:%s", s.Scope, s.IPHash)
	if !f.allow(ctx, ipKey, f.perIP) {
		return rejected(tracking.ReasonRateLimitedIP)
	}
	pairKey := fmt.Sprintf("%s:product:%s", ipKey, s.ProductID)
	if !f.allow(ctx, pairKey, f.perPair) {
		return rejected(tracking.ReasonRateLimitedPair)
	}
	return qualified()
}

func (f *EventFilter) allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	ok, err := f.limiter.Allow(ctx, key, limit, f.window)
	if err != nil {
		f.logger.Warn("Rate limiter unavailable, letting signal through",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	return ok
}

// pathAllowed matches "/" exactly and every other entry as a path prefix
// on a segment boundary
func (f *EventFilter) pathAllowed(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, allowed := range f.allowedPaths {
		if path == allowed {
			return true
		}
		if allowed == "/" {
			continue
		}
		prefix := strings.TrimSuffix(allowed, "/") + "/"
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("scheme and host are required")
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// IPHasher hashes client addresses with keyed BLAKE2b so raw IPs are never stored
type IPHasher struct {
	key []byte
}

// NewIPHasher creates a hasher. The key may be empty and at most 64 bytes.
func NewIPHasher(key string) (*IPHasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("ip hash key cannot exceed %d bytes", blake2b.Size)
	}
	return &IPHasher{key: []byte(key)}, nil
}

// Hash returns the hex digest of ip
func (h *IPHasher) Hash(ip string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Unreachable: the key length is checked in NewIPHasher
		panic(err)
	}
	mac.Write([]byte(strings.TrimSpace(ip)))
	return hex.EncodeToString(mac.Sum(nil))
}
