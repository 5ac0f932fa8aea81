// Package breaker tracks per-provider cool-downs so a source known to be
// quota-exhausted is skipped instead of burned further.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"metalpulse/internal/provider"
)

// Breaker holds one disabled-until timestamp per provider. Only failures
// classified as explicit rate-limit/quota/plan signals open it; it closes
// itself once the cooldown elapses, with no explicit success call.
//
// A race between a concurrent check and a just-recorded failure can let one
// extra call through; that cost is bounded and accepted.
type Breaker struct {
	defaultCooldown time.Duration
	cooldowns       map[string]time.Duration
	now             func() time.Time
	logger          zerolog.Logger

	mu            sync.Mutex
	disabledUntil map[string]time.Time
}

// New constructs a breaker. cooldowns overrides the default per provider
// name; a zero default disables opening entirely.
func New(defaultCooldown time.Duration, cooldowns map[string]time.Duration, logger zerolog.Logger) *Breaker {
	return &Breaker{
		defaultCooldown: defaultCooldown,
		cooldowns:       cooldowns,
		now:             time.Now,
		logger:          logger.With().Str("component", "circuit_breaker").Logger(),
		disabledUntil:   make(map[string]time.Time),
	}
}

// Open reports whether calls to the provider must currently be skipped.
func (b *Breaker) Open(providerName string) bool {
	b.mu.Lock()
	until, ok := b.disabledUntil[providerName]
	b.mu.Unlock()

	return ok && b.now().Before(until)
}

// RecordFailure classifies err and, for rate-limit class failures, disables
// the provider for its cooldown. Generic transient errors leave the breaker
// untouched.
func (b *Breaker) RecordFailure(providerName string, err error) {
	if !provider.IsRateLimited(err) {
		return
	}

	cooldown := b.defaultCooldown
	if c, ok := b.cooldowns[providerName]; ok && c > 0 {
		cooldown = c
	}
	if cooldown <= 0 {
		return
	}

	until := b.now().Add(cooldown)

	b.mu.Lock()
	b.disabledUntil[providerName] = until
	b.mu.Unlock()

	b.logger.Warn().
		Str("provider", providerName).
		Time("disabled_until", until).
		Err(err).
		Msg("provider rate limited; circuit opened")
}
