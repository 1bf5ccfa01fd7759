// Package catalog manages the safety-rule catalog: an immutable,
// priority-ordered rule set loaded from YAML or JSON bundles.
//
// Runtime mutation is copy-on-write: AddRule/RemoveRule build a whole new
// catalog version and swap it atomically, so concurrent evaluators never
// observe a half-updated rule set. Each version is content-addressed with a
// JCS-canonicalized SHA-256 hash.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gowebpki/jcs"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// DefaultEscalationThreshold applies when a rule omits its own threshold.
const DefaultEscalationThreshold = 0.8

// ConfigError is a fatal catalog-definition problem. It prevents the
// validator from starting rather than degrading silently.
type ConfigError struct {
	RuleID string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("catalog config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("catalog config: rule %q: %s: %s", e.RuleID, e.Field, e.Reason)
}

// CompiledRule pairs a rule with its compiled pattern. A pattern that fails
// to compile disables matching for that rule only; the rest of the catalog
// stays live.
type CompiledRule struct {
	contracts.SafetyRule
	Regexp     *regexp.Regexp
	PatternErr error
}

// Catalog is one immutable catalog version. Rules are pre-sorted by
// priority descending at construction; evaluation order follows this order
// but never short-circuits — every rule is always evaluated.
type Catalog struct {
	rules   []CompiledRule
	version uint64
	hash    string
}

var versionCounter atomic.Uint64

// New builds a catalog from validated rules. Enum tags must already be
// typed; New enforces value ranges, required fields, defaults, and pattern
// compilation.
func New(rules []contracts.SafetyRule) (*Catalog, error) {
	compiled := make([]CompiledRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))

	for _, r := range rules {
		if r.ID == "" {
			return nil, &ConfigError{Field: "id", Reason: "missing"}
		}
		if seen[r.ID] {
			return nil, &ConfigError{RuleID: r.ID, Field: "id", Reason: "duplicate"}
		}
		seen[r.ID] = true

		if _, err := contracts.ParseSafetyLevel(string(r.Level)); err != nil {
			return nil, &ConfigError{RuleID: r.ID, Field: "level", Reason: err.Error()}
		}
		if _, err := contracts.ParseValidationStrategy(string(r.Strategy)); err != nil {
			return nil, &ConfigError{RuleID: r.ID, Field: "validation_type", Reason: err.Error()}
		}
		if r.CrisisType != "" {
			if _, err := contracts.ParseCrisisType(string(r.CrisisType)); err != nil {
				return nil, &ConfigError{RuleID: r.ID, Field: "crisis_type", Reason: err.Error()}
			}
		}
		if r.Sensitivity < 0 || r.Sensitivity > 1 {
			return nil, &ConfigError{RuleID: r.ID, Field: "sensitivity", Reason: "must be in [0,1]"}
		}
		if r.EscalationThreshold == 0 {
			r.EscalationThreshold = DefaultEscalationThreshold
		}
		if r.EscalationThreshold < 0 || r.EscalationThreshold > 1 {
			return nil, &ConfigError{RuleID: r.ID, Field: "escalation_threshold", Reason: "must be in [0,1]"}
		}

		cr := CompiledRule{SafetyRule: r}
		if r.Pattern != "" {
			pattern := r.Pattern
			if r.CaseInsensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				// Recovered locally: this rule contributes no findings.
				cr.PatternErr = fmt.Errorf("rule %q pattern: %w", r.ID, err)
			} else {
				cr.Regexp = re
			}
		}
		compiled = append(compiled, cr)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	hash, err := contentHash(rules)
	if err != nil {
		return nil, fmt.Errorf("catalog hash: %w", err)
	}

	return &Catalog{
		rules:   compiled,
		version: versionCounter.Add(1),
		hash:    hash,
	}, nil
}

// Rules returns the catalog's rules in evaluation order. The slice is
// shared; callers must not mutate it.
func (c *Catalog) Rules() []CompiledRule { return c.rules }

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Version is the process-local monotonic version number.
func (c *Catalog) Version() uint64 { return c.version }

// Hash is the content-addressed identity of this catalog version.
func (c *Catalog) Hash() string { return c.hash }

// Rule looks up a rule by id.
func (c *Catalog) Rule(id string) (CompiledRule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return r, true
		}
	}
	return CompiledRule{}, false
}

func contentHash(rules []contracts.SafetyRule) (string, error) {
	// Hash a sorted copy so ordering in config files does not change identity.
	sorted := make([]contracts.SafetyRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	raw, err := json.Marshal(sorted)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Holder publishes the active catalog version. Swaps are atomic with
// respect to concurrent evaluators.
type Holder struct {
	current  atomic.Pointer[Catalog]
	mu       sync.Mutex // serializes writers, not readers
	onReload func(*Catalog)
}

// NewHolder creates a holder seeded with the given catalog.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// OnReload registers a callback invoked after every successful swap.
func (h *Holder) OnReload(fn func(*Catalog)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = fn
}

// Current returns the active catalog version.
func (h *Holder) Current() *Catalog { return h.current.Load() }

// Swap replaces the active catalog.
func (h *Holder) Swap(c *Catalog) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current.Store(c)
	if h.onReload != nil {
		h.onReload(c)
	}
}

// AddRule builds a new catalog version containing the extra rule and swaps
// it in. Subsequent evaluations see the new rule; in-flight ones do not.
func (h *Holder) AddRule(rule contracts.SafetyRule) (*Catalog, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.current.Load()
	rules := make([]contracts.SafetyRule, 0, cur.Len()+1)
	for _, r := range cur.Rules() {
		rules = append(rules, r.SafetyRule)
	}
	rules = append(rules, rule)

	next, err := New(rules)
	if err != nil {
		return nil, err
	}
	h.current.Store(next)
	if h.onReload != nil {
		h.onReload(next)
	}
	return next, nil
}

// RemoveRule builds a new catalog version without the named rule. Returns
// false when the rule is unknown; the catalog is left untouched.
func (h *Holder) RemoveRule(id string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.current.Load()
	rules := make([]contracts.SafetyRule, 0, cur.Len())
	found := false
	for _, r := range cur.Rules() {
		if r.ID == id {
			found = true
			continue
		}
		rules = append(rules, r.SafetyRule)
	}
	if !found {
		return false, nil
	}

	next, err := New(rules)
	if err != nil {
		return false, err
	}
	h.current.Store(next)
	if h.onReload != nil {
		h.onReload(next)
	}
	return true, nil
}
