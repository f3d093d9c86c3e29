package classify

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"relay/internal/domain"
	"relay/internal/registry"
)

type Options struct {
	ConfidenceThreshold float64
	LexicalWeight       float64
	SemanticWeight      float64
}

func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.35,
		LexicalWeight:       0.5,
		SemanticWeight:      0.5,
	}
}

// continuityBoost nudges the capability invoked by the most recent dispatch,
// keeping multi-turn exchanges on the same capability when scores are close.
const continuityBoost = 0.05

// tokenOverlapCap keeps fuzzy token matches below whole-phrase containment.
const tokenOverlapCap = 0.8

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Classifier ranks registered capabilities against free-text input using a
// weighted sum of lexical trigger matching and embedding similarity. It is a
// pure function of (input, registry state, context snapshot) once primed, so
// repeated calls return identical rankings.
type Classifier struct {
	registry *registry.Registry
	embedder Embedder
	opts     Options
	logger   *slog.Logger

	mu        sync.RWMutex
	centroids map[string][]float64
}

func New(reg *registry.Registry, embedder Embedder, opts Options, logger *slog.Logger) *Classifier {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultOptions().ConfidenceThreshold
	}
	if opts.LexicalWeight <= 0 && opts.SemanticWeight <= 0 {
		opts.LexicalWeight = DefaultOptions().LexicalWeight
		opts.SemanticWeight = DefaultOptions().SemanticWeight
	}
	return &Classifier{
		registry:  reg,
		embedder:  embedder,
		opts:      opts,
		logger:    logger,
		centroids: make(map[string][]float64),
	}
}

// Prime computes and caches the trigger-phrase centroid for every registered
// capability. Embedding failures degrade that capability to lexical-only
// scoring; they never fail startup.
func (c *Classifier) Prime(ctx context.Context) {
	if c.embedder == nil {
		return
	}
	for _, cap := range c.registry.All() {
		centroid, err := c.triggerCentroid(ctx, cap.Triggers)
		if err != nil {
			c.logger.Warn("trigger centroid unavailable, capability degrades to lexical matching",
				"capability", cap.Name, "error", err)
			continue
		}
		c.mu.Lock()
		c.centroids[cap.Name] = centroid
		c.mu.Unlock()
	}
}

func (c *Classifier) triggerCentroid(ctx context.Context, triggers []string) ([]float64, error) {
	var centroid []float64
	for _, phrase := range triggers {
		vec, err := c.embedder.Embed(ctx, phrase)
		if err != nil {
			return nil, err
		}
		if centroid == nil {
			centroid = make([]float64, len(vec))
		}
		for i := range vec {
			centroid[i] += vec[i]
		}
	}
	if centroid == nil {
		return nil, nil
	}
	n := float64(len(triggers))
	for i := range centroid {
		centroid[i] /= n
	}
	return centroid, nil
}

// Classify returns candidates above the confidence threshold, most confident
// first. Ties keep registration order. An empty result means no intent was
// recognized; it is not an error.
func (c *Classifier) Classify(ctx context.Context, input string, snapshot []domain.ContextEntry) []domain.IntentCandidate {
	trimmed := strings.TrimSpace(input)
	normalized := strings.ToLower(trimmed)
	if normalized == "" {
		return nil
	}

	inputVec := c.embedInput(ctx, normalized)
	lastCapability := lastDispatchedCapability(snapshot)

	caps := c.registry.All()
	candidates := make([]domain.IntentCandidate, 0, len(caps))
	for _, cap := range caps {
		lex, matched := lexicalScore(normalized, cap.Triggers)
		combined := c.combine(cap.Name, lex, inputVec)
		if cap.Name == lastCapability {
			combined = math.Min(1.0, combined+continuityBoost)
		}
		if combined < c.opts.ConfidenceThreshold {
			continue
		}
		candidates = append(candidates, domain.IntentCandidate{
			Capability: cap.Name,
			Confidence: round(combined, 6),
			Parameters: extractParameters(trimmed, normalized, matched, cap.Parameters),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

func (c *Classifier) embedInput(ctx context.Context, input string) []float64 {
	if c.embedder == nil {
		return nil
	}
	c.mu.RLock()
	primed := len(c.centroids) > 0
	c.mu.RUnlock()
	if !primed {
		return nil
	}
	vec, err := c.embedder.Embed(ctx, input)
	if err != nil {
		c.logger.Warn("input embedding failed, falling back to lexical matching", "error", err)
		return nil
	}
	return vec
}

// combine applies the configured weighted sum. When the semantic leg is
// unavailable the lexical weight is renormalized to 1 rather than scoring
// the missing leg as zero.
func (c *Classifier) combine(capability string, lex float64, inputVec []float64) float64 {
	if inputVec == nil {
		return lex
	}
	c.mu.RLock()
	centroid, ok := c.centroids[capability]
	c.mu.RUnlock()
	if !ok || len(centroid) != len(inputVec) {
		return lex
	}
	sem := (cosine(inputVec, centroid) + 1) / 2
	total := c.opts.LexicalWeight + c.opts.SemanticWeight
	return (c.opts.LexicalWeight*lex + c.opts.SemanticWeight*sem) / total
}

// lexicalScore is the best score across trigger phrases: 1.0 when a whole
// phrase is contained in the input, otherwise token overlap capped below
// containment. Returns the longest contained phrase for parameter extraction.
func lexicalScore(input string, triggers []string) (float64, string) {
	best := 0.0
	matched := ""
	for _, raw := range triggers {
		phrase := normalize(raw)
		if phrase == "" {
			continue
		}
		if strings.Contains(input, phrase) {
			if best < 1.0 || len(phrase) > len(matched) {
				matched = phrase
			}
			best = 1.0
			continue
		}
		if best >= 1.0 {
			continue
		}
		if overlap := tokenOverlap(input, phrase) * tokenOverlapCap; overlap > best {
			best = overlap
		}
	}
	return best, matched
}

func tokenOverlap(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	shared := 0
	for tok := range bTokens {
		if _, ok := aTokens[tok]; ok {
			shared++
		}
	}
	union := len(aTokens) + len(bTokens) - shared
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		out[tok] = struct{}{}
	}
	return out
}

// extractParameters binds the text after a contained trigger phrase to the
// capability's first required string parameter, keeping the caller's original
// casing. Partial extraction is fine; handlers own full parameter validation.
func extractParameters(original, normalized, matchedPhrase string, params []domain.Parameter) map[string]any {
	if matchedPhrase == "" {
		return nil
	}
	idx := strings.Index(normalized, matchedPhrase)
	if idx < 0 {
		return nil
	}
	tail := normalized[idx+len(matchedPhrase):]
	// lowercase mapping keeps byte offsets only when it keeps the length
	if len(original) == len(normalized) {
		tail = original[idx+len(matchedPhrase):]
	}
	remainder := strings.Trim(tail, " \t.,!?")
	if remainder == "" {
		return nil
	}
	for _, p := range params {
		if p.Required && p.Type == "string" {
			return map[string]any{p.Name: remainder}
		}
	}
	return nil
}

func lastDispatchedCapability(snapshot []domain.ContextEntry) string {
	for i := len(snapshot) - 1; i >= 0; i-- {
		entry := snapshot[i]
		if entry.Role != domain.RoleSystem || len(entry.Payload) == 0 {
			continue
		}
		var result domain.DispatchResult
		if err := json.Unmarshal(entry.Payload, &result); err != nil {
			continue
		}
		if result.Success {
			return result.Capability
		}
		return ""
	}
	return ""
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
