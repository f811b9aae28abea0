package conflict

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/todmy/beauty-analyzer/internal/ingredient"
	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/internal/logger"
	"github.com/todmy/beauty-analyzer/internal/rules"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// Config holds engine tuning
type Config struct {
	RetrievalThreshold float64
	RetrievalTimeout   time.Duration
	RuleTimeout        time.Duration
	MaxConcurrent      int
	DescriptionLimit   int
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		RetrievalThreshold: 0.6,
		RetrievalTimeout:   10 * time.Second,
		RuleTimeout:        2 * time.Second,
		MaxConcurrent:      5,
		DescriptionLimit:   200,
	}
}

// Engine detects and scores ingredient conflicts across a product set.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	config    Config
	rules     *rules.Set
	rule      Detector
	heuristic *HeuristicDetector
	retrieval Detector
	log       *logger.Logger
	now       func() time.Time
}

// NewEngine creates an engine. store and retriever are optional; the matching
// detector is skipped when nil.
func NewEngine(config Config, set *rules.Set, store RuleStore, retriever knowledge.Retriever, log *logger.Logger) *Engine {
	defaults := DefaultConfig()
	if config.RetrievalThreshold <= 0 {
		config.RetrievalThreshold = defaults.RetrievalThreshold
	}
	if config.RetrievalTimeout <= 0 {
		config.RetrievalTimeout = defaults.RetrievalTimeout
	}
	if config.RuleTimeout <= 0 {
		config.RuleTimeout = defaults.RuleTimeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.DescriptionLimit <= 0 {
		config.DescriptionLimit = defaults.DescriptionLimit
	}
	if set == nil {
		set = rules.Default()
	}

	e := &Engine{
		config:    config,
		rules:     set,
		heuristic: NewHeuristicDetector(set.Heuristics),
		log:       logger.OrNop(log).With("component", "conflict"),
		now:       time.Now,
	}
	if store != nil {
		e.rule = NewRuleDetector(store)
	}
	if retriever != nil {
		e.retrieval = NewRetrievalDetector(retriever, config.RetrievalThreshold, set.Retrieval, config.DescriptionLimit)
	}
	return e
}

// Analyze runs every detector over every ingredient pair of the products and
// aggregates the verdicts. It never fails: collaborator errors degrade single
// detectors, and anything worse yields a report flagged Degraded.
func (e *Engine) Analyze(ctx context.Context, products []models.Product, profile models.UserProfile) (report *Report) {
	// an analysis runs to completion once started
	ctx = context.WithoutCancel(ctx)

	in := collect(products)

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("conflict analysis panicked", "panic", r)
			report = e.fallback(in)
		}
	}()

	e.log.Info("analyzing conflicts", "products", len(products), "ingredients", len(in.ingredients))
	if len(in.unresolved) > 0 {
		e.log.Warn("products without usable ingredients", "products", in.unresolved)
	}

	report, err := e.analyze(ctx, in, profile)
	if err != nil {
		e.log.Error("conflict analysis failed", "error", err)
		return e.fallback(in)
	}

	e.log.Info("conflict analysis complete",
		"conflicts", len(report.Conflicts),
		"risk", report.OverallRiskScore,
	)
	return report
}

type input struct {
	products      []models.Product
	names         []string
	ingredients   []string
	unresolved    []string
	byProductName map[string]map[string]bool
}

func collect(products []models.Product) input {
	in := input{
		products:      products,
		names:         make([]string, 0, len(products)),
		byProductName: make(map[string]map[string]bool, len(products)),
	}

	var all []string
	for _, p := range products {
		in.names = append(in.names, p.Name)
		active := ingredient.NormalizeSet(p.ActiveIngredients())
		if len(active) == 0 {
			in.unresolved = append(in.unresolved, p.Name)
		}
		set := make(map[string]bool, len(active))
		for _, n := range active {
			set[n] = true
		}
		in.byProductName[p.Name] = set
		all = append(all, active...)
	}
	in.ingredients = ingredient.NormalizeSet(all)
	return in
}

func (e *Engine) analyze(ctx context.Context, in input, profile models.UserProfile) (*Report, error) {
	pairs := allPairs(in.ingredients)
	slots := make([]*Verdict, len(pairs))

	g := new(errgroup.Group)
	g.SetLimit(e.config.MaxConcurrent)
	for i, pair := range pairs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("pair %s: panic: %v", pair, r)
				}
			}()
			v, err := e.detectPair(ctx, pair, profile)
			if err != nil {
				return err
			}
			slots[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	verdicts := make([]Verdict, 0, len(slots)+1)
	for _, v := range slots {
		if v != nil {
			verdicts = append(verdicts, *v)
		}
	}

	if sig := e.heuristic.DetectSet(in.ingredients); sig != nil {
		v, err := Merge(NewPair(sig.Involved[0], MultipleSensitizers), []Signal{*sig})
		if err != nil {
			return nil, err
		}
		e.finalize(v, profile)
		verdicts = append(verdicts, *v)
	}

	verdicts = Deduplicate(verdicts)

	report := e.buildReport(in, verdicts, profile)
	if err := validate(report); err != nil {
		return nil, err
	}
	return report, nil
}

// detectPair runs the detectors for one pair. Collaborator failures are logged and
// dropped; only a merge failure is returned.
func (e *Engine) detectPair(ctx context.Context, pair Pair, profile models.UserProfile) (*Verdict, error) {
	signals := make([]Signal, 0, 3)

	if e.rule != nil {
		sig, err := callWithTimeout(ctx, e.config.RuleTimeout, func(ctx context.Context) (Signal, error) {
			return e.rule.Detect(ctx, pair, profile)
		})
		if err != nil {
			e.log.Warn("rule detector degraded", "pair", pair.String(), "error", err)
		} else if sig != nil {
			signals = append(signals, sig)
		}
	}

	sig, err := e.heuristic.Detect(ctx, pair, profile)
	if err != nil {
		e.log.Warn("heuristic detector degraded", "pair", pair.String(), "error", err)
	} else if sig != nil {
		signals = append(signals, sig)
	}

	if e.retrieval != nil {
		sig, err := callWithTimeout(ctx, e.config.RetrievalTimeout, func(ctx context.Context) (Signal, error) {
			return e.retrieval.Detect(ctx, pair, profile)
		})
		if err != nil {
			e.log.Warn("retrieval detector degraded", "pair", pair.String(), "error", err)
		} else if sig != nil {
			signals = append(signals, sig)
		}
	}

	v, err := Merge(pair, signals)
	if err != nil || v == nil {
		return nil, err
	}
	e.finalize(v, profile)
	return v, nil
}

func (e *Engine) finalize(v *Verdict, profile models.UserProfile) {
	AdjustForSensitivity(v, profile.Sensitivity)
	v.Recommendations = verdictRecommendations(*v)
}

// callWithTimeout bounds a collaborator call. A call that ignores its context is
// abandoned when the deadline passes; a panicking call becomes an error.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("collaborator panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func allPairs(names []string) []Pair {
	pairs := make([]Pair, 0, len(names)*(len(names)-1)/2)
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			pairs = append(pairs, NewPair(names[i], names[j]))
		}
	}
	return pairs
}

// Deduplicate collapses verdicts by unordered pair, keeping the one with the highest
// severity and then the highest confidence. First-seen order is preserved.
func Deduplicate(verdicts []Verdict) []Verdict {
	index := make(map[Pair]int, len(verdicts))
	out := make([]Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		key := v.Key()
		if i, ok := index[key]; ok {
			if v.outranks(out[i]) {
				out[i] = v
			}
			continue
		}
		index[key] = len(out)
		out = append(out, v)
	}
	return out
}
