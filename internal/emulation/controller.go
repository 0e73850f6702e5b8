// Package emulation keeps element hiding filters with extended selectors
// applied to a live document. A Controller evaluates the filters once when
// applied and again whenever the document changes or the poll timer fires,
// reporting only what is new to its callbacks.
package emulation

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/bnema/elemhide/internal/dom"
	"github.com/bnema/elemhide/internal/dom/mutation"
	"github.com/bnema/elemhide/internal/models"
	"github.com/bnema/elemhide/internal/selector"
	"github.com/bnema/elemhide/internal/style"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DefaultPollInterval is how often the filters that match on computed style
// are re-evaluated, to catch style changes that mutations do not report.
const DefaultPollInterval = 3 * time.Second

// ErrNotIdle is returned by Apply on a controller that was already applied
// or torn down
var ErrNotIdle = errors.New("emulation: controller is not idle")

// Provider hands the patterns to evaluate to deliver. It may call deliver
// synchronously or later from another goroutine; only the first call counts.
type Provider func(deliver func([]models.Pattern))

// SelectorsFunc receives new plain CSS selectors to hide, together with the
// text of the filter each one came from
type SelectorsFunc func(selectors, filters []string)

// ElementsFunc receives new elements to hide, together with the text of the
// filter each one came from
type ElementsFunc func(elements []*html.Node, filters []string)

// State is the lifecycle state of a Controller
type State int

const (
	StateIdle State = iota
	StateActive
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Stats counts what a controller did
type Stats struct {
	Patterns  int // patterns delivered
	Chains    int // selector groups that parsed
	Dropped   int // selector groups that failed to parse
	Passes    int
	Evaluated int // rule evaluations over all passes
	Selectors int // selectors reported to SelectorsFunc
	Elements  int // elements reported to ElementsFunc
}

// Option configures a Controller
type Option func(*Controller)

// WithPollInterval sets the re-evaluation period. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

type rule struct {
	chain  []selector.Selector
	text   string
	styled bool // matches on computed style
}

// Controller applies element hiding emulation filters to one document
type Controller struct {
	doc          *dom.Document
	provider     Provider
	addSelectors SelectorsFunc
	hideElements ElementsFunc
	pollInterval time.Duration
	logger       *zap.Logger

	mu            sync.Mutex
	state         State
	stats         Stats
	cancelObserve func()
	running       bool

	// passMu serializes passes and guards the fields below
	passMu           sync.Mutex
	rules            []rule
	appliedSelectors map[string]struct{}
	hiddenElements   map[*html.Node]struct{}

	pending chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// New creates an idle controller for doc. addSelectors and hideElements are
// called after each pass that found something new, outside of any document
// lock, so they may mutate the document.
func New(doc *dom.Document, provider Provider, addSelectors SelectorsFunc, hideElements ElementsFunc, opts ...Option) *Controller {
	c := &Controller{
		doc:              doc,
		provider:         provider,
		addSelectors:     addSelectors,
		hideElements:     hideElements,
		pollInterval:     DefaultPollInterval,
		logger:           zap.NewNop(),
		appliedSelectors: make(map[string]struct{}),
		hiddenElements:   make(map[*html.Node]struct{}),
		pending:          make(chan struct{}, 1),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply asks the provider for patterns. When they are delivered the
// controller evaluates them once, then keeps them applied until TearDown is
// called or ctx is cancelled.
func (c *Controller) Apply(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.state = StateActive
	c.mu.Unlock()

	var once sync.Once
	c.provider(func(patterns []models.Pattern) {
		once.Do(func() {
			c.start(ctx, patterns)
		})
	})
	return nil
}

func (c *Controller) start(ctx context.Context, patterns []models.Pattern) {
	c.load(patterns)

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.cancelObserve = c.doc.Observe(func(records []mutation.Record) {
		c.logMutations(records)
		c.schedule()
	})
	c.mu.Unlock()

	c.pass(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return
	}
	c.running = true
	go c.loop(ctx)
}

// load splits and parses the delivered patterns
func (c *Controller) load(patterns []models.Pattern) {
	var rules []rule
	dropped := 0
	for _, p := range patterns {
		chains, errs := selector.ParseList(p.Selector)
		for _, err := range errs {
			c.logger.Warn("dropping selector group",
				zap.String("filter", p.Text),
				zap.Error(err))
		}
		dropped += len(errs)
		for _, chain := range chains {
			rules = append(rules, rule{chain: chain, text: p.Text, styled: selector.DependsOnStyle(chain)})
		}
	}

	c.passMu.Lock()
	c.rules = rules
	c.passMu.Unlock()

	c.mu.Lock()
	c.stats.Patterns = len(patterns)
	c.stats.Chains = len(rules)
	c.stats.Dropped = dropped
	c.mu.Unlock()

	c.logger.Debug("patterns loaded",
		zap.Int("patterns", len(patterns)),
		zap.Int("chains", len(rules)),
		zap.Int("dropped", dropped))
}

// logMutations summarizes a batch of mutations by operation
func (c *Controller) logMutations(records []mutation.Record) {
	if ce := c.logger.Check(zap.DebugLevel, "document mutated"); ce != nil {
		ops := make(map[mutation.Op]int)
		for _, r := range records {
			ops[r.Op]++
		}
		ce.Write(
			zap.Int("records", len(records)),
			zap.Int("inserted", ops[mutation.OpInsert]),
			zap.Int("removed", ops[mutation.OpRemove]),
			zap.Int("attributes", ops[mutation.OpAttr]+ops[mutation.OpAttrDel]),
			zap.Int("text", ops[mutation.OpText]),
			zap.Bool("structural", mutation.Structural(records)))
	}
}

// schedule requests a pass. Requests made while one is pending coalesce.
func (c *Controller) schedule() {
	select {
	case c.pending <- struct{}{}:
	default:
	}
}

func (c *Controller) loop(ctx context.Context) {
	defer close(c.done)

	var tick <-chan time.Time
	if c.pollInterval > 0 {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			go c.TearDown()
			return
		case <-tick:
			// mutations are observed, only computed style can change unseen
			c.pass(true)
		case <-c.pending:
			c.pass(false)
		}
	}
}

// Outcome is one thing a pass found: a plain CSS selector to hide, or an
// element to hide directly. Filter is the text of the originating filter.
type Outcome struct {
	Selector string
	Element  *html.Node
	Filter   string
}

// pass evaluates the rules against the current document and reports what
// was not reported before. With stylesOnly set only the rules that depend on
// computed style are evaluated.
func (c *Controller) pass(stylesOnly bool) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	if c.State() != StateActive {
		return
	}

	var outcomes []Outcome
	evaluated := 0
	c.doc.View(func(root *html.Node) {
		styles, err := style.Compile(dom.StyleSheets(root)...)
		if err != nil {
			c.logger.Debug("ignoring unsupported style rules", zap.Error(err))
		}

		for _, r := range c.rules {
			if stylesOnly && !r.styled {
				continue
			}
			evaluated++

			if !selector.RequiresHiding(r.chain) {
				for sel := range selector.Evaluate(r.chain, "", root, styles) {
					if _, ok := c.appliedSelectors[sel]; ok || !selector.Valid(sel) {
						continue
					}
					c.appliedSelectors[sel] = struct{}{}
					outcomes = append(outcomes, Outcome{Selector: sel, Filter: r.text})
				}
				continue
			}

			for el := range matchedElements(r.chain, root, styles) {
				if _, ok := c.hiddenElements[el]; ok {
					continue
				}
				c.hiddenElements[el] = struct{}{}
				outcomes = append(outcomes, Outcome{Element: el, Filter: r.text})
			}
		}
	})

	c.dispatch(outcomes, evaluated)
}

// dispatch hands new outcomes to the callbacks, selectors first
func (c *Controller) dispatch(outcomes []Outcome, evaluated int) {
	var (
		selectors, selectorFilters []string
		elements                   []*html.Node
		elementFilters             []string
	)
	for _, o := range outcomes {
		if o.Element != nil {
			elements = append(elements, o.Element)
			elementFilters = append(elementFilters, o.Filter)
			continue
		}
		selectors = append(selectors, o.Selector)
		selectorFilters = append(selectorFilters, o.Filter)
	}

	c.mu.Lock()
	c.stats.Passes++
	c.stats.Evaluated += evaluated
	c.stats.Selectors += len(selectors)
	c.stats.Elements += len(elements)
	c.mu.Unlock()

	if len(selectors) > 0 {
		c.logger.Debug("new selectors", zap.Strings("selectors", selectors))
		c.addSelectors(selectors, selectorFilters)
	}
	if len(elements) > 0 {
		c.logger.Debug("new elements", zap.Int("count", len(elements)))
		c.hideElements(elements, elementFilters)
	}
}

// matchedElements yields the elements a hiding chain matches. A chain ending
// with :-abp-has() is matched directly; otherwise the selectors it produces
// are queried.
func matchedElements(chain []selector.Selector, root *html.Node, styles selector.Styles) iter.Seq[*html.Node] {
	last := len(chain) - 1
	if has, ok := chain[last].(*selector.HasSelector); ok {
		return func(yield func(*html.Node) bool) {
			for prefix := range selector.Evaluate(chain[:last], "", root, styles) {
				for el := range has.Elements(prefix, root, styles) {
					if !yield(el) {
						return
					}
				}
			}
		}
	}

	return func(yield func(*html.Node) bool) {
		for sel := range selector.Evaluate(chain, "", root, styles) {
			for el := range selector.QueryAll(root, sel) {
				if !yield(el) {
					return
				}
			}
		}
	}
}

// TearDown stops the controller and forgets what it applied. No callback runs
// once it returns. It must not be called from a callback.
func (c *Controller) TearDown() {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return
	}
	c.state = StateDisposed
	cancel := c.cancelObserve
	c.cancelObserve = nil
	running := c.running
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if running {
		close(c.stop)
		<-c.done
	}

	c.passMu.Lock()
	clear(c.appliedSelectors)
	clear(c.hiddenElements)
	c.rules = nil
	c.passMu.Unlock()

	c.logger.Debug("controller torn down")
}

// State returns the lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a copy of the counters
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
