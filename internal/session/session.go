// Package session runs the emulation engine over pages: it loads a page from
// disk or the network, keeps the filters applied while the page settles and
// renders the result.
package session

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bnema/elemhide/internal/converter"
	"github.com/bnema/elemhide/internal/dom"
	"github.com/bnema/elemhide/internal/emulation"
	"github.com/bnema/elemhide/internal/fetcher"
	"github.com/bnema/elemhide/internal/models"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// HideRule is the declaration block injected for matched selectors
const HideRule = "{display: none !important;}"

// Result is the outcome of one page
type Result struct {
	Source    string
	Host      string
	Output    string   // written file, empty when nothing was written
	HTML      string   // rendered page
	Selectors []string // selectors that matched, in the order they were found
	Filters   []string // filter text of each selector
	Hidden    int      // elements hidden through their inline style
	Stats     emulation.Stats
	Err       error
}

// Runner applies a set of filters to pages
type Runner struct {
	fs        afero.Fs
	fetcher   *fetcher.Fetcher
	logger    *zap.Logger
	filters   []models.Filter
	extra     []models.Pattern
	host      string
	plain     bool
	emulation models.EmulationConfig
	output    models.OutputConfig
}

// Option configures a Runner
type Option func(*Runner)

// WithFilesystem sets where pages are read and results written
func WithFilesystem(fs afero.Fs) Option {
	return func(r *Runner) {
		r.fs = fs
	}
}

// WithFetcher sets the client used for http(s) pages
func WithFetcher(f *fetcher.Fetcher) Option {
	return func(r *Runner) {
		r.fetcher = f
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSelectors adds extended selectors applied to every page
func WithSelectors(selectors ...string) Option {
	return func(r *Runner) {
		for _, s := range selectors {
			r.extra = append(r.extra, models.Pattern{Selector: s, Text: "#?#" + s})
		}
	}
}

// WithHost sets the host domain specific filters are matched against for
// pages read from disk
func WithHost(host string) Option {
	return func(r *Runner) {
		r.host = host
	}
}

// WithPlainCosmetic also applies filters that plain CSS could handle
func WithPlainCosmetic() Option {
	return func(r *Runner) {
		r.plain = true
	}
}

// New creates a Runner for filters. Output settings come from cfg.
func New(cfg models.Config, filters []models.Filter, opts ...Option) *Runner {
	r := &Runner{
		fs:        afero.NewOsFs(),
		logger:    zap.NewNop(),
		filters:   filters,
		emulation: cfg.Emulation,
		output:    cfg.Output,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = fetcher.New(cfg.HTTP)
	}
	return r
}

// Patterns returns the patterns applied to pages of host
func (r *Runner) Patterns(host string) []models.Pattern {
	var opts []converter.Option
	if r.plain {
		opts = append(opts, converter.WithPlainCosmetic())
	}
	c := converter.New(opts...)
	patterns := c.Convert(r.filters, host)

	stats := c.Stats()
	r.logger.Debug("patterns selected",
		zap.String("host", host),
		zap.Int("patterns", len(patterns)),
		zap.Int("skipped", stats.Skipped),
		zap.Any("reasons", stats.SkipReasons))

	return append(patterns, r.extra...)
}

// Load reads source, an http(s) URL or a path on the runner's filesystem
func (r *Runner) Load(ctx context.Context, source string) (*dom.Document, error) {
	var data []byte
	var err error
	if isURL(source) {
		data, err = r.fetcher.Fetch(ctx, source)
	} else {
		data, err = afero.ReadFile(r.fs, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}
	return dom.Parse(bytes.NewReader(data))
}

// Run applies the filters to one page and writes the result to the output
// directory when one is configured. Failures are reported in Result.Err.
func (r *Runner) Run(ctx context.Context, source string) *Result {
	res := &Result{Source: source, Host: r.hostOf(source)}

	doc, err := r.Load(ctx, source)
	if err != nil {
		res.Err = err
		return res
	}

	ctrl := r.controller(doc, res)
	if err := ctrl.Apply(ctx); err != nil {
		res.Err = err
		return res
	}

	r.settle(ctx)
	ctrl.TearDown()
	res.Stats = ctrl.Stats()

	if err := r.finish(doc, res); err != nil {
		res.Err = err
	}
	return res
}

// RunBatch runs many pages concurrently, one document and controller each.
// Results are in the order of sources.
func (r *Runner) RunBatch(ctx context.Context, sources []string) []*Result {
	workers := r.emulation.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type indexed struct {
		i   int
		res *Result
	}

	p := pool.NewWithResults[indexed]().WithContext(ctx).WithMaxGoroutines(workers)
	for i, source := range sources {
		p.Go(func(ctx context.Context) (indexed, error) {
			return indexed{i: i, res: r.Run(ctx, source)}, nil
		})
	}
	done, _ := p.Wait()

	results := make([]*Result, len(sources))
	for _, d := range done {
		results[d.i] = d.res
	}
	for i, res := range results {
		if res == nil {
			results[i] = &Result{Source: sources[i], Err: ctx.Err()}
		}
	}
	return results
}

// controller builds a controller whose callbacks hide matches in doc and
// record them in res
func (r *Runner) controller(doc *dom.Document, res *Result) *emulation.Controller {
	patterns := r.Patterns(res.Host)

	provider := func(deliver func([]models.Pattern)) {
		deliver(patterns)
	}

	addSelectors := func(selectors, filters []string) {
		res.Selectors = append(res.Selectors, selectors...)
		res.Filters = append(res.Filters, filters...)
		if r.output.InjectStyles {
			doc.InsertRule(strings.Join(selectors, ", ") + " " + HideRule)
		}
	}

	hideElements := func(elements []*html.Node, filters []string) {
		for i, el := range elements {
			if !r.output.HideInline {
				continue
			}
			if err := doc.SetStyleProperty(el, "display", "none", false); err != nil {
				r.logger.Debug("element gone before hiding",
					zap.String("filter", filters[i]),
					zap.Error(err))
				continue
			}
			res.Hidden++
		}
	}

	return emulation.New(doc, provider, addSelectors, hideElements,
		emulation.WithPollInterval(r.emulation.PollInterval),
		emulation.WithLogger(r.logger.With(zap.String("page", res.Source))))
}

// settle leaves the controller running for the configured quiet period
func (r *Runner) settle(ctx context.Context) {
	if r.emulation.Settle <= 0 {
		return
	}
	t := time.NewTimer(r.emulation.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// finish renders doc into res and writes it out
func (r *Runner) finish(doc *dom.Document, res *Result) error {
	out, err := doc.HTML()
	if err != nil {
		return err
	}
	res.HTML = out

	if r.output.Dir == "" {
		return nil
	}
	if err := r.fs.MkdirAll(r.output.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	res.Output = filepath.Join(r.output.Dir, OutputName(res.Source))
	if err := afero.WriteFile(r.fs, res.Output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", res.Output, err)
	}
	return nil
}

func (r *Runner) hostOf(source string) string {
	if isURL(source) {
		if u, err := url.Parse(source); err == nil {
			return u.Hostname()
		}
	}
	return r.host
}

// OutputName derives the file name a page is written to: the base name of a
// file, or the host and last path segment of a URL.
func OutputName(source string) string {
	if !isURL(source) {
		return filepath.Base(source)
	}
	u, err := url.Parse(source)
	if err != nil {
		return "page.html"
	}
	name := u.Hostname()
	if base := path.Base(u.Path); base != "/" && base != "." {
		name += "_" + base
	}
	if !strings.HasSuffix(name, ".html") && !strings.HasSuffix(name, ".htm") {
		name += ".html"
	}
	return name
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
