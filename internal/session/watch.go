package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bnema/elemhide/internal/dom"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// minSettle spaces out renders in watch mode when no settle period is set
const minSettle = 50 * time.Millisecond

// Watch applies the filters to a page on disk and keeps them applied while
// the file changes. Each change replaces the body of the live document, which
// the controller sees as mutations. onResult is called with a fresh render
// once the page has settled, first after loading and then after every
// change. Watch returns when ctx is done.
func (r *Runner) Watch(ctx context.Context, source string, onResult func(*Result)) error {
	if isURL(source) {
		return errors.New("watch needs a file, not a URL")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(source)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", source, err)
	}

	doc, err := r.Load(ctx, source)
	if err != nil {
		return err
	}

	res := &Result{Source: source, Host: r.hostOf(source)}
	ctrl := r.controller(doc, res)
	if err := ctrl.Apply(ctx); err != nil {
		return err
	}
	defer ctrl.TearDown()

	settle := max(r.emulation.Settle, minSettle)
	render := time.NewTimer(settle)
	defer render.Stop()

	target := filepath.Clean(source)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.reload(ctx, source, doc); err != nil {
				r.logger.Warn("reload failed", zap.String("page", source), zap.Error(err))
				continue
			}
			r.logger.Debug("page reloaded", zap.String("page", source))
			render.Reset(settle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch error", zap.Error(err))

		case <-render.C:
			snapshot := &Result{Source: source, Host: res.Host, Stats: ctrl.Stats()}
			if err := r.finish(doc, snapshot); err != nil {
				snapshot.Err = err
			}
			onResult(snapshot)
		}
	}
}

// reload reads source again and swaps its body into doc
func (r *Runner) reload(ctx context.Context, source string, doc *dom.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := afero.ReadFile(r.fs, source)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", source, err)
	}
	body, err := page.Find("body").Html()
	if err != nil {
		return fmt.Errorf("failed to render body: %w", err)
	}
	return doc.ReplaceBody(body)
}
