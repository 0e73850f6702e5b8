package dom

import (
	"sync"

	"github.com/bnema/elemhide/internal/dom/mutation"
)

// observer delivers the records of a document to one callback. Records that
// arrive while the callback runs are collected and delivered together.
type observer struct {
	fn func([]mutation.Record)

	mu      sync.Mutex
	pending []mutation.Record

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// Observe registers fn to receive the mutations of the document. fn runs on
// its own goroutine, never concurrently with itself, with compressed batches
// of records. The returned function unregisters fn and waits for a running
// call to return; records not yet delivered are dropped. It must not be
// called from fn.
func (d *Document) Observe(fn func([]mutation.Record)) (cancel func()) {
	o := &observer{
		fn:     fn,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	d.obsMu.Lock()
	id := d.nextObsID
	d.nextObsID++
	d.observers[id] = o
	d.obsMu.Unlock()

	go o.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.obsMu.Lock()
			delete(d.observers, id)
			d.obsMu.Unlock()

			close(o.stop)
			<-o.done
		})
	}
}

func (d *Document) notify(records ...mutation.Record) {
	if len(records) == 0 {
		return
	}
	d.obsMu.Lock()
	defer d.obsMu.Unlock()
	for _, o := range d.observers {
		o.push(records)
	}
}

func (o *observer) push(records []mutation.Record) {
	o.mu.Lock()
	o.pending = append(o.pending, records...)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

func (o *observer) run() {
	defer close(o.done)
	for {
		select {
		case <-o.stop:
			return
		case <-o.signal:
		}

		o.mu.Lock()
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()

		if len(batch) == 0 {
			continue
		}

		select {
		case <-o.stop:
			return
		default:
		}
		o.fn(mutation.Compress(batch))
	}
}
