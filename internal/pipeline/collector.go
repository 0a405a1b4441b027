package pipeline

import (
	"context"
	"sync/atomic"

	"glossa/internal/subtitles"
)

// segmentBuffer bounds the recognizer-to-translator hand-off channel. A
// full buffer applies backpressure to decoding instead of growing memory.
const segmentBuffer = 64

// collector consumes recognized segments and translates them in batches
// while decoding continues. Streaming flushes need the source language up
// front; with auto-detection the segments accumulate and translate in one
// drain once the recognizer has reported the language.
type collector struct {
	translator Translator
	batchSize  int
	drainSize  int
	source     string
	target     string
	streaming  bool
	onBatch    func(done int)

	aborted atomic.Bool

	buf []subtitles.Segment
	out []subtitles.TranslatedSegment
	err error
}

func newCollector(translator Translator, batchSize, concurrency int, source, target string, onBatch func(done int)) *collector {
	if batchSize <= 0 {
		batchSize = 20
	}
	if concurrency <= 0 {
		concurrency = 3
	}
	return &collector{
		translator: translator,
		batchSize:  batchSize,
		drainSize:  batchSize * concurrency,
		source:     source,
		target:     target,
		streaming:  source != "",
		onBatch:    onBatch,
	}
}

// setSource supplies the detected language for the drain. Call it before
// the segment channel closes; the close is what publishes the write to the
// collector goroutine. Streaming collectors already know their source.
func (c *collector) setSource(lang string) {
	c.source = lang
}

// abort stops further translation. Queued segments still drain so the
// recognizer sink never blocks on a dead consumer.
func (c *collector) abort() {
	c.aborted.Store(true)
}

// consume is the collector goroutine body; it returns once in closes and
// the remaining buffer is translated (or abandoned after abort or error).
func (c *collector) consume(ctx context.Context, in <-chan subtitles.Segment) {
	for seg := range in {
		if c.aborted.Load() || c.err != nil {
			continue
		}
		c.buf = append(c.buf, seg)
		if c.streaming && len(c.buf) >= c.batchSize {
			c.flush(ctx, c.batchSize)
		}
	}
	for len(c.buf) > 0 && c.err == nil && !c.aborted.Load() {
		n := c.drainSize
		if n > len(c.buf) {
			n = len(c.buf)
		}
		c.flush(ctx, n)
	}
}

func (c *collector) flush(ctx context.Context, n int) {
	translated, err := c.translator.Translate(ctx, c.buf[:n], c.source, c.target, nil)
	if err != nil {
		c.err = err
		return
	}
	c.out = append(c.out, translated...)
	c.buf = c.buf[n:]
	if c.onBatch != nil {
		c.onBatch(len(c.out))
	}
}

// results returns everything translated before completion, error, or
// abort. Call only after consume has returned.
func (c *collector) results() ([]subtitles.TranslatedSegment, error) {
	return c.out, c.err
}
