// Package render consumes a frame stream for display and serves on-demand
// snapshots of the most recently consumed frame.
package render

import (
	"errors"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/offlinefirst/dualcam/pkg/camera"
)

// ErrNoFrameAvailable is returned by Snapshot before any frame was consumed.
var ErrNoFrameAvailable = errors.New("no frame available")

// Renderer tracks the latest frame of one source. Consume and Snapshot are
// safe to call concurrently; snapshots are clones, so a caller can hold one
// indefinitely without pinning producer buffers.
type Renderer struct {
	source camera.FrameSource

	mu      sync.RWMutex
	current *camera.Frame
}

// New constructs a renderer for the given source with no current frame.
func New(source camera.FrameSource) *Renderer {
	return &Renderer{source: source}
}

// Source reports the feed this renderer displays.
func (r *Renderer) Source() camera.FrameSource {
	return r.source
}

// Consume ingests a new frame, replacing whatever was current.
func (r *Renderer) Consume(f camera.Frame) {
	if f.Image == nil {
		return
	}
	r.mu.Lock()
	r.current = &f
	r.mu.Unlock()
}

// Snapshot returns a still copy of the most recently consumed frame.
func (r *Renderer) Snapshot() (image.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return nil, ErrNoFrameAvailable
	}
	return imaging.Clone(r.current.Image), nil
}

// CurrentFrame returns the metadata of the latest frame, if any.
func (r *Renderer) CurrentFrame() (camera.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return camera.Frame{}, false
	}
	return *r.current, true
}

// FrameStream is the subset of a broadcast subscription the renderer drains.
type FrameStream interface {
	Values() <-chan camera.Frame
}

// Feed drains a subscription into the renderer until the subscription's
// channel closes. It is intended to run on its own goroutine.
func (r *Renderer) Feed(stream FrameStream) {
	for f := range stream.Values() {
		r.Consume(f)
	}
}
