package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"
)

// SyntheticProducer generates gradient frames on a timer, standing in for
// real hardware on platforms or test environments without a camera.
type SyntheticProducer struct {
	clock func() time.Time

	mu      sync.Mutex
	cfg     SourceConfig
	cfgSet  bool
	stop    chan struct{}
	done    chan struct{}
	running bool
	seq     uint64
}

// SyntheticOptions configure a synthetic producer.
type SyntheticOptions struct {
	Clock func() time.Time
}

// NewSyntheticProducer constructs a stopped synthetic producer.
func NewSyntheticProducer(opts SyntheticOptions) *SyntheticProducer {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SyntheticProducer{clock: clock}
}

// RequestPermission always grants access; there is no hardware to guard.
func (p *SyntheticProducer) RequestPermission(ctx context.Context) (bool, error) {
	if ctx != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	return true, nil
}

// Configure records the feed geometry for subsequent Start calls.
func (p *SyntheticProducer) Configure(cfg SourceConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("frame dimensions must be positive")
	}
	if cfg.FrameRate <= 0 {
		return errors.New("frame rate must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.cfgSet = true
	return nil
}

// Start begins generating frames at the configured rate.
func (p *SyntheticProducer) Start(deliver func(Frame)) error {
	if deliver == nil {
		return errors.New("deliver callback must not be nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cfgSet {
		return errors.New("producer not configured")
	}
	if p.running {
		return nil
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	cfg := p.cfg
	interval := time.Second / time.Duration(cfg.FrameRate)
	go p.generate(cfg, interval, deliver, p.stop, p.done)
	return nil
}

// Stop halts frame generation. It blocks until the generator goroutine exits.
func (p *SyntheticProducer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	return nil
}

func (p *SyntheticProducer) generate(cfg SourceConfig, interval time.Duration, deliver func(Frame), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.seq++
			seq := p.seq
			p.mu.Unlock()
			deliver(NewFrame(syntheticImage(cfg, seq), cfg.Source, "RGBA", p.clock(), seq))
		}
	}
}

// syntheticImage renders a moving gradient so successive frames differ and
// the two sources are visually distinguishable.
func syntheticImage(cfg SourceConfig, seq uint64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	phase := uint8(seq % 256)
	base := uint8(40)
	if cfg.Source == SourceSecondary {
		base = 180
	}
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: base + phase,
				G: uint8(x % 255),
				B: uint8(y % 255),
				A: 255,
			})
		}
	}
	return img
}
