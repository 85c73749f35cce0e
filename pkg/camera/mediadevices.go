package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pion/mediadevices/pkg/driver"
	// Register platform camera adapters.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/io/video"

	"github.com/offlinefirst/dualcam/pkg/permissions"
)

// CameraProducer adapts a pion/mediadevices camera driver to the
// FrameProducer contract. The primary source binds the first enumerated
// camera, the secondary the next one.
type CameraProducer struct {
	clock  func() time.Time
	lookup permissions.LookupEnvFunc

	mu     sync.Mutex
	cfg    SourceConfig
	drv    driver.Driver
	reader video.Reader
	stop   chan struct{}
	done   chan struct{}
	seq    uint64
}

// CameraOptions configure a camera-backed producer.
type CameraOptions struct {
	Clock     func() time.Time
	LookupEnv permissions.LookupEnvFunc
}

// NewCameraProducer constructs an unconfigured camera producer.
func NewCameraProducer(opts CameraOptions) *CameraProducer {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &CameraProducer{clock: clock, lookup: opts.LookupEnv}
}

// AvailableCameraCount reports how many camera drivers the platform exposes.
func AvailableCameraCount() int {
	return len(driver.GetManager().Query(driver.FilterVideoRecorder()))
}

// RequestPermission consults the platform permission probe.
func (p *CameraProducer) RequestPermission(ctx context.Context) (bool, error) {
	if ctx != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	probe := permissions.ProbeCamera(p.lookup)
	switch probe.Status {
	case permissions.StatusDenied:
		return false, nil
	case permissions.StatusUnavailable:
		return false, fmt.Errorf("camera capability unavailable: %s", probe.Message)
	default:
		return true, nil
	}
}

// Configure binds the producer to the camera driver matching cfg.Source and
// opens it with the requested geometry.
func (p *CameraProducer) Configure(cfg SourceConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 {
		return errors.New("feed geometry must be positive")
	}

	drivers := driver.GetManager().Query(driver.FilterVideoRecorder())
	index := 0
	if cfg.Source == SourceSecondary {
		index = 1
	}
	if index >= len(drivers) {
		return fmt.Errorf("%w: %d camera(s) present, feed %s needs index %d", ErrUnsupportedHardware, len(drivers), cfg.Source, index)
	}
	d := drivers[index]

	if err := d.Open(); err != nil {
		return newConfigError(fmt.Sprintf("open camera %q: %v", d.Info().Label, err))
	}

	recorder, ok := d.(driver.VideoRecorder)
	if !ok {
		_ = d.Close()
		return newConfigError(fmt.Sprintf("driver %q cannot record video", d.Info().Label))
	}

	props := d.Properties()
	if len(props) == 0 {
		_ = d.Close()
		return newConfigError(fmt.Sprintf("driver %q reports no media properties", d.Info().Label))
	}
	media := props[0]
	media.Video.Width = cfg.Width
	media.Video.Height = cfg.Height
	media.Video.FrameRate = float32(cfg.FrameRate)

	reader, err := recorder.VideoRecord(media)
	if err != nil {
		_ = d.Close()
		return newConfigError(fmt.Sprintf("start video record on %q: %v", d.Info().Label, err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.drv = d
	p.reader = reader
	return nil
}

// Start begins pumping frames from the driver reader.
func (p *CameraProducer) Start(deliver func(Frame)) error {
	if deliver == nil {
		return errors.New("deliver callback must not be nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reader == nil {
		return errors.New("producer not configured")
	}
	if p.stop != nil {
		return nil
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.pump(p.reader, p.cfg, deliver, p.stop, p.done)
	return nil
}

// Stop halts the pump goroutine and closes the driver.
func (p *CameraProducer) Stop() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	drv := p.drv
	p.stop, p.done = nil, nil
	p.drv, p.reader = nil, nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if drv != nil {
		return drv.Close()
	}
	return nil
}

func (p *CameraProducer) pump(reader video.Reader, cfg SourceConfig, deliver func(Frame), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		img, release, err := reader.Read()
		if err != nil {
			return
		}
		// The driver recycles its buffer after release, so hand consumers a
		// stable copy.
		copied := copyImage(img)
		if release != nil {
			release()
		}

		p.mu.Lock()
		p.seq++
		seq := p.seq
		p.mu.Unlock()
		deliver(NewFrame(copied, cfg.Source, "RGBA", p.clock(), seq))
	}
}

func copyImage(src image.Image) image.Image {
	buffer := video.NewFrameBuffer(0)
	buffer.StoreCopy(src)
	return buffer.Load()
}
