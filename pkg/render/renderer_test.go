package render

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/offlinefirst/dualcam/pkg/broadcast"
	"github.com/offlinefirst/dualcam/pkg/camera"
)

func testFrame(w, h int, fill color.RGBA, seq uint64) camera.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return camera.NewFrame(img, camera.SourcePrimary, "RGBA", time.Now(), seq)
}

func TestSnapshotBeforeConsumeFails(t *testing.T) {
	r := New(camera.SourcePrimary)
	if _, err := r.Snapshot(); !errors.Is(err, ErrNoFrameAvailable) {
		t.Fatalf("expected ErrNoFrameAvailable, got %v", err)
	}
	if _, ok := r.CurrentFrame(); ok {
		t.Fatal("expected no current frame")
	}
}

func TestSnapshotReflectsLatestConsumedFrame(t *testing.T) {
	r := New(camera.SourceSecondary)

	r.Consume(testFrame(4, 4, color.RGBA{R: 255, A: 255}, 1))
	r.Consume(testFrame(4, 4, color.RGBA{G: 255, A: 255}, 2))

	img, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	_, g, _, _ := img.At(0, 0).RGBA()
	if g>>8 != 255 {
		t.Fatalf("expected snapshot of the newest (green) frame, got green=%d", g>>8)
	}

	f, ok := r.CurrentFrame()
	if !ok || f.Sequence != 2 {
		t.Fatalf("expected current frame 2, got %v ok=%t", f.Sequence, ok)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New(camera.SourcePrimary)
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{R: 10, A: 255})
	r.Consume(camera.NewFrame(src, camera.SourcePrimary, "RGBA", time.Now(), 1))

	snap, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Mutating the producer's buffer must not affect the snapshot.
	src.SetRGBA(0, 0, color.RGBA{R: 200, A: 255})
	rr, _, _, _ := snap.At(0, 0).RGBA()
	if rr>>8 != 10 {
		t.Fatalf("snapshot shares storage with the source buffer, got red=%d", rr>>8)
	}
}

func TestConcurrentConsumeAndSnapshot(t *testing.T) {
	r := New(camera.SourcePrimary)
	r.Consume(testFrame(8, 8, color.RGBA{B: 255, A: 255}, 1))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		seq := uint64(2)
		for {
			select {
			case <-stop:
				return
			default:
				r.Consume(testFrame(8, 8, color.RGBA{B: 255, A: 255}, seq))
				seq++
			}
		}
	}()

	for i := 0; i < 100; i++ {
		if _, err := r.Snapshot(); err != nil {
			t.Errorf("snapshot during consume: %v", err)
			break
		}
	}
	close(stop)
	wg.Wait()
}

func TestFeedDrainsSubscription(t *testing.T) {
	b := broadcast.New[camera.Frame]()
	defer b.Close()
	sub, err := b.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r := New(camera.SourcePrimary)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Feed(sub)
	}()

	b.Broadcast(testFrame(4, 4, color.RGBA{R: 1, A: 255}, 1))

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := r.CurrentFrame(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for feed to deliver")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sub.Cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed should return once the subscription is cancelled")
	}
}
