package record

import "testing"

func TestClampDimensions(t *testing.T) {
	tests := []struct {
		name        string
		width       int
		height      int
		maxLongEdge int
		wantW       int
		wantH       int
	}{
		{name: "within bounds", width: 1280, height: 720, maxLongEdge: 1280, wantW: 1280, wantH: 720},
		{name: "landscape clamp", width: 3000, height: 2000, maxLongEdge: 1280, wantW: 1280, wantH: 852},
		{name: "portrait clamp", width: 1080, height: 2400, maxLongEdge: 1280, wantW: 576, wantH: 1280},
		{name: "square clamp", width: 4096, height: 4096, maxLongEdge: 1280, wantW: 1280, wantH: 1280},
		{name: "odd edges rounded down", width: 641, height: 401, maxLongEdge: 1280, wantW: 640, wantH: 400},
		{name: "no limit", width: 3840, height: 2160, maxLongEdge: 0, wantW: 3840, wantH: 2160},
		{name: "tiny source", width: 1, height: 1, maxLongEdge: 1280, wantW: 2, wantH: 2},
		{name: "zero source", width: 0, height: 100, maxLongEdge: 1280, wantW: 0, wantH: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := clampDimensions(tt.width, tt.height, tt.maxLongEdge)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("clampDimensions(%d, %d, %d) = %dx%d, want %dx%d",
					tt.width, tt.height, tt.maxLongEdge, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
