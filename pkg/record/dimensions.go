package record

// clampDimensions bounds the encode size to maxLongEdge while preserving
// aspect ratio, rounding both edges down to even numbers as common encoders
// require.
func clampDimensions(width, height, maxLongEdge int) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}

	long := width
	if height > width {
		long = height
	}
	if maxLongEdge > 0 && long > maxLongEdge {
		if width >= height {
			height = height * maxLongEdge / width
			width = maxLongEdge
		} else {
			width = width * maxLongEdge / height
			height = maxLongEdge
		}
	}

	width = evenDown(width)
	height = evenDown(height)
	return width, height
}

func evenDown(v int) int {
	if v < 2 {
		return 2
	}
	return v &^ 1
}
