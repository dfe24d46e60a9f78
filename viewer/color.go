package viewer

// speedColor maps a normalized speed in [0,1] to a cold-to-hot gradient:
// deep blue -> blue -> cyan -> yellow -> white. Values outside [0,1] clamp.
func speedColor(v float32) (r, g, b, a uint8) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if v < 0.25 {
		// Deep blue to blue
		t := v / 0.25
		r = uint8(15 + t*25)
		g = uint8(25 + t*75)
		b = uint8(90 + t*110)
	} else if v < 0.5 {
		// Blue to cyan
		t := (v - 0.25) / 0.25
		r = uint8(40 + t*20)
		g = uint8(100 + t*100)
		b = uint8(200 + t*20)
	} else if v < 0.75 {
		// Cyan to yellow
		t := (v - 0.5) / 0.25
		r = uint8(60 + t*160)
		g = uint8(200 + t*20)
		b = uint8(220 - t*160)
	} else {
		// Yellow to white
		t := (v - 0.75) / 0.25
		r = uint8(220 + t*35)
		g = uint8(220 + t*35)
		b = uint8(60 + t*195)
	}
	return r, g, b, 255
}
