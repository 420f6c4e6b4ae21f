package transcode

// Pixel filter kernels for I420 frames. All filters operate in place on
// the luma plane except grayscale, which neutralizes chroma. Convolution
// filters touch interior pixels only and leave borders unchanged.

func clampByte(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// applyGrayscale sets both chroma planes to the 8-bit neutral value.
func applyGrayscale(f *VideoFrame) {
	for _, plane := range f.Data[1:3] {
		for i := range plane {
			plane[i] = 128
		}
	}
}

// applyBrightnessContrast maps y' = clip((y-128)*contrast + 128) * brightness
// over the luma plane, via a 256-entry lookup table.
func applyBrightnessContrast(f *VideoFrame, brightness, contrast float32) {
	var lut [256]byte
	for y := 0; y < 256; y++ {
		v := (float32(y)-128)*contrast + 128
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		v *= brightness
		if v > 255 {
			v = 255
		}
		lut[y] = byte(v)
	}
	luma := f.Data[0]
	for i := range luma {
		luma[i] = lut[luma[i]]
	}
}

// applyBoxBlur runs a 3x3 box filter over the interior of the luma plane.
func applyBoxBlur(f *VideoFrame) {
	w, h, stride := f.Width, f.Height, f.Stride[0]
	src := make([]byte, len(f.Data[0]))
	copy(src, f.Data[0])
	dst := f.Data[0]
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var sum int32
			for dy := -1; dy <= 1; dy++ {
				row := (y + dy) * stride
				sum += int32(src[row+x-1]) + int32(src[row+x]) + int32(src[row+x+1])
			}
			dst[y*stride+x] = byte(sum / 9)
		}
	}
}

// applySharpen runs the 3x3 kernel [0 -1 0; -1 5 -1; 0 -1 0] over the
// interior of the luma plane, clipped to [0, 255].
func applySharpen(f *VideoFrame) {
	w, h, stride := f.Width, f.Height, f.Stride[0]
	src := make([]byte, len(f.Data[0]))
	copy(src, f.Data[0])
	dst := f.Data[0]
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := int32(src[y*stride+x])
			v := 5*center -
				int32(src[(y-1)*stride+x]) -
				int32(src[(y+1)*stride+x]) -
				int32(src[y*stride+x-1]) -
				int32(src[y*stride+x+1])
			dst[y*stride+x] = clampByte(v)
		}
	}
}
