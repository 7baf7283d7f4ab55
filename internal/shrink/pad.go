package shrink

// padRow extends row, which holds width valid pixels of channels samples,
// with pad copies of its last pixel.
func padRow(row []byte, width, pad, channels int) {
	if pad == 0 {
		return
	}
	last := row[(width-1)*channels : width*channels]
	for i := 0; i < pad; i++ {
		copy(row[(width+i)*channels:], last)
	}
}
