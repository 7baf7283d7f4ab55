package shrink

// emit writes the box average of every sum into out: the sum divided by
// factor*factor, truncated, and clamped to [0, 255].
func (a *accumulator) emit(out []byte) {
	div := uint32(a.factor) * uint32(a.factor)
	for i, sum := range a.sums {
		v := uint32(sum) / div
		if v > 255 {
			v = 255
		}
		out[i] = byte(v)
	}
}
