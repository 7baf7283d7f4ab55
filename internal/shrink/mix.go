package shrink

// accumulator holds one running sum per output sample, addressed as
// column*channels + channel.
type accumulator struct {
	sums     []uint16
	channels int
	factor   int
}

func newAccumulator(columns, channels, factor int) *accumulator {
	return &accumulator{
		sums:     make([]uint16, columns*channels),
		channels: channels,
		factor:   factor,
	}
}

func (a *accumulator) reset() {
	clear(a.sums)
}

// mix adds a padded row of columns*factor pixels into the sums. Output
// column x gathers input pixels x*factor through x*factor+factor-1.
// Calling mix factor times between resets sums a full factor x factor block.
func (a *accumulator) mix(row []byte) {
	ch, s := a.channels, a.factor
	columns := len(a.sums) / ch
	for x := 0; x < columns; x++ {
		sum := a.sums[x*ch : x*ch+ch]
		block := row[x*s*ch : (x+1)*s*ch]
		for k := 0; k < s; k++ {
			px := block[k*ch : k*ch+ch]
			for c := range sum {
				sum[c] += uint16(px[c])
			}
		}
	}
}
