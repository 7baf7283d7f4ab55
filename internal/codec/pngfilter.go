package codec

import "fmt"

// PNG row filter types.
const (
	ftNone byte = iota
	ftSub
	ftUp
	ftAverage
	ftPaeth
	nFilter
)

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// paeth implements the Paeth predictor.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// unfilter reverses filter ft in place on cur given the previous
// reconstructed row prev (all zeros for the first row).
func unfilter(ft byte, cur, prev []byte, bpp int) error {
	switch ft {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case ftUp:
		for i := range cur {
			cur[i] += prev[i]
		}
	case ftAverage:
		for i := 0; i < bpp; i++ {
			cur[i] += prev[i] / 2
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += byte((int(cur[i-bpp]) + int(prev[i])) / 2)
		}
	case ftPaeth:
		for i := 0; i < bpp; i++ {
			cur[i] += prev[i]
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += paeth(cur[i-bpp], prev[i], prev[i-bpp])
		}
	default:
		return fmt.Errorf("png: bad filter type %d", ft)
	}
	return nil
}

// filterInto writes cur filtered with ft into dst, which has room for the
// leading filter byte.
func filterInto(dst []byte, ft byte, cur, prev []byte, bpp int) {
	dst[0] = ft
	out := dst[1:]
	switch ft {
	case ftNone:
		copy(out, cur)
	case ftSub:
		copy(out[:bpp], cur[:bpp])
		for i := bpp; i < len(cur); i++ {
			out[i] = cur[i] - cur[i-bpp]
		}
	case ftUp:
		for i := range cur {
			out[i] = cur[i] - prev[i]
		}
	case ftAverage:
		for i := 0; i < bpp; i++ {
			out[i] = cur[i] - prev[i]/2
		}
		for i := bpp; i < len(cur); i++ {
			out[i] = cur[i] - byte((int(cur[i-bpp])+int(prev[i]))/2)
		}
	case ftPaeth:
		for i := 0; i < bpp; i++ {
			out[i] = cur[i] - prev[i]
		}
		for i := bpp; i < len(cur); i++ {
			out[i] = cur[i] - paeth(cur[i-bpp], prev[i], prev[i-bpp])
		}
	}
}

// filterBest tries every filter and returns the candidate with the smallest
// sum of absolute signed residuals.
func filterBest(cand *[nFilter][]byte, cur, prev []byte, bpp int) []byte {
	best, bestSum := 0, -1
	for ft := ftNone; ft < nFilter; ft++ {
		filterInto(cand[ft], ft, cur, prev, bpp)
		sum := 0
		for _, v := range cand[ft][1:] {
			sum += abs(int(int8(v)))
			if bestSum >= 0 && sum >= bestSum {
				break
			}
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = int(ft), sum
		}
	}
	return cand[best]
}
