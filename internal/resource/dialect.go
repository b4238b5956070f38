package resource

import "math"

// candidateDelimiters is the fixed preference list the sniffer scores,
// mirroring the teacher's detect.detectDelimiter.
var candidateDelimiters = []byte{',', '\t', ';', '|', ':'}

// sniffDialect scores each candidate delimiter by the variance-to-mean
// ratio of its per-line occurrence count over the sample and picks the
// lowest-scoring (most consistent) one. Quote is fixed at '"'; the
// corpus and original_source both treat quote detection as a closed
// option rather than something to sniff.
func sniffDialect(sample []byte) (delimiter byte, quote byte) {
	bestDelim := byte(',')
	bestScore := math.MaxFloat64

	for _, delim := range candidateDelimiters {
		counts := countPerLine(sample, delim)
		if len(counts) < 2 {
			continue
		}
		avg := meanInt(counts)
		if avg < 1 {
			continue
		}
		v := varianceInt(counts, avg)
		score := v / avg
		if score < bestScore {
			bestScore = score
			bestDelim = delim
		}
	}

	return bestDelim, '"'
}

func countPerLine(sample []byte, delim byte) []int {
	var counts []int
	inQuote := false
	count := 0
	for _, b := range sample {
		switch {
		case b == '"':
			inQuote = !inQuote
		case !inQuote && b == delim:
			count++
		case !inQuote && b == '\n':
			counts = append(counts, count)
			count = 0
		}
	}
	return counts
}

func meanInt(values []int) float64 {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func varianceInt(values []int, mean float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := float64(v) - mean
		sum += d * d
	}
	return sum / float64(len(values))
}
