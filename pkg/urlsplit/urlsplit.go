package urlsplit

import "strings"

// Upstream scrapers occasionally glue several URLs into one submitted
// string ("http://a.com/http://b.com"). Split recovers the individual
// URLs by scanning for literal scheme occurrences. Only the exact byte
// sequences "http://" and "https://" start a new chunk; look-alikes such
// as "httpwww" never trigger a split.

// Split partitions raw into one chunk per literal scheme occurrence,
// each chunk starting at an occurrence and running up to the next one.
// Inputs with zero or one occurrence are returned unchanged as a
// single-element slice; schemeless garbage is left for downstream URL
// validation to reject. For input that starts with a scheme, the
// concatenation of the returned chunks equals the input, and running
// Split on any returned chunk yields that chunk again.
func Split(raw string) []string {
	starts := schemeStarts(raw)
	if len(starts) < 2 {
		return []string{raw}
	}

	chunks := make([]string, 0, len(starts))
	for i, start := range starts {
		end := len(raw)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		chunks = append(chunks, raw[start:end])
	}
	return chunks
}

// schemeStarts returns the byte offsets of every non-overlapping scheme
// occurrence, in order. "https://" is tried first so an https URL counts
// as a single occurrence rather than matching "http" loosely.
func schemeStarts(raw string) []int {
	var starts []int
	for i := 0; i < len(raw); {
		switch {
		case strings.HasPrefix(raw[i:], "https://"):
			starts = append(starts, i)
			i += len("https://")
		case strings.HasPrefix(raw[i:], "http://"):
			starts = append(starts, i)
			i += len("http://")
		default:
			i++
		}
	}
	return starts
}
