package history

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// The timeline state fingerprint is a 64-bit simhash accumulated over token
// features of every appended event. Each token votes on all 64 bit positions;
// the fingerprint sets a bit when its running vote is positive. Two timelines
// with similar event content land close in Hamming distance, so pairwise
// similarity stays O(1) regardless of history length.

// voteTokens adds one token set's bit votes to the accumulator.
func voteTokens(votes *[64]int, tokens []string) {
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				votes[i]++
			} else {
				votes[i]--
			}
		}
	}
}

// foldVotes derives the fingerprint from the current vote accumulator.
func foldVotes(votes *[64]int) uint64 {
	var fp uint64
	for i := 0; i < 64; i++ {
		if votes[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// fingerprintSimilarity maps Hamming distance to [0,1]; 1 means identical.
func fingerprintSimilarity(a, b uint64) float64 {
	return 1.0 - float64(bits.OnesCount64(a^b))/64.0
}

// eventTokens extracts the feature tokens of an event: its type plus the
// word tokens of its content rendering. Agent ids are excluded so that
// agents with similar histories correlate.
func eventTokens(ev Event) []string {
	tokens := []string{string(ev.Type)}
	return append(tokens, tokenize(ev.ContentText())...)
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' ||
			r > 127)
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(f)
		if len(w) > 1 {
			result = append(result, w)
		}
	}
	return result
}
