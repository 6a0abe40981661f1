package engine

import (
	"context"
	"unicode/utf8"
)

// Suggest returns the spelling dictionary word closest to word: within
// two edits (one for words shorter than five letters), starting with the
// same letter, the most frequent first. It returns "" when word is known
// or nothing is close enough.
func Suggest(ctx context.Context, r Reader, word string) (string, error) {
	if word == "" {
		return "", nil
	}
	first, _ := utf8.DecodeRuneInString(word)
	candidates, err := r.Spellings(ctx, string(first))
	if err != nil {
		return "", err
	}
	if candidates[word] > 0 {
		return "", nil
	}
	maxDist := 2
	if utf8.RuneCountInString(word) < 5 {
		maxDist = 1
	}
	best, bestFreq, bestDist := "", 0, maxDist+1
	for cand, freq := range candidates {
		d := editDistance(word, cand, maxDist)
		if d > maxDist {
			continue
		}
		if d < bestDist || (d == bestDist && (freq > bestFreq || (freq == bestFreq && cand < best))) {
			best, bestFreq, bestDist = cand, freq, d
		}
	}
	return best, nil
}

// editDistance is the Damerau-Levenshtein distance (adjacent transpositions
// count as one edit). Lengths further apart than limit give up early.
func editDistance(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if diff := len(ra) - len(rb); diff > limit || -diff > limit {
		return limit + 1
	}
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(rb)]
}
