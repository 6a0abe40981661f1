package engine

import (
	"fmt"
	"math"
	"strings"
)

// Weighting selects how term matches are scored.
type Weighting string

const (
	WeightBM25 Weighting = "bm25"
	WeightTrad Weighting = "trad"
	WeightBool Weighting = "bool"
)

// ParseWeighting accepts the scheme names in any case; "" selects bm25.
func ParseWeighting(s string) (Weighting, error) {
	switch w := Weighting(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WeightBM25, nil
	case WeightBM25, WeightTrad, WeightBool:
		return w, nil
	}
	return "", fmt.Errorf("unknown weighting scheme %q", s)
}

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// termScorer scores the postings of one term.
type termScorer struct {
	scheme Weighting
	idf    float64
	avgLen float64
	wqf    float64
}

func newTermScorer(scheme Weighting, stats Stats, termFreq, wqf int) termScorer {
	n := float64(stats.DocCount)
	df := float64(termFreq)
	ts := termScorer{scheme: scheme, avgLen: stats.AvgLength(), wqf: float64(wqf)}
	switch scheme {
	case WeightBM25:
		ts.idf = math.Log(1 + (n-df+0.5)/(df+0.5))
	case WeightTrad:
		if df > 0 {
			ts.idf = math.Log(n / df)
			if ts.idf < 0 {
				ts.idf = 0
			}
		}
	}
	return ts
}

// score returns the weight of one posting. Zero-wdf postings (boolean terms)
// weigh nothing.
func (ts termScorer) score(p Posting) float64 {
	if p.WDF == 0 {
		return 0
	}
	tf := float64(p.WDF)
	switch ts.scheme {
	case WeightBM25:
		norm := 1.0
		if ts.avgLen > 0 {
			norm = 1 - bm25B + bm25B*float64(p.DocLen)/ts.avgLen
		}
		return ts.wqf * ts.idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
	case WeightTrad:
		norm := 1.0
		if ts.avgLen > 0 {
			norm = float64(p.DocLen) / ts.avgLen
		}
		return ts.wqf * ts.idf * tf / (norm + tf)
	}
	return 0
}
