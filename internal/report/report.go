// Package report turns raw evaluation records into per-model comparison
// statistics. All statistics are computed from successful records only;
// cancelled pairs count toward the evaluation total and nothing else.
package report

import (
	"math"
	"sort"

	"llmevalbench/internal/evaluator"
)

// ModelStat is one model's aggregated row. Pointer fields are nil when the
// statistic is undefined for the underlying data, never zero-filled.
type ModelStat struct {
	ModelName string `json:"modelName"`

	Evaluations int `json:"evaluations"`
	Successes   int `json:"successes"`
	Errors      int `json:"errors"`
	Cancelled   int `json:"cancelled"`

	SuccessRate *float64 `json:"successRate,omitempty"`

	LatencyMeanMS *float64 `json:"latencyMeanMs,omitempty"`
	LatencyP50MS  *float64 `json:"latencyP50Ms,omitempty"`
	LatencyP95MS  *float64 `json:"latencyP95Ms,omitempty"`
	LatencyP99MS  *float64 `json:"latencyP99Ms,omitempty"`

	TotalInputTokens  int      `json:"totalInputTokens"`
	TotalOutputTokens int      `json:"totalOutputTokens"`
	AvgInputTokens    *float64 `json:"avgInputTokens,omitempty"`
	AvgOutputTokens   *float64 `json:"avgOutputTokens,omitempty"`
	TotalCostUSD      float64  `json:"totalCostUsd"`
	AvgCostUSD        *float64 `json:"avgCostUsd,omitempty"`

	JSONValidRate *float64 `json:"jsonValidRate,omitempty"`
}

// Summary holds per-model stats in first-seen record order, which for a
// normal run is the model declaration order.
type Summary struct {
	stats map[string]*ModelStat
	order []string
}

// Aggregate groups records by model and computes the comparison
// statistics. It never errors: records with undefined fields simply do not
// contribute to the statistics those fields feed.
func Aggregate(records []evaluator.Record) *Summary {
	s := &Summary{stats: make(map[string]*ModelStat)}
	latencies := make(map[string][]float64)
	jsonSeen := make(map[string]int)
	jsonValid := make(map[string]int)

	for _, rec := range records {
		st, ok := s.stats[rec.ModelName]
		if !ok {
			st = &ModelStat{ModelName: rec.ModelName}
			s.stats[rec.ModelName] = st
			s.order = append(s.order, rec.ModelName)
		}
		st.Evaluations++

		switch rec.Status {
		case evaluator.StatusSuccess:
			st.Successes++
			if rec.LatencyMS != nil {
				latencies[rec.ModelName] = append(latencies[rec.ModelName], *rec.LatencyMS)
			}
			st.TotalInputTokens += rec.InputTokens
			st.TotalOutputTokens += rec.OutputTokens
			st.TotalCostUSD += rec.CostUSD
		case evaluator.StatusCancelled:
			st.Cancelled++
		default:
			st.Errors++
		}
		if rec.JSONValid != nil {
			jsonSeen[rec.ModelName]++
			if *rec.JSONValid {
				jsonValid[rec.ModelName]++
			}
		}
	}

	for name, st := range s.stats {
		attempted := st.Successes + st.Errors
		if attempted > 0 {
			st.SuccessRate = ptr(round4(float64(st.Successes) / float64(attempted)))
		}
		st.TotalCostUSD = round6(st.TotalCostUSD)
		if st.Successes > 0 {
			st.AvgInputTokens = ptr(round1(float64(st.TotalInputTokens) / float64(st.Successes)))
			st.AvgOutputTokens = ptr(round1(float64(st.TotalOutputTokens) / float64(st.Successes)))
			st.AvgCostUSD = ptr(round6(st.TotalCostUSD / float64(st.Successes)))
		}
		if seen := jsonSeen[name]; seen > 0 {
			st.JSONValidRate = ptr(round4(float64(jsonValid[name]) / float64(seen)))
		}

		lats := latencies[name]
		if len(lats) == 0 {
			continue
		}
		sort.Float64s(lats)
		var sum float64
		for _, v := range lats {
			sum += v
		}
		st.LatencyMeanMS = ptr(round1(sum / float64(len(lats))))
		if v, ok := Percentile(lats, 50); ok {
			st.LatencyP50MS = ptr(round1(v))
		}
		if v, ok := Percentile(lats, 95); ok {
			st.LatencyP95MS = ptr(round1(v))
		}
		if v, ok := Percentile(lats, 99); ok {
			st.LatencyP99MS = ptr(round1(v))
		}
	}
	return s
}

// Rows returns the per-model stats in first-seen order.
func (s *Summary) Rows() []ModelStat {
	rows := make([]ModelStat, 0, len(s.order))
	for _, name := range s.order {
		rows = append(rows, *s.stats[name])
	}
	return rows
}

// Get returns the stats for one model.
func (s *Summary) Get(name string) (ModelStat, bool) {
	st, ok := s.stats[name]
	if !ok {
		return ModelStat{}, false
	}
	return *st, true
}

// Percentile computes the p-th percentile of an ascending-sorted sample by
// linear interpolation between closest ranks. The second return is false
// for an empty sample.
func Percentile(sorted []float64, p float64) (float64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		return sorted[0], true
	}
	h := p / 100 * float64(n-1)
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo < 0 {
		return sorted[0], true
	}
	if hi >= n {
		return sorted[n-1], true
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo]), true
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

func ptr(v float64) *float64 { return &v }
