package report

import (
	"testing"

	"llmevalbench/internal/evaluator"
)

func lat(v float64) *float64 { return &v }

func valid(b bool) *bool { return &b }

func successRecord(model string, latency float64) evaluator.Record {
	return evaluator.Record{
		ModelName: model,
		Status:    evaluator.StatusSuccess,
		LatencyMS: lat(latency),
	}
}

func TestPercentile_ReferenceSequence(t *testing.T) {
	sorted := []float64{100, 200, 300, 400, 500}
	tests := []struct {
		p    float64
		want float64
	}{
		{50, 300},
		{95, 480},
		{99, 496},
		{0, 100},
		{100, 500},
	}
	for _, tt := range tests {
		got, ok := Percentile(sorted, tt.p)
		if !ok {
			t.Fatalf("Percentile(%v) unexpectedly undefined", tt.p)
		}
		if got != tt.want {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestPercentile_Edges(t *testing.T) {
	if _, ok := Percentile(nil, 50); ok {
		t.Error("Expected percentile of an empty sample to be undefined")
	}
	if v, ok := Percentile([]float64{42}, 99); !ok || v != 42 {
		t.Errorf("Percentile of single sample = %v/%v, want 42/true", v, ok)
	}
}

func TestAggregate_LatencyStats(t *testing.T) {
	var records []evaluator.Record
	for _, v := range []float64{300, 100, 500, 200, 400} {
		records = append(records, successRecord("m1", v))
	}
	s := Aggregate(records)
	st, ok := s.Get("m1")
	if !ok {
		t.Fatal("Expected stats for m1")
	}
	if st.LatencyP50MS == nil || *st.LatencyP50MS != 300 {
		t.Errorf("p50 = %v, want 300", st.LatencyP50MS)
	}
	if st.LatencyP95MS == nil || *st.LatencyP95MS != 480 {
		t.Errorf("p95 = %v, want 480", st.LatencyP95MS)
	}
	if st.LatencyP99MS == nil || *st.LatencyP99MS != 496 {
		t.Errorf("p99 = %v, want 496", st.LatencyP99MS)
	}
	if st.LatencyMeanMS == nil || *st.LatencyMeanMS != 300 {
		t.Errorf("mean = %v, want 300", st.LatencyMeanMS)
	}
}

func TestAggregate_SuccessRateExcludesCancelled(t *testing.T) {
	records := []evaluator.Record{
		successRecord("m1", 100),
		successRecord("m1", 200),
		{ModelName: "m1", Status: evaluator.StatusError, Error: "boom"},
		{ModelName: "m1", Status: evaluator.StatusCancelled},
		{ModelName: "m1", Status: evaluator.StatusCancelled},
	}
	s := Aggregate(records)
	st, _ := s.Get("m1")

	if st.Evaluations != 5 {
		t.Errorf("Evaluations = %d, want 5", st.Evaluations)
	}
	if st.Successes != 2 || st.Errors != 1 || st.Cancelled != 2 {
		t.Errorf("Counts = %d/%d/%d, want 2/1/2", st.Successes, st.Errors, st.Cancelled)
	}
	if st.SuccessRate == nil || *st.SuccessRate != 0.6667 {
		t.Errorf("SuccessRate = %v, want 0.6667", st.SuccessRate)
	}
}

func TestAggregate_SingleError(t *testing.T) {
	records := []evaluator.Record{
		{ModelName: "m1", Status: evaluator.StatusError, Error: "timeout"},
	}
	s := Aggregate(records)
	st, _ := s.Get("m1")

	if st.Evaluations != 1 {
		t.Errorf("Evaluations = %d, want 1", st.Evaluations)
	}
	if st.SuccessRate == nil || *st.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", st.SuccessRate)
	}
	if st.LatencyP50MS != nil {
		t.Error("Expected undefined latency percentiles for an all-error model")
	}
}

func TestAggregate_SingleSuccess(t *testing.T) {
	s := Aggregate([]evaluator.Record{successRecord("m1", 120)})
	st, _ := s.Get("m1")

	if st.SuccessRate == nil || *st.SuccessRate != 1 {
		t.Errorf("SuccessRate = %v, want 1", st.SuccessRate)
	}
	if st.LatencyP50MS == nil || *st.LatencyP50MS != 120 {
		t.Errorf("p50 = %v, want 120", st.LatencyP50MS)
	}
}

func TestAggregate_AllCancelled(t *testing.T) {
	records := []evaluator.Record{
		{ModelName: "m1", Status: evaluator.StatusCancelled},
		{ModelName: "m1", Status: evaluator.StatusCancelled},
	}
	s := Aggregate(records)
	st, _ := s.Get("m1")

	if st.SuccessRate != nil {
		t.Error("Expected undefined success rate when nothing was attempted")
	}
	if st.LatencyP50MS != nil || st.LatencyMeanMS != nil {
		t.Error("Expected undefined latency statistics with no successes")
	}
	if st.AvgCostUSD != nil {
		t.Error("Expected undefined average cost with no successes")
	}
	if st.AvgInputTokens != nil || st.AvgOutputTokens != nil {
		t.Error("Expected undefined mean token counts with no successes")
	}
}

func TestAggregate_TokensAndCost(t *testing.T) {
	records := []evaluator.Record{
		{ModelName: "m1", Status: evaluator.StatusSuccess, LatencyMS: lat(10), InputTokens: 100, OutputTokens: 50, CostUSD: 0.002},
		{ModelName: "m1", Status: evaluator.StatusSuccess, LatencyMS: lat(20), InputTokens: 200, OutputTokens: 70, CostUSD: 0.004},
		{ModelName: "m1", Status: evaluator.StatusError, InputTokens: 0, OutputTokens: 0, CostUSD: 0},
	}
	s := Aggregate(records)
	st, _ := s.Get("m1")

	if st.TotalInputTokens != 300 || st.TotalOutputTokens != 120 {
		t.Errorf("Token totals = %d/%d, want 300/120", st.TotalInputTokens, st.TotalOutputTokens)
	}
	if st.AvgInputTokens == nil || *st.AvgInputTokens != 150 {
		t.Errorf("AvgInputTokens = %v, want 150", st.AvgInputTokens)
	}
	if st.AvgOutputTokens == nil || *st.AvgOutputTokens != 60 {
		t.Errorf("AvgOutputTokens = %v, want 60", st.AvgOutputTokens)
	}
	if st.TotalCostUSD != 0.006 {
		t.Errorf("TotalCostUSD = %v, want 0.006", st.TotalCostUSD)
	}
	if st.AvgCostUSD == nil || *st.AvgCostUSD != 0.003 {
		t.Errorf("AvgCostUSD = %v, want 0.003", st.AvgCostUSD)
	}
}

func TestAggregate_JSONValidityDenominator(t *testing.T) {
	records := []evaluator.Record{
		{ModelName: "m1", Status: evaluator.StatusSuccess, LatencyMS: lat(10), JSONValid: valid(true)},
		{ModelName: "m1", Status: evaluator.StatusSuccess, LatencyMS: lat(10), JSONValid: valid(false)},
		{ModelName: "m1", Status: evaluator.StatusError, JSONValid: valid(false)},
		{ModelName: "m1", Status: evaluator.StatusSuccess, LatencyMS: lat(10)},
	}
	s := Aggregate(records)
	st, _ := s.Get("m1")

	if st.JSONValidRate == nil {
		t.Fatal("Expected a JSON validity rate")
	}
	if *st.JSONValidRate != 0.3333 {
		t.Errorf("JSONValidRate = %v, want 0.3333 (1 of 3 judged)", *st.JSONValidRate)
	}
}

func TestAggregate_NoJSONPrompts(t *testing.T) {
	s := Aggregate([]evaluator.Record{successRecord("m1", 10)})
	st, _ := s.Get("m1")
	if st.JSONValidRate != nil {
		t.Error("Expected undefined JSON validity rate when no prompt expected JSON")
	}
}

func TestRows_PreservesFirstSeenOrder(t *testing.T) {
	records := []evaluator.Record{
		successRecord("zeta", 10),
		successRecord("alpha", 20),
		successRecord("zeta", 30),
	}
	rows := Aggregate(records).Rows()
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].ModelName != "zeta" || rows[1].ModelName != "alpha" {
		t.Errorf("Rows out of order: %q, %q", rows[0].ModelName, rows[1].ModelName)
	}
}
