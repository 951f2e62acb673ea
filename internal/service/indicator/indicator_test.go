package indicator

import (
	"errors"
	"math"
	"testing"

	"StockPulse/internal/domain/models"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}

	got, err := SMA(values, 3)
	if err != nil {
		t.Fatalf("SMA: %v", err)
	}
	if !almost(got, 5) {
		t.Errorf("SMA(.., 3) = %v, want 5", got)
	}

	if _, err := SMA(values, 7); err == nil {
		t.Error("SMA with short series did not error")
	}
	if _, err := SMA(values, 0); err == nil {
		t.Error("SMA with zero period did not error")
	}
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 40)
	falling := make([]float64, 40)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
	}

	if got := RSI(rising, 14); got != 100 {
		t.Errorf("RSI of monotonic rise = %v, want 100", got)
	}
	if got := RSI(falling, 14); got > 1e-9 {
		t.Errorf("RSI of monotonic fall = %v, want ~0", got)
	}
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("RSI of short series = %v, want neutral 50", got)
	}
}

func TestRSIBounded(t *testing.T) {
	closes := []float64{
		10, 10.5, 10.2, 10.8, 10.6, 11.0, 10.9, 11.2, 11.1, 11.5,
		11.3, 11.8, 11.6, 12.0, 11.9, 12.3, 12.1, 12.5, 12.4, 12.8,
	}
	got := RSI(closes, 14)
	if got <= 50 || got >= 100 {
		t.Errorf("RSI of choppy uptrend = %v, want inside (50, 100)", got)
	}
}

func TestEMAConvergesToConstant(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 42
	}
	out := EMA(values, 12)
	if !almost(out[len(out)-1], 42) {
		t.Errorf("EMA of constant series = %v, want 42", out[len(out)-1])
	}
}

func TestMACDSignOnTrend(t *testing.T) {
	up := make([]float64, 60)
	down := make([]float64, 60)
	for i := range up {
		up[i] = 100 * math.Pow(1.01, float64(i))
		down[i] = 100 * math.Pow(0.99, float64(i))
	}

	line, _, hist := MACD(up)
	if line <= 0 {
		t.Errorf("MACD line on steady uptrend = %v, want > 0", line)
	}
	_ = hist

	line, _, _ = MACD(down)
	if line >= 0 {
		t.Errorf("MACD line on steady downtrend = %v, want < 0", line)
	}
}

func barsFromSeries(closes, volumes []float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i := range closes {
		bars[i] = models.Bar{Close: closes[i], Volume: volumes[i]}
	}
	return bars
}

func TestComputeRejectsShortSeries(t *testing.T) {
	bars := make([]models.Bar, MinBars-1)
	if _, err := Compute(bars); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Compute short series = %v, want ErrInsufficientData", err)
	}
}

func TestComputeSnapshot(t *testing.T) {
	closes := make([]float64, 40)
	volumes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
		volumes[i] = 1000
	}
	// Spike the last volume to 2x the trailing average baseline.
	volumes[39] = 5000

	snap, err := Compute(barsFromSeries(closes, volumes))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if !almost(snap.Close, 139) || !almost(snap.PrevClose, 138) {
		t.Errorf("closes = %v / %v", snap.Close, snap.PrevClose)
	}
	// Last five closes are 135..139.
	if !almost(snap.MA5, 137) {
		t.Errorf("MA5 = %v, want 137", snap.MA5)
	}
	if !almost(snap.MA10, 134.5) {
		t.Errorf("MA10 = %v, want 134.5", snap.MA10)
	}
	if !almost(snap.MA20, 129.5) {
		t.Errorf("MA20 = %v, want 129.5", snap.MA20)
	}
	// VolMA5 = (1000*4 + 5000) / 5 = 1800.
	if !almost(snap.VolMA5, 1800) {
		t.Errorf("VolMA5 = %v, want 1800", snap.VolMA5)
	}
	if !almost(snap.VolumeRatio, 5000.0/1800.0) {
		t.Errorf("VolumeRatio = %v", snap.VolumeRatio)
	}
	wantChange := (139.0 - 138.0) / 138.0 * 100
	if !almost(snap.PriceChangePct, wantChange) {
		t.Errorf("PriceChangePct = %v, want %v", snap.PriceChangePct, wantChange)
	}
	if snap.RSI != 100 {
		t.Errorf("RSI on monotonic rise = %v, want 100", snap.RSI)
	}
	if snap.MACDLine <= 0 {
		t.Errorf("MACD line on uptrend = %v, want > 0", snap.MACDLine)
	}
}
