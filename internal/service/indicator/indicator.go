package indicator

import (
	"errors"

	"StockPulse/internal/domain/models"
)

// MinBars is the smallest daily history the scoring pipeline accepts.
// Shorter series skip indicator evaluation entirely.
const MinBars = 30

var ErrInsufficientData = errors.New("not enough bars for indicator evaluation")

// Snapshot is the indicator state of a symbol as of its latest bar.
type Snapshot struct {
	Close     float64
	PrevClose float64

	MA5  float64
	MA10 float64
	MA20 float64

	VolMA5      float64
	VolumeRatio float64

	PriceChangePct float64

	RSI     float64
	PrevRSI float64

	MACDLine   float64
	SignalLine float64
	Histogram  float64
}

// Compute evaluates the full indicator set over daily bars, oldest first.
func Compute(bars []models.Bar) (Snapshot, error) {
	if len(bars) < MinBars {
		return Snapshot{}, ErrInsufficientData
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	var snap Snapshot
	snap.Close = closes[len(closes)-1]
	snap.PrevClose = closes[len(closes)-2]

	var err error
	if snap.MA5, err = SMA(closes, 5); err != nil {
		return Snapshot{}, err
	}
	if snap.MA10, err = SMA(closes, 10); err != nil {
		return Snapshot{}, err
	}
	if snap.MA20, err = SMA(closes, 20); err != nil {
		return Snapshot{}, err
	}
	if snap.VolMA5, err = SMA(volumes, 5); err != nil {
		return Snapshot{}, err
	}

	if snap.VolMA5 > 0 {
		snap.VolumeRatio = volumes[len(volumes)-1] / snap.VolMA5
	}
	if snap.PrevClose > 0 {
		snap.PriceChangePct = (snap.Close - snap.PrevClose) / snap.PrevClose * 100
	}

	snap.RSI = RSI(closes, 14)
	snap.PrevRSI = RSI(closes[:len(closes)-1], 14)
	snap.MACDLine, snap.SignalLine, snap.Histogram = MACD(closes)

	return snap, nil
}

// SMA computes the simple moving average of the trailing period.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// RSI computes the Wilder-smoothed relative strength index. Series shorter
// than period+1 yield the neutral 50.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// EMA computes the exponential moving average series, seeded with the first
// value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	k := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1.0-k)
	}
	return out
}

// MACD computes the 12/26 MACD line, the 9-period signal line, and the
// histogram, each as of the latest close.
func MACD(closes []float64) (line, signal, histogram float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	fast := EMA(closes, 12)
	slow := EMA(closes, 26)
	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = fast[i] - slow[i]
	}
	dea := EMA(dif, 9)

	last := len(closes) - 1
	return dif[last], dea[last], dif[last] - dea[last]
}
