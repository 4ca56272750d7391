package strategy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"smc-trading-bot/internal/binance"
)

const (
	fractalWing = 2

	// Per-touch contribution to zone strength and the caps on each half.
	touchWeight    = 20.0
	touchCap       = 50.0
	volumeDivisor  = 1e6
	volumeCap      = 50.0
	maxStrength    = 100.0
	touchTolerance = 0.001 // 0.1% band around the level
)

// Analyze runs one pass of the sweep engine over the full candle window.
// It appends newly found zones, tests unswept zones against the latest
// candle for a sweep, derives entries from confirmed sweeps and returns
// what this pass produced. State mutations are cumulative across calls.
func Analyze(state *State, cfg Config, candles []binance.Kline, now time.Time) Result {
	var result Result
	if len(candles) == 0 {
		return result
	}

	result.Zones = trackNewZones(state, candles)
	refreshStrength(state, candles)
	result.Sweeps = detectSweeps(state, cfg, candles[len(candles)-1], now)

	for _, sweep := range result.Sweeps {
		if entry, ok := buildEntry(state, cfg, sweep, now); ok {
			result.Entries = append(result.Entries, entry)
		}
	}

	return result
}

// trackNewZones scans the window for 5-candle fractal highs and lows not
// yet tracked and appends them as zones.
func trackNewZones(state *State, candles []binance.Kline) []LiquidityZone {
	var added []LiquidityZone

	for i := fractalWing; i < len(candles)-fractalWing; i++ {
		if high, ok := fractalHigh(candles, i); ok {
			added = append(added, addZone(state, candles[i], high, BuySide)...)
		}
		if low, ok := fractalLow(candles, i); ok {
			added = append(added, addZone(state, candles[i], low, SellSide)...)
		}
	}

	return added
}

func addZone(state *State, candle binance.Kline, price float64, side ZoneSide) []LiquidityZone {
	key := zoneKey(candle.OpenTime, side)
	if _, ok := state.seen[key]; ok {
		return nil
	}
	state.seen[key] = struct{}{}

	zone := &LiquidityZone{
		ID:        uuid.New().String(),
		Price:     price,
		Side:      side,
		Timestamp: time.UnixMilli(candle.OpenTime),
	}
	state.Zones = append(state.Zones, zone)
	return []LiquidityZone{*zone}
}

func zoneKey(openTime int64, side ZoneSide) string {
	return fmt.Sprintf("%d:%s", openTime, side)
}

func fractalHigh(candles []binance.Kline, i int) (float64, bool) {
	h := candles[i].High
	if h > candles[i-1].High && h > candles[i-2].High &&
		h > candles[i+1].High && h > candles[i+2].High {
		return h, true
	}
	return 0, false
}

func fractalLow(candles []binance.Kline, i int) (float64, bool) {
	l := candles[i].Low
	if l < candles[i-1].Low && l < candles[i-2].Low &&
		l < candles[i+1].Low && l < candles[i+2].Low {
		return l, true
	}
	return 0, false
}

// refreshStrength recomputes every zone's strength from the window:
// touches contribute 20 points each capped at 50, volume traded near the
// level adds up to 50 more, total capped at 100.
func refreshStrength(state *State, candles []binance.Kline) {
	for _, zone := range state.Zones {
		touches := 0
		volumeNear := 0.0
		lower := zone.Price * (1 - touchTolerance)
		upper := zone.Price * (1 + touchTolerance)

		for _, c := range candles {
			if c.High >= lower && c.Low <= upper {
				touches++
				volumeNear += c.Volume
			}
		}

		strength := float64(touches) * touchWeight
		if strength > touchCap {
			strength = touchCap
		}
		volumeScore := volumeNear / volumeDivisor
		if volumeScore > volumeCap {
			volumeScore = volumeCap
		}
		strength += volumeScore
		if strength > maxStrength {
			strength = maxStrength
		}
		zone.Strength = strength
	}
}

// detectSweeps tests each unswept, strong-enough zone against the latest
// candle. A qualifying pierce past the threshold with a close back on the
// origin side marks the zone swept forever and emits one signal.
func detectSweeps(state *State, cfg Config, latest binance.Kline, now time.Time) []SweepSignal {
	threshold := cfg.SweepThresholdPct / 100
	var sweeps []SweepSignal

	for _, zone := range state.Zones {
		if zone.Swept || zone.Strength < cfg.MinZoneStrength {
			continue
		}

		var signal *SweepSignal
		switch zone.Side {
		case SellSide:
			if latest.Low < zone.Price*(1-threshold) && latest.Close > zone.Price {
				signal = &SweepSignal{
					SweepPrice:    latest.Low,
					ReversalPrice: latest.Close,
				}
			}
		case BuySide:
			if latest.High > zone.Price*(1+threshold) && latest.Close < zone.Price {
				signal = &SweepSignal{
					SweepPrice:    latest.High,
					ReversalPrice: latest.Close,
				}
			}
		}

		if signal == nil {
			continue
		}

		zone.Swept = true
		signal.ID = uuid.New().String()
		signal.ZoneID = zone.ID
		signal.Side = zone.Side
		signal.Timestamp = now
		signal.Confirmed = true
		state.Sweeps = append(state.Sweeps, *signal)
		sweeps = append(sweeps, *signal)
	}

	return sweeps
}

// buildEntry derives the sniper entry for a confirmed sweep. A sell-side
// sweep (stops below a low were taken) sets up a long; buy-side mirrors
// short. Targets ladder at 2R, 3R and 5R from the entry. Entries are
// capped per trailing window.
func buildEntry(state *State, cfg Config, sweep SweepSignal, now time.Time) (EntryPoint, bool) {
	if countRecentEntries(state, now.Add(-cfg.EntryWindow)) >= cfg.MaxActiveEntries {
		return EntryPoint{}, false
	}

	entry := EntryPoint{
		ID:        uuid.New().String(),
		Price:     sweep.ReversalPrice,
		Timestamp: now,
	}

	switch sweep.Side {
	case SellSide:
		entry.Direction = Long
		entry.StopLoss = sweep.SweepPrice * 0.999
		risk := entry.Price - entry.StopLoss
		if risk <= 0 {
			return EntryPoint{}, false
		}
		entry.TakeProfits = [3]float64{
			entry.Price + risk*2,
			entry.Price + risk*3,
			entry.Price + risk*5,
		}
	case BuySide:
		entry.Direction = Short
		entry.StopLoss = sweep.SweepPrice * 1.001
		risk := entry.StopLoss - entry.Price
		if risk <= 0 {
			return EntryPoint{}, false
		}
		entry.TakeProfits = [3]float64{
			entry.Price - risk*2,
			entry.Price - risk*3,
			entry.Price - risk*5,
		}
	default:
		return EntryPoint{}, false
	}

	// Managed to the middle target.
	entry.RewardRisk = abs(entry.TakeProfits[1]-entry.Price) / abs(entry.Price-entry.StopLoss)
	entry.Confidence = zoneStrength(state, sweep.ZoneID)

	state.Entries = append(state.Entries, entry)
	return entry, true
}

func countRecentEntries(state *State, since time.Time) int {
	count := 0
	for _, e := range state.Entries {
		if e.Timestamp.After(since) {
			count++
		}
	}
	return count
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func zoneStrength(state *State, zoneID string) float64 {
	for _, zone := range state.Zones {
		if zone.ID == zoneID {
			return zone.Strength
		}
	}
	return 0
}

// Cleanup evicts zones, sweeps and entries older than the retention
// window. Resource bound only; the seen set is kept so evicted swept
// zones cannot come back.
func Cleanup(state *State, cfg Config, now time.Time) {
	cutoff := now.Add(-cfg.Retention)

	zones := state.Zones[:0]
	for _, zone := range state.Zones {
		if zone.Timestamp.After(cutoff) {
			zones = append(zones, zone)
		}
	}
	state.Zones = zones

	sweeps := state.Sweeps[:0]
	for _, sweep := range state.Sweeps {
		if sweep.Timestamp.After(cutoff) {
			sweeps = append(sweeps, sweep)
		}
	}
	state.Sweeps = sweeps

	entries := state.Entries[:0]
	for _, entry := range state.Entries {
		if entry.Timestamp.After(cutoff) {
			entries = append(entries, entry)
		}
	}
	state.Entries = entries
}

// BestEntry picks the strongest candidate from a set: highest confidence,
// reward:risk breaking ties.
func BestEntry(entries []EntryPoint) *EntryPoint {
	var best *EntryPoint
	for i := range entries {
		e := &entries[i]
		if best == nil || e.Confidence > best.Confidence ||
			(e.Confidence == best.Confidence && e.RewardRisk > best.RewardRisk) {
			best = e
		}
	}
	return best
}
