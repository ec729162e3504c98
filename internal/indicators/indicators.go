// Package indicators computes the fixed catalog of technical, volume,
// order-book and positioning indicators the platform tracks for every
// observation. Every calculator is a pure function of its inputs; missing
// inputs degrade gracefully to a documented omission rather than failing the
// whole observation.
package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/sawpanic/marketintel/internal/provider"
)

const (
	rsiPeriod       = 14
	atrPeriod       = 14
	bbandsPeriod    = 20
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	hurstPeriod     = 50
	hurstMinReturns = 10
	adxPeriod       = 14
	stochPeriod     = 14
	stochSlowK      = 3
	stochSlowD      = 3
	williamsPeriod  = 14
	cciPeriod       = 20
	momPeriod       = 10
	rocPeriod       = 10
	smaShort        = 20
	smaLong         = 50
	emaShort        = 12
	emaLong         = 26
	adPeriod        = 14
	mfiPeriod       = 14
	bookImbalanceN  = 5
)

// Category is one of the platform's closed set of indicator groupings.
type Category string

const (
	CategoryPriceStructure  Category = "price_structure"
	CategoryMomentum        Category = "momentum"
	CategoryVolume          Category = "volume"
	CategoryOrderBook       Category = "order_book"
	CategoryPositioning     Category = "positioning"
	CategoryWhalePositioning Category = "whale_positioning"
)

// Bar is one OHLCV price bar used by indicators that need more than a close
// series (ATR, OBV, ADX, stochastics).
type Bar struct {
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Input bundles every data series the indicator catalog can draw on for one
// observation. Only Closes and Bars are required; the remaining fields are
// optional and gate whether order-book/positioning/whale-positioning
// indicators can be computed at all.
type Input struct {
	Closes []float64
	Bars   []Bar

	OrderBook provider.OrderBook
	HaveBook  bool

	Trades []provider.Trade

	OI     provider.OpenInterest
	HaveOI bool

	Funding  provider.Funding
	HaveFund bool
}

// Value is one computed indicator: its raw value, the category it belongs
// to, and an optional [-1, 1] or [0, 1] normalized form for indicators whose
// raw scale isn't directly comparable across symbols.
type Value struct {
	Value      float64
	Category   Category
	Normalized float64
	HasNorm    bool
}

// Result holds every indicator value computed for one observation, plus the
// bookkeeping needed to report completeness.
type Result struct {
	Values   map[string]float64
	Detail   map[string]Value
	Expected int
	Present  int
}

// Completeness returns the fraction of expected indicators actually present.
func (r Result) Completeness() float64 {
	if r.Expected == 0 {
		return 0
	}
	return float64(r.Present) / float64(r.Expected)
}

// catalog is the fixed (unordered) set of indicators computed for every
// observation, organized by the platform's six indicator categories.
// Expanding this list only ever adds new keys; existing keys must keep
// their meaning so persisted observations remain comparable across time.
var catalog = map[string]Category{
	// price-structure
	"bb_upper": CategoryPriceStructure, "bb_middle": CategoryPriceStructure, "bb_lower": CategoryPriceStructure,
	"sma_20": CategoryPriceStructure, "sma_50": CategoryPriceStructure,
	"ema_12": CategoryPriceStructure, "ema_26": CategoryPriceStructure,
	"atr_14": CategoryPriceStructure, "hurst": CategoryPriceStructure,

	// momentum
	"rsi_14": CategoryMomentum, "macd": CategoryMomentum, "macd_signal": CategoryMomentum, "macd_hist": CategoryMomentum,
	"adx_14": CategoryMomentum, "stoch_k": CategoryMomentum, "stoch_d": CategoryMomentum,
	"williams_r": CategoryMomentum, "cci_20": CategoryMomentum, "momentum_10": CategoryMomentum, "roc_10": CategoryMomentum,

	// volume
	"obv": CategoryVolume, "ad": CategoryVolume, "mfi_14": CategoryVolume, "volume_sma_20": CategoryVolume,

	// order-book
	"spread_bps": CategoryOrderBook, "book_imbalance": CategoryOrderBook,
	"bid_depth": CategoryOrderBook, "ask_depth": CategoryOrderBook,

	// positioning
	"funding_rate": CategoryPositioning, "open_interest": CategoryPositioning,
	"trade_flow_imbalance": CategoryPositioning,

	// whale-positioning
	"whale_trade_ratio": CategoryWhalePositioning, "whale_net_flow": CategoryWhalePositioning,
}

// whaleSizeThreshold is the trade size (in quote units) above which a print
// counts toward the whale-positioning indicators.
const whaleSizeThreshold = 50000.0

// Compute runs the full catalog over the supplied inputs. Any calculator
// that cannot produce a value given the available history or missing
// optional inputs is simply omitted from the result rather than causing
// Compute to fail.
func Compute(in Input) Result {
	values := make(map[string]float64, len(catalog))
	detail := make(map[string]Value, len(catalog))

	set := func(key string, v float64, ok bool) {
		if !ok {
			return
		}
		values[key] = v
		detail[key] = Value{Value: v, Category: catalog[key]}
	}
	setNorm := func(key string, v, norm float64, ok bool) {
		if !ok {
			return
		}
		values[key] = v
		detail[key] = Value{Value: v, Category: catalog[key], Normalized: norm, HasNorm: true}
	}

	closes := in.Closes
	bars := in.Bars

	set("rsi_14", computeRSI(closes))
	set("atr_14", computeATR(bars))
	computeMACD(set, closes)
	computeBollinger(set, closes)
	set("obv", computeOBV(bars))
	set("hurst", computeHurst(closes))
	set("sma_20", computeSMA(closes, smaShort))
	set("sma_50", computeSMA(closes, smaLong))
	set("ema_12", computeEMA(closes, emaShort))
	set("ema_26", computeEMA(closes, emaLong))
	set("adx_14", computeADX(bars))
	computeStoch(set, bars)
	set("williams_r", computeWillR(bars))
	set("cci_20", computeCCI(bars))
	set("momentum_10", computeMom(closes))
	set("roc_10", computeROC(closes))
	set("ad", computeAD(bars))
	set("mfi_14", computeMFI(bars))
	set("volume_sma_20", computeVolumeSMA(bars))

	if in.HaveBook {
		book := in.OrderBook
		set("spread_bps", book.SpreadBps(), true)
		bidDepth, askDepth := bookDepths(book, bookImbalanceN)
		set("bid_depth", bidDepth, true)
		set("ask_depth", askDepth, true)
		setNorm("book_imbalance", bidDepth-askDepth, bookImbalance(bidDepth, askDepth), true)
	}

	if in.HaveFund {
		setNorm("funding_rate", in.Funding.Rate, clampUnit(in.Funding.Rate*10000), true)
	}
	if in.HaveOI {
		set("open_interest", in.OI.Value, true)
	}
	if len(in.Trades) > 0 {
		imbalance, ok := tradeFlowImbalance(in.Trades)
		setNorm("trade_flow_imbalance", imbalance, imbalance, ok)

		whaleRatio, whaleNet, ok := whalePositioning(in.Trades)
		setNorm("whale_trade_ratio", whaleRatio, whaleRatio, ok)
		setNorm("whale_net_flow", whaleNet, clampSignedUnit(whaleNet), ok)
	}

	return Result{Values: values, Detail: detail, Expected: len(catalog), Present: len(values)}
}

func computeRSI(closes []float64) (float64, bool) {
	if len(closes) < rsiPeriod+1 {
		return 0, false
	}
	return lastValid(talib.Rsi(closes, rsiPeriod))
}

func computeATR(bars []Bar) (float64, bool) {
	if len(bars) < atrPeriod+1 {
		return 0, false
	}
	highs, lows, closes := splitBars(bars)
	return lastValid(talib.Atr(highs, lows, closes, atrPeriod))
}

func computeMACD(set func(string, float64, bool), closes []float64) {
	if len(closes) < macdSlow+macdSignal {
		return
	}
	macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	set("macd", lastValid(macd))
	set("macd_signal", lastValid(signal))
	set("macd_hist", lastValid(hist))
}

func computeBollinger(set func(string, float64, bool), closes []float64) {
	if len(closes) < bbandsPeriod {
		return
	}
	upper, middle, lower := talib.BBands(closes, bbandsPeriod, 2, 2, talib.SMA)
	set("bb_upper", lastValid(upper))
	set("bb_middle", lastValid(middle))
	set("bb_lower", lastValid(lower))
}

func computeOBV(bars []Bar) (float64, bool) {
	if len(bars) < 2 {
		return 0, false
	}
	_, _, closes := splitBars(bars)
	volumes := volumesOf(bars)
	return lastValid(talib.Obv(closes, volumes))
}

func computeSMA(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	return lastValid(talib.Sma(closes, period))
}

func computeEMA(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	return lastValid(talib.Ema(closes, period))
}

func computeADX(bars []Bar) (float64, bool) {
	if len(bars) < adxPeriod*2 {
		return 0, false
	}
	highs, lows, closes := splitBars(bars)
	return lastValid(talib.Adx(highs, lows, closes, adxPeriod))
}

func computeStoch(set func(string, float64, bool), bars []Bar) {
	if len(bars) < stochPeriod+stochSlowK+stochSlowD {
		return
	}
	highs, lows, closes := splitBars(bars)
	k, d := talib.Stoch(highs, lows, closes, stochPeriod, stochSlowK, talib.SMA, stochSlowD, talib.SMA)
	set("stoch_k", lastValid(k))
	set("stoch_d", lastValid(d))
}

func computeWillR(bars []Bar) (float64, bool) {
	if len(bars) < williamsPeriod {
		return 0, false
	}
	highs, lows, closes := splitBars(bars)
	return lastValid(talib.WillR(highs, lows, closes, williamsPeriod))
}

func computeCCI(bars []Bar) (float64, bool) {
	if len(bars) < cciPeriod {
		return 0, false
	}
	highs, lows, closes := splitBars(bars)
	return lastValid(talib.Cci(highs, lows, closes, cciPeriod))
}

func computeMom(closes []float64) (float64, bool) {
	if len(closes) < momPeriod+1 {
		return 0, false
	}
	return lastValid(talib.Mom(closes, momPeriod))
}

func computeROC(closes []float64) (float64, bool) {
	if len(closes) < rocPeriod+1 {
		return 0, false
	}
	return lastValid(talib.Roc(closes, rocPeriod))
}

func computeAD(bars []Bar) (float64, bool) {
	if len(bars) < 2 {
		return 0, false
	}
	highs, lows, closes := splitBars(bars)
	volumes := volumesOf(bars)
	return lastValid(talib.Ad(highs, lows, closes, volumes))
}

func computeMFI(bars []Bar) (float64, bool) {
	if len(bars) < mfiPeriod+1 {
		return 0, false
	}
	highs, lows, closes := splitBars(bars)
	volumes := volumesOf(bars)
	return lastValid(talib.Mfi(highs, lows, closes, volumes, mfiPeriod))
}

func computeVolumeSMA(bars []Bar) (float64, bool) {
	if len(bars) < smaShort {
		return 0, false
	}
	volumes := volumesOf(bars)
	return lastValid(talib.Sma(volumes, smaShort))
}

func bookDepths(book provider.OrderBook, levels int) (bidDepth, askDepth float64) {
	for i, l := range book.Bids {
		if i >= levels {
			break
		}
		bidDepth += l.Price * l.Size
	}
	for i, l := range book.Asks {
		if i >= levels {
			break
		}
		askDepth += l.Price * l.Size
	}
	return
}

// bookImbalance normalizes bid/ask depth into [-1, 1], positive meaning
// bid-heavy (buy pressure).
func bookImbalance(bidDepth, askDepth float64) float64 {
	total := bidDepth + askDepth
	if total == 0 {
		return 0
	}
	return clampSignedUnit((bidDepth - askDepth) / total)
}

// tradeFlowImbalance returns the signed fraction of recent notional trade
// volume executed on the buy side minus the sell side, in [-1, 1].
func tradeFlowImbalance(trades []provider.Trade) (float64, bool) {
	var buyNotional, sellNotional float64
	for _, t := range trades {
		notional := t.Price * t.Size
		if t.Side == "buy" {
			buyNotional += notional
		} else {
			sellNotional += notional
		}
	}
	total := buyNotional + sellNotional
	if total == 0 {
		return 0, false
	}
	return clampSignedUnit((buyNotional - sellNotional) / total), true
}

// whalePositioning computes two whale-size-filtered positioning signals: the
// fraction of trade count that clears whaleSizeThreshold, and the signed net
// notional flow (buy minus sell) among those large prints.
func whalePositioning(trades []provider.Trade) (ratio, netFlow float64, ok bool) {
	var whaleCount int
	var net float64
	for _, t := range trades {
		notional := t.Price * t.Size
		if notional < whaleSizeThreshold {
			continue
		}
		whaleCount++
		if t.Side == "buy" {
			net += notional
		} else {
			net -= notional
		}
	}
	if len(trades) == 0 {
		return 0, 0, false
	}
	ratio = float64(whaleCount) / float64(len(trades))
	return ratio, net, true
}

func volumesOf(bars []Bar) []float64 {
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	return volumes
}

func splitBars(bars []Bar) (highs, lows, closes []float64) {
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	return
}

// lastValid returns the last non-NaN value in a talib output series, since
// talib pads the warm-up window with NaN rather than trimming it.
func lastValid(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i], true
		}
	}
	return 0, false
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSignedUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// computeHurst estimates the Hurst exponent via rescaled-range analysis over
// the most recent hurstPeriod closes. talib has no equivalent, so this stays
// hand-rolled.
func computeHurst(closes []float64) (float64, bool) {
	if len(closes) < hurstPeriod {
		return 0, false
	}
	recent := closes[len(closes)-hurstPeriod:]

	logReturns := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		if recent[i] > 0 && recent[i-1] > 0 {
			logReturns = append(logReturns, math.Log(recent[i]/recent[i-1]))
		}
	}
	if len(logReturns) < hurstMinReturns {
		return 0, false
	}

	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))

	cum := make([]float64, len(logReturns))
	cum[0] = logReturns[0] - mean
	for i := 1; i < len(logReturns); i++ {
		cum[i] = cum[i-1] + (logReturns[i] - mean)
	}

	maxDev, minDev := cum[0], cum[0]
	for _, d := range cum {
		if d > maxDev {
			maxDev = d
		}
		if d < minDev {
			minDev = d
		}
	}
	rRange := maxDev - minDev

	variance := 0.0
	for _, r := range logReturns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(logReturns) - 1)
	stdDev := math.Sqrt(variance)

	rsRatio := 1.0
	if stdDev > 0 {
		rsRatio = rRange / stdDev
	}

	n := float64(len(logReturns))
	hurst := 0.5
	if rsRatio > 0 && n > 1 {
		hurst = math.Log(rsRatio) / math.Log(n)
	}
	if hurst < 0 {
		hurst = 0
	} else if hurst > 1 {
		hurst = 1
	}
	return hurst, true
}
