package kraken

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// apiResponse is Kraken's standard envelope: a list of error strings and a
// raw result payload whose shape depends on the endpoint.
type apiResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

type serverTimeResult struct {
	UnixTime int64  `json:"unixtime"`
	RFC1123  string `json:"rfc1123"`
}

// ohlcRow is one raw row of the pair-keyed array in Kraken's OHLC result,
// which also carries a "last" cursor field (see extractOHLCRows).
type ohlcRow []interface{}

// tickerInfo is one pair's entry in the Ticker endpoint response.
type tickerInfo struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Volume []string `json:"v"`
}

func (t tickerInfo) askPrice() (float64, error) {
	if len(t.Ask) == 0 {
		return 0, fmt.Errorf("kraken: no ask price in ticker")
	}
	return strconv.ParseFloat(t.Ask[0], 64)
}

func (t tickerInfo) bidPrice() (float64, error) {
	if len(t.Bid) == 0 {
		return 0, fmt.Errorf("kraken: no bid price in ticker")
	}
	return strconv.ParseFloat(t.Bid[0], 64)
}

// depthResult is one pair's entry in the Depth endpoint response.
type depthResult struct {
	Asks [][]interface{} `json:"asks"`
	Bids [][]interface{} `json:"bids"`
}

func parseLevel(raw []interface{}) (price, size float64, err error) {
	if len(raw) < 2 {
		return 0, 0, fmt.Errorf("kraken: malformed book level %v", raw)
	}
	priceStr, ok := raw[0].(string)
	if !ok {
		return 0, 0, fmt.Errorf("kraken: non-string price in book level")
	}
	sizeStr, ok := raw[1].(string)
	if !ok {
		return 0, 0, fmt.Errorf("kraken: non-string size in book level")
	}
	price, err = strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("kraken: parse price: %w", err)
	}
	size, err = strconv.ParseFloat(sizeStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("kraken: parse size: %w", err)
	}
	return price, size, nil
}

// tradeEntry is one row of the Trades endpoint response: [price, volume,
// time, buy_or_sell, market_or_limit, misc].
type tradeEntry []interface{}

func (t tradeEntry) timestamp() time.Time {
	if len(t) < 3 {
		return time.Time{}
	}
	sec, ok := t[2].(float64)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)).UTC()
}

func (t tradeEntry) priceFloat() (float64, error) {
	return tradeNumericField(t, 0)
}

func (t tradeEntry) volumeFloat() (float64, error) {
	return tradeNumericField(t, 1)
}

func tradeNumericField(t tradeEntry, idx int) (float64, error) {
	if len(t) <= idx {
		return 0, fmt.Errorf("kraken: trade row missing field %d", idx)
	}
	s, ok := t[idx].(string)
	if !ok {
		return 0, fmt.Errorf("kraken: trade field %d is not a string", idx)
	}
	return strconv.ParseFloat(s, 64)
}

func (t tradeEntry) side() string {
	if len(t) < 4 {
		return ""
	}
	s, _ := t[3].(string)
	if s == "b" {
		return "buy"
	}
	return "sell"
}

// openInterestResult is Kraken Futures' single-instrument open interest
// reading.
type openInterestResult struct {
	OpenInterest float64 `json:"openInterest"`
}

// fundingResult is Kraken Futures' funding rate reading for a perpetual.
type fundingResult struct {
	FundingRate     float64 `json:"fundingRate"`
	NextFundingTime int64   `json:"nextFundingTime"`
}

// assetPairsResult maps pair name to its tradable metadata; ListSymbols
// builds canonical symbols from each entry's base and quote assets.
type assetPairsResult map[string]struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}
