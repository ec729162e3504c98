package kraken

import "testing"

func TestToWirePair(t *testing.T) {
	if got := toWirePair("BTC", "USD"); got != "XBTUSD" {
		t.Fatalf("expected XBTUSD, got %s", got)
	}
	if got := toWirePair("ETH", "USD"); got != "ETHUSD" {
		t.Fatalf("expected ETHUSD, got %s", got)
	}
}

func TestFromWireAsset(t *testing.T) {
	cases := map[string]string{
		"XXBT": "BTC",
		"ZUSD": "USD",
		"XETH": "ETH",
	}
	for in, want := range cases {
		if got := fromWireAsset(in); got != want {
			t.Fatalf("fromWireAsset(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	price, size, err := parseLevel([]interface{}{"50000.1", "0.25", float64(1690000000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 50000.1 || size != 0.25 {
		t.Fatalf("unexpected parsed level: price=%f size=%f", price, size)
	}
}

func TestParseLevelMalformed(t *testing.T) {
	if _, _, err := parseLevel([]interface{}{"50000.1"}); err == nil {
		t.Fatalf("expected error for malformed level")
	}
}

func TestTradeEntrySide(t *testing.T) {
	buy := tradeEntry([]interface{}{"100", "1", float64(123), "b", "l"})
	if buy.side() != "buy" {
		t.Fatalf("expected buy, got %s", buy.side())
	}
	sell := tradeEntry([]interface{}{"100", "1", float64(123), "s", "l"})
	if sell.side() != "sell" {
		t.Fatalf("expected sell, got %s", sell.side())
	}
}

func TestIntervalToMinutes(t *testing.T) {
	if intervalToMinutes("1h") != 60 {
		t.Fatalf("expected 60 minutes for 1h")
	}
	if intervalToMinutes("unknown") != 1 {
		t.Fatalf("expected fallback of 1 minute for unknown interval")
	}
}
