package chain

import "testing"

func TestGetKnownCurrencies(t *testing.T) {
	cases := []struct {
		symbol  string
		network Network
	}{
		{"BTC", Mainnet},
		{"BTC", Testnet},
		{"LTC", Mainnet},
		{"L-BTC", Mainnet},
		{"ETH", Mainnet},
		{"ETH", Testnet},
	}

	for _, c := range cases {
		params, ok := Get(c.symbol, c.network)
		if !ok {
			t.Fatalf("expected %s/%s to be registered", c.symbol, c.network)
		}
		if params.Symbol != c.symbol {
			t.Errorf("Symbol = %q, want %q", params.Symbol, c.symbol)
		}
	}
}

func TestGetUnknownCurrency(t *testing.T) {
	if _, ok := Get("DOGE", Mainnet); ok {
		t.Error("expected DOGE to be unregistered")
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("BTC") {
		t.Error("expected BTC to be supported")
	}
	if IsSupported("XRP") {
		t.Error("expected XRP to be unsupported")
	}
}

func TestListByType(t *testing.T) {
	bitcoinFamily := ListByType(ChainTypeBitcoin)
	want := map[string]bool{"BTC": true, "LTC": true, "L-BTC": true}
	for _, symbol := range bitcoinFamily {
		if !want[symbol] {
			t.Errorf("unexpected bitcoin-family symbol %q", symbol)
		}
		delete(want, symbol)
	}
	if len(want) != 0 {
		t.Errorf("missing bitcoin-family symbols: %v", want)
	}
}

func TestGetByChainID(t *testing.T) {
	params, ok := GetByChainID(1, Mainnet)
	if !ok || params.Symbol != "ETH" {
		t.Fatalf("expected chain id 1 mainnet to resolve to ETH, got %+v ok=%v", params, ok)
	}

	if _, ok := GetByChainID(999999, Mainnet); ok {
		t.Error("expected unknown chain id to be unresolved")
	}
}

func TestNativeTokenSymbol(t *testing.T) {
	eth, _ := Get("ETH", Mainnet)
	if got := eth.NativeTokenSymbol(); got != "ETH" {
		t.Errorf("NativeTokenSymbol() = %q, want ETH", got)
	}

	btc, _ := Get("BTC", Mainnet)
	btc.NativeToken = ""
	if got := btc.NativeTokenSymbol(); got != "BTC" {
		t.Errorf("NativeTokenSymbol() fallback = %q, want BTC", got)
	}
}

func TestSupportsTaproot(t *testing.T) {
	for _, symbol := range []string{"BTC", "LTC", "L-BTC"} {
		params, ok := Get(symbol, Mainnet)
		if !ok {
			t.Fatalf("%s not registered", symbol)
		}
		if !params.SupportsTaproot {
			t.Errorf("%s: expected Taproot support", symbol)
		}
	}
}
