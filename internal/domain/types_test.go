package domain

import "testing"

func TestOrderRequestValidate(t *testing.T) {
	valid := OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET", Quantity: 0.01}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid market order rejected: %v", err)
	}

	cases := []struct {
		name string
		req  OrderRequest
	}{
		{"missing symbol", OrderRequest{Side: "BUY", Type: "MARKET", Quantity: 1}},
		{"missing side", OrderRequest{Symbol: "BTCUSDT", Type: "MARKET", Quantity: 1}},
		{"missing type", OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Quantity: 1}},
		{"zero quantity", OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "MARKET"}},
		{"bad side", OrderRequest{Symbol: "BTCUSDT", Side: "LONG", Type: "MARKET", Quantity: 1}},
		{"bad type", OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "ICEBERG", Quantity: 1}},
		{"limit without price", OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "LIMIT", Quantity: 1}},
		{"stop-limit without stop", OrderRequest{Symbol: "BTCUSDT", Side: "SELL", Type: "STOP_LIMIT", Quantity: 1, Price: 65000}},
	}
	for _, tc := range cases {
		if err := tc.req.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", tc.name)
		}
	}
}

func TestOrderRequestValidateLimitVariants(t *testing.T) {
	limit := OrderRequest{Symbol: "ETHUSDT", Side: "SELL", Type: "LIMIT", Quantity: 0.5, Price: 3200.5}
	if err := limit.Validate(); err != nil {
		t.Errorf("valid limit order rejected: %v", err)
	}

	stopLimit := OrderRequest{Symbol: "ETHUSDT", Side: "SELL", Type: "STOP_LIMIT", Quantity: 0.5, Price: 3200.5, StopPrice: 3100}
	if err := stopLimit.Validate(); err != nil {
		t.Errorf("valid stop-limit order rejected: %v", err)
	}

	twap := OrderRequest{Symbol: "BTCUSDT", Side: "BUY", Type: "TWAP", Quantity: 1, TwapDuration: 10}
	if err := twap.Validate(); err != nil {
		t.Errorf("valid TWAP order rejected: %v", err)
	}
}
