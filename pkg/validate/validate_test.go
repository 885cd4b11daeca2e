package validate

import (
	"context"
	"errors"
	"math"
	"testing"
)

type sample struct {
	Symbol string   `json:"symbol" validate:"required"`
	Price  *float64 `json:"price" validate:"required,finite,gte=0"`
	Score  float64  `json:"score" validate:"finite,gte=-1,lte=1"`
	Side   string   `json:"side" default:"BUY" validate:"oneof=BUY SELL"`
}

func fp(v float64) *float64 { return &v }

func TestStructAppliesDefaults(t *testing.T) {
	s := sample{Symbol: "SPY", Price: fp(1)}
	if err := Struct(context.Background(), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Side != "BUY" {
		t.Fatalf("side = %q, want BUY", s.Side)
	}
}

func TestFiniteRule(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		ok    bool
	}{
		{"zero", 0, true},
		{"nan", math.NaN(), false},
		{"posinf", math.Inf(1), false},
		{"neginf", math.Inf(-1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := sample{Symbol: "SPY", Price: fp(tc.price)}
			err := Struct(context.Background(), &s)
			if (err == nil) != tc.ok {
				t.Fatalf("err = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestFieldsUseJSONNames(t *testing.T) {
	s := sample{Price: fp(1), Score: 2, Side: "HOLD"}
	fields := Fields(Struct(context.Background(), &s))
	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Code
	}
	want := map[string]string{"symbol": "ERR_REQUIRED", "score": "ERR_LTE", "side": "ERR_ONEOF"}
	for field, code := range want {
		if got[field] != code {
			t.Fatalf("field %s code = %q, want %q (all: %v)", field, got[field], code, got)
		}
	}
}

func TestFieldsNonValidatorError(t *testing.T) {
	fields := Fields(errors.New("boom"))
	if len(fields) != 1 || fields[0].Code != "ERR_UNKNOWN" || fields[0].Message != "boom" {
		t.Fatalf("unexpected %+v", fields)
	}
	if Fields(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}
