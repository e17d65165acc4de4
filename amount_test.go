package x402

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseTokenAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     string
		wantErr  bool
	}{
		{"whole amount", "1", 6, "1000000", false},
		{"fractional amount", "1.5", 6, "1500000", false},
		{"full precision", "0.000001", 6, "1", false},
		{"zero", "0", 6, "0", false},
		{"zero with fraction", "0.0", 6, "0", false},
		{"leading dot", ".5", 6, "500000", false},
		{"trailing zeros beyond precision", "1.5000000", 6, "1500000", false},
		{"large amount exact", "123456789.123456", 6, "123456789123456", false},
		{"eighteen decimals", "1.000000000000000001", 18, "1000000000000000001", false},
		{"too many fractional digits", "0.0000001", 6, "", true},
		{"not a number", "abc", 6, "", true},
		{"empty", "", 6, "", true},
		{"negative", "-1", 6, "", true},
		{"bare dot", ".", 6, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenAmount(tt.amount, tt.decimals)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseTokenAmount(%q) error = %v, want ErrInvalidAmount", tt.amount, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTokenAmount(%q) error = %v", tt.amount, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseTokenAmount(%q) = %s, want %s", tt.amount, got.String(), tt.want)
			}
		})
	}
}

func TestFormatTokenAmount(t *testing.T) {
	tests := []struct {
		name     string
		atomic   string
		decimals int
		want     string
	}{
		{"whole", "1000000", 6, "1"},
		{"fractional", "1500000", 6, "1.5"},
		{"sub-unit", "1", 6, "0.000001"},
		{"zero", "0", 6, "0"},
		{"zero decimals", "42", 0, "42"},
		{"large eighteen decimals", "1000000000000000001", 18, "1.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic, _ := new(big.Int).SetString(tt.atomic, 10)
			if got := FormatTokenAmount(atomic, tt.decimals); got != tt.want {
				t.Errorf("FormatTokenAmount(%s, %d) = %q, want %q", tt.atomic, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestAmountRoundTrip(t *testing.T) {
	// A value that would lose precision through float64 must survive.
	const atomic = "123456789012345678901234567"
	v, _ := new(big.Int).SetString(atomic, 10)
	human := FormatTokenAmount(v, 18)
	back, err := ParseTokenAmount(human, 18)
	if err != nil {
		t.Fatalf("ParseTokenAmount(%q) error = %v", human, err)
	}
	if back.Cmp(v) != 0 {
		t.Errorf("round trip changed value: %s -> %q -> %s", atomic, human, back.String())
	}
}
