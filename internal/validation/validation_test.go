package validation

import (
	"testing"

	"github.com/streamstall/liveassist/internal/types"
)

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"non-empty", "host", false},
		{"empty", "", true},
		{"whitespace only", "   \t", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired("field", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequired(%q) = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID("session_id", "4f2d9c3e-8b1a-4e5f-9c7d-2a6b8e0f1d3c"); err != nil {
		t.Errorf("valid UUID rejected: %v", err)
	}
	if err := ValidateUUID("session_id", "not-a-uuid"); err == nil {
		t.Error("invalid UUID accepted")
	}
	if err := ValidateUUID("session_id", ""); err == nil {
		t.Error("empty UUID accepted")
	}
}

func TestValidateMaxLength(t *testing.T) {
	if err := ValidateMaxLength("name", "红富士苹果", 5); err != nil {
		t.Errorf("5 runes within limit 5 rejected: %v", err)
	}
	if err := ValidateMaxLength("name", "红富士苹果", 4); err == nil {
		t.Error("5 runes over limit 4 accepted")
	}
}

func TestValidateProductType(t *testing.T) {
	if err := ValidateProductType("product_type", types.ProductTypeFruit); err != nil {
		t.Errorf("fruit rejected: %v", err)
	}
	if err := ValidateProductType("product_type", ""); err != nil {
		t.Errorf("empty type rejected: %v", err)
	}
	if err := ValidateProductType("product_type", types.ProductType("furniture")); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestValidateNonNegative(t *testing.T) {
	if err := ValidateNonNegative("price", 0); err != nil {
		t.Errorf("zero rejected: %v", err)
	}
	if err := ValidateNonNegative("price", 19.9); err != nil {
		t.Errorf("positive rejected: %v", err)
	}
	if err := ValidateNonNegative("price", -0.01); err == nil {
		t.Error("negative accepted")
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	if c.HasErrors() {
		t.Error("fresh collector has errors")
	}

	c.Add(nil)
	if c.HasErrors() {
		t.Error("nil add recorded an error")
	}

	c.Add(ValidateRequired("host_name", ""))
	c.Add(ValidateNonNegative("price", -1))
	if !c.HasErrors() {
		t.Fatal("expected errors")
	}
	if got := len(c.Errors()); got != 2 {
		t.Errorf("Errors() len = %d, want 2", got)
	}
	if c.Errors()[0].Field != "host_name" {
		t.Errorf("first error field = %q, want host_name", c.Errors()[0].Field)
	}
}
