package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func flags(images []ProductImage) []bool {
	out := make([]bool, len(images))
	for i, img := range images {
		out[i] = img.IsPrimary
	}
	return out
}

func TestNormalizePrimaryImage(t *testing.T) {
	tests := []struct {
		name string
		in   []bool
		want []bool
	}{
		{name: "none flagged promotes first", in: []bool{false, false}, want: []bool{true, false}},
		{name: "two flagged keeps first", in: []bool{true, true}, want: []bool{true, false}},
		{name: "later flag kept", in: []bool{false, true, true}, want: []bool{false, true, false}},
		{name: "single", in: []bool{false}, want: []bool{true}},
		{name: "empty", in: nil, want: []bool{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := make([]ProductImage, len(tt.in))
			for i, primary := range tt.in {
				images[i] = ProductImage{URL: "u", IsPrimary: primary}
			}
			got := flags(NormalizePrimaryImage(images))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d images, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestNormalizePrimaryImageIsIdempotent(t *testing.T) {
	images := []ProductImage{{URL: "a"}, {URL: "b", IsPrimary: true}, {URL: "c", IsPrimary: true}}
	once := flags(NormalizePrimaryImage(images))
	twice := flags(NormalizePrimaryImage(images))
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("second pass changed flags: %v vs %v", once, twice)
		}
	}
	if images[0].Alt != DefaultImageAlt {
		t.Fatalf("expected default alt, got %q", images[0].Alt)
	}
}

func TestProductBeforeSaveRepairsGallery(t *testing.T) {
	p := &Product{Images: []ProductImage{{URL: "a"}, {URL: "b"}}}
	if err := p.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if primary := p.PrimaryImage(); primary == nil || primary.URL != "a" {
		t.Fatalf("expected first image primary, got %+v", primary)
	}
}

func TestEffectivePriceAndDiscount(t *testing.T) {
	discount := decimal.NewFromInt(75)
	p := &Product{Price: decimal.NewFromInt(100), DiscountPrice: &discount}
	if !p.EffectivePrice().Equal(discount) {
		t.Fatalf("expected discount price, got %s", p.EffectivePrice())
	}
	if got := p.DiscountPercentage(); got != 25 {
		t.Fatalf("expected 25%% off, got %d", got)
	}

	plain := &Product{Price: decimal.NewFromInt(40)}
	if !plain.EffectivePrice().Equal(decimal.NewFromInt(40)) || plain.DiscountPercentage() != 0 {
		t.Fatalf("unexpected pricing for undiscounted product")
	}
}
