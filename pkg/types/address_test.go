package types

import "testing"

func TestPostalAddressNormalize(t *testing.T) {
	blank := "  "
	company := " Clay Co "
	addr := PostalAddress{
		FirstName:    " Ada ",
		LastName:     "Lovelace",
		Company:      &company,
		AddressLine1: " 1 Kiln Road ",
		AddressLine2: &blank,
		City:         "Austin",
		State:        "TX",
		PostalCode:   " 78701 ",
		Country:      "us",
	}

	got := addr.Normalize()
	if got.FirstName != "Ada" || got.AddressLine1 != "1 Kiln Road" || got.PostalCode != "78701" {
		t.Fatalf("expected trimmed fields, got %+v", got)
	}
	if got.Country != "US" {
		t.Fatalf("expected upper-cased country, got %q", got.Country)
	}
	if got.AddressLine2 != nil {
		t.Fatalf("expected blank line2 to be dropped")
	}
	if got.Company == nil || *got.Company != "Clay Co" {
		t.Fatalf("unexpected company %v", got.Company)
	}
}
