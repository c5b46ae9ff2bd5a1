package models

import "testing"

func TestLookupInstrument(t *testing.T) {
	inst, err := LookupInstrument("O1GC")
	if err != nil {
		t.Fatalf("LookupInstrument failed: %v", err)
	}
	if inst.Code != "O1GC" || inst.Timezone != "America/New_York" {
		t.Errorf("instrument = %+v", inst)
	}
	if inst.Location() == nil {
		t.Error("instrument location not loaded")
	}
}

func TestLookupInstrumentUnknown(t *testing.T) {
	if _, err := LookupInstrument("NOPE"); err == nil {
		t.Error("unknown code did not error")
	}
}

func TestInstrumentCodes(t *testing.T) {
	codes := InstrumentCodes()
	if len(codes) != len(instruments) {
		t.Fatalf("got %d codes, want %d", len(codes), len(instruments))
	}
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		seen[code] = true
	}
	for _, want := range []string{"HSI", "WTX", "O1GC", "M1ES"} {
		if !seen[want] {
			t.Errorf("code %s missing from registry", want)
		}
	}
}
