package checkout

import "testing"

func TestParsePacks(t *testing.T) {
	packs, err := ParsePacks("starter=1000000:9900, Plus=5000000:39900")
	if err != nil {
		t.Fatalf("parse packs: %v", err)
	}
	if len(packs) != 2 {
		t.Fatalf("expected 2 packs, got %d", len(packs))
	}
	if packs[0].ID != "starter" || packs[0].TokenCredits != 1_000_000 || packs[0].AmountMinor != 9_900 {
		t.Fatalf("unexpected starter pack: %+v", packs[0])
	}
	if packs[1].ID != "plus" {
		t.Fatalf("expected lowercased pack id, got %q", packs[1].ID)
	}
}

func TestParsePacksRejectsInvalidEntries(t *testing.T) {
	cases := []string{
		"",
		"starter",
		"starter=1000000",
		"starter=0:9900",
		"starter=1000000:-1",
		"starter=1000000:9900,starter=2:2",
	}
	for _, raw := range cases {
		if _, err := ParsePacks(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFindPack(t *testing.T) {
	packs, err := ParsePacks("starter=1000000:9900,plus=5000000:39900")
	if err != nil {
		t.Fatalf("parse packs: %v", err)
	}

	if pack := FindPack(packs, " PLUS "); pack == nil || pack.ID != "plus" {
		t.Fatalf("expected plus pack, got %+v", pack)
	}
	if pack := FindPack(packs, "mega"); pack != nil {
		t.Fatalf("expected nil for unknown pack, got %+v", pack)
	}
}
