package resources

import "testing"

func TestLookup_AlwaysIncludesNationalHotlines(t *testing.T) {
	d := NewDirectory()
	for _, county := range []string{"", "Nairobi", "Wajir"} {
		got := d.Lookup(county, "")
		if len(got) < len(national) {
			t.Fatalf("county %q: got %d contacts, want at least %d", county, len(got), len(national))
		}
		if got[0].Phone != "1195" {
			t.Fatalf("GBV helpline must lead the list, got %+v", got[0])
		}
	}
}

func TestLookup_CountyEntriesFollowNational(t *testing.T) {
	d := NewDirectory()
	got := d.Lookup("Nairobi", "")
	var sawCounty bool
	for _, c := range got {
		if c.County == "Nairobi" {
			sawCounty = true
		}
	}
	if !sawCounty {
		t.Fatalf("expected Nairobi entries in %v", got)
	}
}

func TestLookup_CategoryFiltersBothTiers(t *testing.T) {
	d := NewDirectory()
	got := d.Lookup("Nairobi", CategoryLegal)
	if len(got) == 0 {
		t.Fatalf("expected legal contacts")
	}
	for _, c := range got {
		var ok bool
		for _, cat := range c.Categories {
			if cat == CategoryLegal {
				ok = true
			}
		}
		if !ok {
			t.Fatalf("non-legal contact leaked through filter: %+v", c)
		}
	}
}

func TestLookup_UnknownCountyStillAnswers(t *testing.T) {
	d := NewDirectory()
	if got := d.Lookup("Atlantis", CategoryEmergency); len(got) == 0 {
		t.Fatalf("unknown county must still return national contacts")
	}
}
