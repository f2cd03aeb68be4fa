package rank

import "testing"

func TestFromCounts_ZeroIsUnranked(t *testing.T) {
	r := FromCounts(0, 0, 0)
	if r.Web != Unranked || r.Programming != Unranked || r.Crypto != Unranked {
		t.Errorf("expected all Unranked, got %+v", r)
	}
}

func TestFromCounts_NegativeTreatedAsZero(t *testing.T) {
	r := FromCounts(-3, -1, -100)
	if r.Web != Unranked || r.Programming != Unranked || r.Crypto != Unranked {
		t.Errorf("expected all Unranked for negative counts, got %+v", r)
	}
}

func TestFromCounts_WebBoundaries(t *testing.T) {
	// Boundaries are inclusive on the low end: a count exactly at a
	// threshold resolves to the higher tier.
	cases := []struct {
		count int
		want  string
	}{
		{0, Unranked},
		{4, Unranked},
		{5, "Hacker"},
		{9, "Hacker"},
		{10, "Pro Hacker"},
		{29, "Pro Hacker"},
		{30, "Elite Hacker"},
		{44, "Elite Hacker"},
		{45, "Guru"},
		{74, "Guru"},
		{75, "Vendetta"},
		{1000, "Vendetta"},
	}
	for _, tc := range cases {
		if got := FromCounts(tc.count, 0, 0).Web; got != tc.want {
			t.Errorf("web count %d: expected %q, got %q", tc.count, tc.want, got)
		}
	}
}

func TestFromCounts_ProgrammingBoundaries(t *testing.T) {
	cases := []struct {
		count int
		want  string
	}{
		{5, "Skiddie"},
		{10, "Scripter"},
		{15, "Pro Scripter"},
		{25, "Elite Scripter"},
		{35, "Senior Scripter"},
		{49, "Senior Scripter"},
		{50, "God Scripter"},
		{69, "God Scripter"},
		{70, "Lovelace"},
	}
	for _, tc := range cases {
		if got := FromCounts(0, tc.count, 0).Programming; got != tc.want {
			t.Errorf("programming count %d: expected %q, got %q", tc.count, tc.want, got)
		}
	}
}

func TestFromCounts_CryptoBoundaries(t *testing.T) {
	cases := []struct {
		count int
		want  string
	}{
		{5, "Noob Cryptographer"},
		{10, "Cryptographer"},
		{25, "Pro Cryptographer"},
		{35, "Elite Cryptographer"},
		{50, "Crazy Cryptographer"},
		{65, "God Cryptographer"},
	}
	for _, tc := range cases {
		if got := FromCounts(0, 0, tc.count).Crypto; got != tc.want {
			t.Errorf("crypto count %d: expected %q, got %q", tc.count, tc.want, got)
		}
	}
}

// TestFromCounts_Monotonic verifies that increasing a counter never lowers
// the tier on its axis.
func TestFromCounts_Monotonic(t *testing.T) {
	axes := []struct {
		name  string
		tiers []tier
	}{
		{"web", webTiers},
		{"programming", programmingTiers},
		{"crypto", cryptoTiers},
	}

	for _, axis := range axes {
		// Rank position of each label, Unranked lowest.
		position := map[string]int{Unranked: 0}
		for i, tr := range axis.tiers {
			position[tr.label] = len(axis.tiers) - i
		}

		prev := 0
		for count := 0; count <= 120; count++ {
			pos := position[lookup(axis.tiers, count)]
			if pos < prev {
				t.Fatalf("%s axis: tier dropped at count %d", axis.name, count)
			}
			prev = pos
		}
	}
}
