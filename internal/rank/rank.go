// Package rank derives skill-tier labels from challenge-completion counters.
// Ranks are never stored -- they are recomputed from the profile counters on
// every read, so a profile update can never leave a stale rank behind.
package rank

// Unranked is the tier below every threshold on every axis.
const Unranked = "Unranked"

// Ranks holds the derived tier label for each challenge axis.
type Ranks struct {
	Web         string `json:"web"`
	Programming string `json:"programming"`
	Crypto      string `json:"crypto"`
}

// tier is a single threshold table entry: the minimum count (inclusive)
// required to hold the label.
type tier struct {
	min   int
	label string
}

// Threshold tables are ordered highest-first and evaluated top-down; the
// first satisfied entry wins, so a count exactly at a boundary takes the
// higher tier.
var (
	webTiers = []tier{
		{75, "Vendetta"},
		{45, "Guru"},
		{30, "Elite Hacker"},
		{10, "Pro Hacker"},
		{5, "Hacker"},
	}

	programmingTiers = []tier{
		{70, "Lovelace"},
		{50, "God Scripter"},
		{35, "Senior Scripter"},
		{25, "Elite Scripter"},
		{15, "Pro Scripter"},
		{10, "Scripter"},
		{5, "Skiddie"},
	}

	cryptoTiers = []tier{
		{65, "God Cryptographer"},
		{50, "Crazy Cryptographer"},
		{35, "Elite Cryptographer"},
		{25, "Pro Cryptographer"},
		{10, "Cryptographer"},
		{5, "Noob Cryptographer"},
	}
)

// FromCounts maps the three completion counters to their tier labels.
// Pure and total: negative counts are treated as zero for the computed
// output, but the stored counters are never touched here.
func FromCounts(web, programming, crypto int) Ranks {
	return Ranks{
		Web:         lookup(webTiers, web),
		Programming: lookup(programmingTiers, programming),
		Crypto:      lookup(cryptoTiers, crypto),
	}
}

// lookup resolves a count against an ordered threshold table.
func lookup(tiers []tier, count int) string {
	if count < 0 {
		count = 0
	}
	for _, t := range tiers {
		if count >= t.min {
			return t.label
		}
	}
	return Unranked
}
