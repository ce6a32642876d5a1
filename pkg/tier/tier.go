// Package tier is the pure, in-memory TierCatalog (spec §4.2). Tier names
// are closed: adding one is a code change and a release, never runtime
// configuration.
package tier

// Tier names the closed set of subscription tiers.
type Tier string

// Unlimited marks a TierLimits field with no cap.
const Unlimited = -1

const (
	Free       Tier = "free"
	Starter    Tier = "starter"
	Premium    Tier = "premium"
	Enterprise Tier = "enterprise"
)

// Limits is the (per_hour, per_day, per_month, storage_mb, features) tuple
// for one tier.
type Limits struct {
	PerHour    int
	PerDay     int
	PerMonth   int
	StorageMB  int
	Features   []string
	Retention  string // "1y", "3y", or "indefinite" — spec §3 Lifecycle
}

// catalog is the closed, compile-time table of tier limits.
var catalog = map[Tier]Limits{
	Free: {
		PerHour: 5, PerDay: 20, PerMonth: 200,
		StorageMB: 10,
		Features:  []string{"journal", "preferences"},
		Retention: "1y",
	},
	Starter: {
		PerHour: 60, PerDay: 500, PerMonth: 5000,
		StorageMB: 100,
		Features:  []string{"journal", "preferences", "records"},
		Retention: "3y",
	},
	Premium: {
		PerHour: 600, PerDay: 5000, PerMonth: 50000,
		StorageMB: 1000,
		Features:  []string{"journal", "preferences", "records", "stats"},
		Retention: "3y",
	},
	Enterprise: {
		PerHour: Unlimited, PerDay: Unlimited, PerMonth: Unlimited,
		StorageMB: Unlimited,
		Features:  []string{"journal", "preferences", "records", "stats", "hard-delete"},
		Retention: "indefinite",
	},
}

// Catalog enumerates tiers and their limits.
type Catalog struct{}

// New constructs a Catalog. It holds no mutable state.
func New() *Catalog { return &Catalog{} }

// Limits returns the TierLimits for a tier. Unknown tiers return the Free
// tier's limits, the most conservative choice available.
func (*Catalog) Limits(t Tier) Limits {
	if l, ok := catalog[t]; ok {
		return l
	}
	return catalog[Free]
}

// HasFeature reports whether a tier's feature set includes name.
func (c *Catalog) HasFeature(t Tier, name string) bool {
	for _, f := range c.Limits(t).Features {
		if f == name {
			return true
		}
	}
	return false
}

// Valid reports whether t names a known tier.
func Valid(t Tier) bool {
	_, ok := catalog[t]
	return ok
}
