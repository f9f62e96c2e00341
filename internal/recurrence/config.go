package recurrence

// Horizons holds the two independent scan limits used by the engine.
type Horizons struct {
	// Upcoming is the number of days shown in "what's coming up" views.
	Upcoming int `yaml:"upcoming"`
	// IntervalMaterialization is the number of days of one-shot triggers
	// pre-scheduled for interval rules, since dispatchers have no native
	// "every N days" repeat.
	IntervalMaterialization int `yaml:"interval_materialization"`
}

// DefaultHorizons are the values used by the app.
var DefaultHorizons = Horizons{
	Upcoming:                30,
	IntervalMaterialization: 60,
}

// WithDefaults fills non-positive values from DefaultHorizons.
func (h Horizons) WithDefaults() Horizons {
	if h.Upcoming <= 0 {
		h.Upcoming = DefaultHorizons.Upcoming
	}
	if h.IntervalMaterialization <= 0 {
		h.IntervalMaterialization = DefaultHorizons.IntervalMaterialization
	}
	return h
}
