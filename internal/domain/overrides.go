package domain

// FeederOverrides maps a feeder name to its "forced OFF" flag. Feeders without
// an entry are ON.
type FeederOverrides map[string]bool

// Off reports whether the feeder is forced OFF. Safe on a nil map.
func (o FeederOverrides) Off(feeder string) bool {
	return o[feeder]
}

// Toggle flips the feeder flag, treating a missing entry as ON, and returns
// the new value.
func (o FeederOverrides) Toggle(feeder string) bool {
	o[feeder] = !o[feeder]
	return o[feeder]
}

// Clone returns an independent copy of the map.
func (o FeederOverrides) Clone() FeederOverrides {
	out := make(FeederOverrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// EffectiveOut combines the station flag with its feeder override.
func EffectiveOut(s Station, overrides FeederOverrides) bool {
	return overrides.Off(s.Feeder) || s.IsOut
}
