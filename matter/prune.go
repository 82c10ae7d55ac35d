package matter

// subsumptionChains orders device type markers from least to most capable.
// A marker is redundant whenever a later marker from the same chain is also
// present.
var subsumptionChains = [][]DeviceTypeID{
	{OnOffLightID, DimmableLightID, ColorTemperatureLightID, ExtendedColorLightID},
	{OnOffLightSwitchID, DimmerSwitchID, ColorDimmerSwitchID},
	{OnOffPlugInUnitID, DimmablePlugInUnitID},
}

// Subsumes reports whether marker a is strictly more capable than marker b
// within the same chain.
func Subsumes(a DeviceTypeID, b DeviceTypeID) bool {
	for _, chain := range subsumptionChains {
		aAt, bAt := -1, -1

		for i, id := range chain {
			if id == a {
				aAt = i
			}
			if id == b {
				bAt = i
			}
		}

		if aAt != -1 && bAt != -1 {
			return aAt > bAt
		}
	}

	return false
}

// PruneDeviceTypes removes every marker that is subsumed by a strictly more
// capable marker in the same set, preserving the order of the survivors.
// Idempotent.
func PruneDeviceTypes(types []DeviceType) []DeviceType {
	var pruned []DeviceType

	for _, candidate := range types {
		subsumed := false

		for _, other := range types {
			if Subsumes(other.Code, candidate.Code) {
				subsumed = true
				break
			}
		}

		if !subsumed {
			pruned = append(pruned, candidate)
		}
	}

	return pruned
}
