// Package domain models substation outage tracking and the pure engine that
// turns station records into consumer-weighted outage statistics.
//
// # Data Source
//
// Stations arrive in bulk as loosely typed rows, usually parsed from a CSV
// export with a header row, sometimes from JSON or YAML documents. Column
// names are case-sensitive and several aliases are accepted per field:
//
//	feeder    <- feeder | bay | feeder_name        (default "Unassigned")
//	name      <- name | station | substation       (row dropped when empty)
//	consumers <- consumers | consumer_count | count (row dropped when not numeric)
//	isOut     <- isOut | outage                    (default false)
//	id        <- id                                (generated when absent)
//	feederOff <- feederOff | feeder_off | feederOut (per-feeder override seed)
//
// Boolean columns use the legacy rule "lower-cased value starts with t", so
// "true", "T" and "TRUE" are true while "1" and "yes" are false. Existing
// exports depend on this rule and it must not be widened.
//
// # Effective Outage
//
// A station is effectively out when its own flag is set or when its feeder
// is forced OFF in the [FeederOverrides] map:
//
//	effOut = overrides[station.Feeder] || station.IsOut
//
// The override never writes through to the station. Turning a feeder back ON
// reveals every member station's own flag exactly as it was.
//
// # Percentages
//
// Percentages are rounded to one decimal place, half away from zero, and are
// 0 when the denominator is 0. See [RoundPct].
//
// # Paging
//
// Page sizes snap to the presets 25, 50, 100, 200 or all. A page outside the
// filtered result resets to page 1 rather than clamping to the last page;
// dashboards rely on this when a filter shrinks the result under the cursor.
package domain
