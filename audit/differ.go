package audit

import "github.com/satishbabariya/audit-go/value"

// Redacted is the sentinel shape a redacted field's value is replaced
// with: {redacted:true, hadValue, isDifferent?}. Diff sets isDifferent
// when the field is present on both sides of an update (always true, as
// an unchanged redacted field is left out of changes) and omits it
// (absent from the map) when the field exists on only one side;
// ToEntries omits it in the sentinels it puts into Before and After.
func Redacted(hadValue bool, isDifferent *bool) value.Value {
	m := map[string]value.Value{
		"redacted": value.Bool(true),
		"hadValue": value.Bool(hadValue),
	}
	if isDifferent != nil {
		m["isDifferent"] = value.Bool(*isDifferent)
	}
	return value.Map(m)
}

// Diff is the pure Differ: a flat field→value.Value map of everything
// that changed between before and after, with redacted fields replaced
// by the Redacted() sentinel instead of either raw value (a redacted
// field whose value did not change is left out like any other). changes is
// only ever non-null when both before and after are present - a create
// or delete has nothing on one side to diff against, so it always
// yields value.Null() regardless of field content.
//
// Diff never touches the database and never returns an error on its own;
// the phase-level error handling around it exists only for the rare
// panic-worthy case of a malformed record, which the caller is
// responsible for recovering from if it chooses to.
func Diff(before, after RecordOrAbsent, cfg Config) value.Value {
	if !before.Present || !after.Present {
		return value.Null()
	}

	beforeMap := asMap(before)
	afterMap := asMap(after)

	changes := map[string]value.Value{}
	for field := range unionFields(beforeMap, afterMap) {
		if isExcluded(field, cfg) {
			continue
		}
		bv, bok := beforeMap[field]
		av, aok := afterMap[field]
		if !bok {
			bv = value.Null()
		}
		if !aok {
			av = value.Null()
		}

		if isRedacted(field, bv, cfg) {
			hadValue := bok && !bv.IsNull()
			if bok && aok {
				if diff := !value.Equal(bv, av); diff {
					changes[field] = Redacted(hadValue, &diff)
				}
			} else {
				changes[field] = Redacted(hadValue, nil)
			}
			continue
		}

		if !value.Equal(bv, av) {
			changes[field] = av
		}
	}
	return value.Map(changes)
}

func asMap(r RecordOrAbsent) map[string]value.Value {
	if !r.Present {
		return nil
	}
	m, _ := r.Value.AsMap()
	return m
}

func unionFields(a, b map[string]value.Value) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func isExcluded(field string, cfg Config) bool {
	if _, ok := cfg.GlobalExcludeFields[field]; ok {
		return true
	}
	return false
}

func isRedacted(field string, v value.Value, cfg Config) bool {
	if _, ok := cfg.RedactFields[field]; ok {
		return true
	}
	if cfg.RedactTransform != nil {
		return cfg.RedactTransform(field, v)
	}
	return false
}
