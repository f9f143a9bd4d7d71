package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&Project{},
		&Company{},
		&SafetyCategory{},
		&User{},
		&Observation{},
		&ObservationCategory{},
		&ActionPlan{},
		&CacheEntry{},
	}
}
