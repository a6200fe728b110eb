package model

// Package model defines domain data structures shared by the core: download
// requests and outcomes, persisted link records, batch entities, status enums
// and the error taxonomy. Statuses are typed strings with explicit transitions.
