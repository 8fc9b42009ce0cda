// Package expression evaluates step conditions.
//
// A step may declare a condition that decides whether it is part of the
// plan for a given query. Conditions are expr-lang boolean expressions over
// the extracted entities:
//
//	has(entities, "status")
//	entities.status == "on_hold"
//	status in ["pending", "on_hold"] && case_id != ""
//
// Entities are reachable both under "entities" and as top-level names.
// Missing entities evaluate to nil rather than failing.
//
// Note: "contains" is a string operator in expr, so use "in" or has() for
// membership checks.
package expression
