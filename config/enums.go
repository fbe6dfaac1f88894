package config

//go:generate go tool go-enum --marshal --names --values

// Specification of how stylesheet references are located in a document.
// ENUM(head, scoped)
type ScanMode int

// Specification of what replaces inlined stylesheet links.
// ENUM(none, original, override)
type FallbackMode int

// KeepsLink reports whether a non-blocking link is reinserted after inlining.
func (f FallbackMode) KeepsLink() bool {
	return f == FallbackModeOriginal || f == FallbackModeOverride
}

// Specification of what happens to a document when one of its stylesheets
// cannot be resolved.
// ENUM(skip, abort)
type FailurePolicy int
