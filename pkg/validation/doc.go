// Package validation implements the pure per-field formatter/validator and
// the stage-level aggregate that gates forward navigation. Formatting and
// validation never perform I/O; requiredness is decided per field from its
// static flag, its predicate rule, or a multi-select sibling's "Other"
// sentinel naming it as companion.
package validation
