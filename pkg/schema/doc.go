// Package schema declares the field-inspection wizard's stage and field
// definitions and the registry that holds them. A stage's ID doubles as the
// backend table name, and a field's key doubles as its column name, so both
// are restricted to identifier-safe characters. Definitions can be declared
// in Go (see pkg/stages for the built-in wizard) or loaded from YAML.
package schema
