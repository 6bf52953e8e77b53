// Package draft defines the per-stage draft record, the contracts for its
// local persistence and remote reconciliation, and the reversible codecs
// that bridge in-memory values to their stored and wire representations.
// Array- and object-valued fields (multi-select, image list, geo point)
// round-trip exactly through encode/decode; corrupt encodings decode to
// empty collections so a partially-written draft remains usable.
package draft
