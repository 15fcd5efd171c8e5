// Package address implements KNX individual and group addresses.
//
// Both are 16-bit values with distinct bit layouts and printed forms.
// Individual addresses use a fixed 4/4/8-bit area.line.device layout.
// Group addresses support three written forms — 5/3/8 three-level,
// 5/11 two-level, and free-form 0-65535 — but always occupy the same
// 16 bits on the wire.
//
// Values are immutable after construction; equality is raw 16-bit
// value equality.
package address
