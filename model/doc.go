// Package model aggregates the value types the engine is built from:
// index spaces and domains (`region`), physical memories and affinity
// paths (`mem`), layout constraints (`layout`) and the scheduler-facing
// task contract (`task`). These packages carry no behaviour beyond
// their own invariants; runtime services layer protocol on top.
package model
