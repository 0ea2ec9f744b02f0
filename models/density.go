// backend/models/density.go
package models

import "time"

// ParentMap maps a building id (as the upstream feed emits it, a string) to
// the building's display name. It is loaded from configuration at startup
// and injected into the store; an id missing from the map fails the whole
// insert batch before anything is written.
type ParentMap map[string]string

// DensityRow is one occupancy observation for a single group at a single
// dump time. Rows are append-only; nothing in the store updates or deletes
// them, and "latest" state is always derived from MAX(dump_time).
type DensityRow struct {
	DumpTime    time.Time `db:"dump_time" json:"dump_time" csv:"dump_time"`
	GroupID     int       `db:"group_id" json:"group_id" csv:"group_id"`
	GroupName   string    `db:"group_name" json:"group_name" csv:"group_name"`
	ParentID    int       `db:"parent_id" json:"parent_id" csv:"parent_id"`
	ParentName  string    `db:"parent_name" json:"parent_name" csv:"parent_name"`
	ClientCount int       `db:"client_count" json:"client_count" csv:"client_count"`
}

// CapacityRow is one group's historical-maximum occupancy.
type CapacityRow struct {
	Capacity  int    `db:"capacity" json:"capacity" csv:"capacity"`
	GroupID   int    `db:"group_id" json:"group_id" csv:"group_id"`
	GroupName string `db:"group_name" json:"group_name" csv:"group_name"`
}

// DirectoryRow is one entry of the navigable building/group hierarchy, taken
// from the most recent snapshot only.
type DirectoryRow struct {
	GroupName  string `db:"group_name" json:"group_name"`
	GroupID    int    `db:"group_id" json:"group_id"`
	ParentName string `db:"parent_name" json:"parent_name"`
	ParentID   int    `db:"parent_id" json:"parent_id"`
}

// GroupObservation is one group's entry in a collector payload.
type GroupObservation struct {
	Name        string `json:"name"`
	ParentID    string `json:"parent_id"`
	ClientCount int    `json:"client_count"`
}

// SnapshotPayload is one polling cycle's worth of observations, keyed by
// group id string as the upstream feed emits it.
type SnapshotPayload map[string]GroupObservation

// InsertResult reports the outcome of one snapshot insert. Err carries the
// failure detail for logging; the collector loop checks OK and keeps
// polling either way.
type InsertResult struct {
	DumpTime time.Time
	Inserted int
	Err      error
}

// OK reports whether the whole batch was written.
func (r InsertResult) OK() bool { return r.Err == nil }
