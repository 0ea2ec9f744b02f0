// backend/database/density_store.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gewnthar/density/backend/models"
)

// windowPageSize caps every window query. Callers page with offsets
// 0, 100, 200, ...
const windowPageSize = 100

// ErrUnknownParent marks a snapshot payload carrying a parent_id with no
// entry in the configured parent map. The whole batch is rejected before
// anything is written.
var ErrUnknownParent = errors.New("unknown parent id")

// DensityStore runs the fixed query set against density_data. The table is
// append-only: snapshots are inserted once per polling cycle and never
// updated or deleted, and the latest state is always derived from
// MAX(dump_time) rather than tracked separately.
type DensityStore struct {
	db      *sql.DB
	parents models.ParentMap
	logger  *zap.Logger
}

// NewDensityStore creates a density store over an injected connection pool.
// The parent map comes from configuration and must cover every parent_id
// the collector can supply.
func NewDensityStore(db *sql.DB, parents models.ParentMap, logger *zap.Logger) *DensityStore {
	return &DensityStore{db: db, parents: parents, logger: logger}
}

// Ping reports database reachability for health checks.
func (s *DensityStore) Ping() error {
	return s.db.Ping()
}

// LatestAll returns every row from the single most recent dump, ordered by
// group name. Groups that were not written at the latest cycle are absent;
// there is no forward-fill.
func (s *DensityStore) LatestAll() ([]models.DensityRow, error) {
	query := `
		SELECT dump_time, group_id, group_name, parent_id, parent_name, client_count
		FROM density_data
		WHERE dump_time = (SELECT MAX(dump_time) FROM density_data)
		ORDER BY group_name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest density data: %w", err)
	}
	defer rows.Close()

	return scanDensityRows(rows)
}

// LatestByGroup returns the most recent dump filtered to one group. Empty if
// the group had no row at the latest timestamp.
func (s *DensityStore) LatestByGroup(groupID int) ([]models.DensityRow, error) {
	query := `
		SELECT dump_time, group_id, group_name, parent_id, parent_name, client_count
		FROM density_data
		WHERE dump_time = (SELECT MAX(dump_time) FROM density_data)
		  AND group_id = ?`

	rows, err := s.db.Query(query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest data for group %d: %w", groupID, err)
	}
	defer rows.Close()

	return scanDensityRows(rows)
}

// LatestByParent returns the most recent dump for every group under one
// building.
func (s *DensityStore) LatestByParent(parentID int) ([]models.DensityRow, error) {
	query := `
		SELECT dump_time, group_id, group_name, parent_id, parent_name, client_count
		FROM density_data
		WHERE dump_time = (SELECT MAX(dump_time) FROM density_data)
		  AND parent_id = ?`

	rows, err := s.db.Query(query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest data for building %d: %w", parentID, err)
	}
	defer rows.Close()

	return scanDensityRows(rows)
}

// WindowByGroup returns one group's rows with dump_time in [start, end),
// most recent first, paginated at 100 rows per page with the given offset.
func (s *DensityStore) WindowByGroup(groupID int, start, end time.Time, offset int) ([]models.DensityRow, error) {
	query := `
		SELECT dump_time, group_id, group_name, parent_id, parent_name, client_count
		FROM density_data
		WHERE dump_time >= ? AND dump_time < ?
		  AND group_id = ?
		ORDER BY dump_time DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, start, end, groupID, windowPageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query window for group %d: %w", groupID, err)
	}
	defer rows.Close()

	return scanDensityRows(rows)
}

// WindowByParent is WindowByGroup across every group under one building.
func (s *DensityStore) WindowByParent(parentID int, start, end time.Time, offset int) ([]models.DensityRow, error) {
	query := `
		SELECT dump_time, group_id, group_name, parent_id, parent_name, client_count
		FROM density_data
		WHERE dump_time >= ? AND dump_time < ?
		  AND parent_id = ?
		ORDER BY dump_time DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, start, end, parentID, windowPageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query window for building %d: %w", parentID, err)
	}
	defer rows.Close()

	return scanDensityRows(rows)
}

// CapacityPerGroup returns, per group, the maximum client_count ever
// observed. Callers that want the 95th-percentile capacity estimate it
// elsewhere as mean + 2*stddev; the value returned here is the plain
// historical maximum, not that estimate.
func (s *DensityStore) CapacityPerGroup() ([]models.CapacityRow, error) {
	query := `
		SELECT CAST(MAX(client_count) AS SIGNED) AS capacity, group_id, group_name
		FROM density_data
		GROUP BY group_name, group_id
		ORDER BY group_name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query group capacities: %w", err)
	}
	defer rows.Close()

	var out []models.CapacityRow
	for rows.Next() {
		var r models.CapacityRow
		if err := rows.Scan(&r.Capacity, &r.GroupID, &r.GroupName); err != nil {
			return nil, fmt.Errorf("failed to scan capacity row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capacity rows: %w", err)
	}
	return out, nil
}

// BuildingDirectory returns the distinct group/building name-id tuples seen
// in the most recent dump, ordered by building then group name.
func (s *DensityStore) BuildingDirectory() ([]models.DirectoryRow, error) {
	query := `
		SELECT DISTINCT group_name, group_id, parent_name, parent_id
		FROM density_data
		WHERE dump_time = (SELECT MAX(dump_time) FROM density_data)
		ORDER BY parent_name, group_name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query building directory: %w", err)
	}
	defer rows.Close()

	var out []models.DirectoryRow
	for rows.Next() {
		var r models.DirectoryRow
		if err := rows.Scan(&r.GroupName, &r.GroupID, &r.ParentName, &r.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan directory row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating directory rows: %w", err)
	}
	return out, nil
}

// InsertSnapshot writes one polling cycle as a single multi-row insert. All
// rows share one dump time, truncated to the minute. A parent_id missing
// from the parent map, or a malformed id, rejects the whole batch before
// anything is written. Failures come back in the result rather than as a
// propagated error so the collector loop can log them and keep polling; a
// failed cycle is simply lost.
func (s *DensityStore) InsertSnapshot(payload models.SnapshotPayload) models.InsertResult {
	res := models.InsertResult{DumpTime: time.Now().Truncate(time.Minute)}

	if len(payload) == 0 {
		return res
	}

	placeholders := make([]string, 0, len(payload))
	args := make([]interface{}, 0, len(payload)*6)
	for key, obs := range payload {
		groupID, err := strconv.Atoi(key)
		if err != nil {
			res.Err = fmt.Errorf("bad group id %q in payload: %w", key, err)
			return res
		}
		parentName, ok := s.parents[obs.ParentID]
		if !ok {
			res.Err = fmt.Errorf("%w: %q (group %q)", ErrUnknownParent, obs.ParentID, key)
			return res
		}
		parentID, err := strconv.Atoi(obs.ParentID)
		if err != nil {
			res.Err = fmt.Errorf("bad parent id %q in payload: %w", obs.ParentID, err)
			return res
		}
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
		args = append(args, res.DumpTime, groupID, obs.Name, parentID, parentName, obs.ClientCount)
	}

	query := "INSERT INTO density_data (dump_time, group_id, group_name, parent_id, parent_name, client_count) VALUES " +
		strings.Join(placeholders, ", ")

	if _, err := s.db.Exec(query, args...); err != nil {
		s.logger.Error("snapshot insert failed",
			zap.Time("dump_time", res.DumpTime),
			zap.Int("groups", len(payload)),
			zap.Error(err))
		res.Err = fmt.Errorf("failed to insert snapshot batch: %w", err)
		return res
	}

	res.Inserted = len(payload)
	s.logger.Debug("snapshot batch inserted",
		zap.Time("dump_time", res.DumpTime),
		zap.Int("rows", res.Inserted))
	return res
}

func scanDensityRows(rows *sql.Rows) ([]models.DensityRow, error) {
	var out []models.DensityRow
	for rows.Next() {
		var r models.DensityRow
		if err := rows.Scan(&r.DumpTime, &r.GroupID, &r.GroupName, &r.ParentID, &r.ParentName, &r.ClientCount); err != nil {
			return nil, fmt.Errorf("failed to scan density row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating density rows: %w", err)
	}
	return out, nil
}
