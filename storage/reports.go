package storage

import (
	"encoding/json"
	"fmt"

	"github.com/stakeops/rebalancer/core/types"
	"github.com/stakeops/rebalancer/utils"
)

// reportKeyPrefix namespaces run reports in the store.
var reportKeyPrefix = []byte("report/")

// ReportStore persists finished run reports, keyed by epoch and start
// time so iteration returns them in chronological order. It is an
// observability record only; no run reads it back to make decisions.
type ReportStore struct {
	db DB
}

// NewReportStore creates a report store on top of a database.
func NewReportStore(db DB) *ReportStore {
	return &ReportStore{db: db}
}

// SaveReport stores a finished run report.
func (rs *ReportStore) SaveReport(report *types.RunReport) error {
	value, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	if err := rs.db.Put(reportKey(report), value); err != nil {
		return fmt.Errorf("failed to store run report: %w", err)
	}

	return nil
}

// ListReports returns up to limit of the most recent reports, newest
// first. A limit of zero means no bound.
func (rs *ReportStore) ListReports(limit int) ([]*types.RunReport, error) {
	iter := rs.db.NewIterator(reportKeyPrefix, prefixEnd(reportKeyPrefix))
	defer iter.Release()

	var reports []*types.RunReport
	for iter.Next() {
		var report types.RunReport
		if err := json.Unmarshal(iter.Value(), &report); err != nil {
			return nil, fmt.Errorf("failed to decode run report %x: %w", iter.Key(), err)
		}
		reports = append(reports, &report)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	// Keys sort ascending; reverse for newest-first.
	for i, j := 0, len(reports)-1; i < j; i, j = i+1, j-1 {
		reports[i], reports[j] = reports[j], reports[i]
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}

	return reports, nil
}

// Close closes the underlying database.
func (rs *ReportStore) Close() error {
	return rs.db.Close()
}

// reportKey builds the store key: prefix, big-endian epoch, big-endian
// start timestamp. Big-endian keeps lexicographic order equal to
// numeric order.
func reportKey(report *types.RunReport) []byte {
	key := make([]byte, 0, len(reportKeyPrefix)+16)
	key = append(key, reportKeyPrefix...)
	key = utils.AppendUint64(key, report.Epoch)
	key = utils.AppendUint64(key, uint64(report.StartedAt.UnixNano()))
	return key
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
