package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pevans/newsreap"
)

// Snapshot is the batch artifact for one run. Succeeded holds the fully
// ingested records; Exhausted holds the candidate entries abandoned after
// their navigation attempts ran out, identified by headline, link, and slug.
type Snapshot struct {
	Succeeded []newsreap.ArticleRecord  `json:"succeeded"`
	Exhausted []newsreap.CandidateEntry `json:"exhausted"`
}

// WriteSnapshot serializes the run's batch to a JSON file at the given
// path, overwriting any previous snapshot. The snapshot is an audit trail
// independent of the database, so it is written even when the batch is
// empty (0600: owner-only read/write).
func WriteSnapshot(path string, snap Snapshot) error {
	if snap.Succeeded == nil {
		snap.Succeeded = []newsreap.ArticleRecord{}
	}
	if snap.Exhausted == nil {
		snap.Exhausted = []newsreap.CandidateEntry{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot loads a previously written snapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return snap, nil
}
