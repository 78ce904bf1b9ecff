// Command bootstrap-graph rebuilds the lineage graph's creation edges
// from the created_agents table: useful after restoring an older backup,
// or once the lineage_edges table has been dropped and needs refilling
// from history still on disk.
package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	_ "modernc.org/sqlite"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/persistence"
)

// #region main

func main() {
	dbPath := envOr("ENGINE_DB", "negotiation_engine.db")

	fmt.Println("=== Lineage Graph Bootstrap ===")
	fmt.Printf("  DB: %s\n", dbPath)

	store, err := persistence.Open(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	lineage, err := memory.NewLineageGraph(store.DB())
	if err != nil {
		log.Fatalf("init lineage graph: %v", err)
	}

	created, err := fetchApprovedCreations(store.DB())
	if err != nil {
		log.Fatalf("fetch created agents: %v", err)
	}
	fmt.Printf("Approved creations found: %d\n", len(created))

	edgeCount := 0
	for _, c := range created {
		if err := lineage.RecordDescent(c.generationID, c.provisioning.AgentID, "creation"); err != nil {
			log.Printf("record descent for %s: %v", c.provisioning.AgentID, err)
			continue
		}
		edgeCount++
	}

	fmt.Printf("\n=== Bootstrap Complete ===\n")
	fmt.Printf("  Creation edges written: %d\n", edgeCount)
}

// #endregion main

// #region extract

type createdAgentRow struct {
	generationID string
	provisioning domain.NewAgentProvisioning
}

func fetchApprovedCreations(db *sql.DB) ([]createdAgentRow, error) {
	rows, err := db.Query(
		`SELECT generation_id, provisioning_json FROM created_agents WHERE approved = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("query created_agents: %w", err)
	}
	defer rows.Close()

	var out []createdAgentRow
	for rows.Next() {
		var generationID, provJSON string
		if err := rows.Scan(&generationID, &provJSON); err != nil {
			return nil, fmt.Errorf("scan created_agents row: %w", err)
		}
		var provisioning domain.NewAgentProvisioning
		if err := json.Unmarshal([]byte(provJSON), &provisioning); err != nil {
			return nil, fmt.Errorf("decode provisioning: %w", err)
		}
		out = append(out, createdAgentRow{generationID: generationID, provisioning: provisioning})
	}
	return out, rows.Err()
}

// #endregion extract

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
