package main

// storecheck audits the metadata index against the content store: every
// message and summary record must have a content blob. Missing blobs are
// violations and fail the run. Stray blobs, content with no index record,
// are the expected debris of crashed appends and only reported on request.

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/parleyhq/parley-backend/internal/config"
	"github.com/parleyhq/parley-backend/internal/database"
)

type ref struct {
	sessionID string
	contentID string
}

func main() {
	showStrays := flag.Bool("strays", false, "Also list blobs with no index record")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Refuse to audit a half-migrated schema.
	version, dirty, err := database.SchemaVersion(cfg.Database)
	if err != nil {
		log.Fatal("Failed to read schema version:", err)
	}
	if dirty {
		log.Fatalf("Schema version %d is dirty, repair the migration before auditing", version)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	ctx := context.Background()
	pool, err := database.NewContentPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to open content store pool:", err)
	}
	defer pool.Close()

	// Every blob address in the content store
	blobs := make(map[ref]bool)
	rows, err := pool.Query(ctx, `SELECT session_id, content_id FROM content_records`)
	if err != nil {
		log.Fatal("Failed to scan content store:", err)
	}
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.sessionID, &r.contentID); err != nil {
			log.Fatal("Failed to read content row:", err)
		}
		blobs[r] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Fatal("Failed to scan content store:", err)
	}

	referenced := make(map[ref]bool)
	missing := 0

	check := func(kind, query string) {
		var recs []struct {
			SessionID string `db:"session_id"`
			RecordID  string `db:"id"`
			ContentID string `db:"content_id"`
		}
		if err := db.SelectContext(ctx, &recs, query); err != nil {
			log.Fatalf("Failed to scan %s index: %v", kind, err)
		}
		for _, rec := range recs {
			r := ref{rec.SessionID, rec.ContentID}
			referenced[r] = true
			if !blobs[r] {
				missing++
				fmt.Printf("MISSING  %s %s in session %s references content %s\n",
					kind, rec.RecordID, rec.SessionID, rec.ContentID)
			}
		}
	}

	check("message", `SELECT session_id, id, content_id FROM messages`)
	check("summary", `SELECT session_id, id, content_id FROM summaries`)

	strays := 0
	for r := range blobs {
		if !referenced[r] {
			strays++
			if *showStrays {
				fmt.Printf("STRAY    content %s in session %s has no index record\n",
					r.contentID, r.sessionID)
			}
		}
	}

	fmt.Printf("\n%d blobs checked: %d missing, %d stray\n", len(blobs), missing, strays)
	if missing > 0 {
		os.Exit(1)
	}
}
