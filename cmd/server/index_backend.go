package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"kienquoc.game/internal/persistence/indexdb"
)

// openIndex picks the read-model backend from KQ_INDEX_BACKEND. A nil index
// means indexing is off; the JSONL logs are still written.
func openIndex(dataDir, serverID string, disableDB bool, logger *log.Logger) (indexdb.Index, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(envString("KQ_INDEX_BACKEND", "sqlite"))
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "games.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "d1":
		endpoint := envString("KQ_INDEX_D1_INGEST_URL", "")
		if endpoint == "" {
			return nil, fmt.Errorf("KQ_INDEX_BACKEND=d1 but KQ_INDEX_D1_INGEST_URL is empty")
		}
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         envString("KQ_INDEX_D1_TOKEN", ""),
			ServerID:      serverID,
			BatchSize:     envInt("KQ_INDEX_D1_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("KQ_INDEX_D1_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "both":
		sq, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "games.sqlite"))
		if err != nil {
			return nil, err
		}
		endpoint := envString("KQ_INDEX_D1_INGEST_URL", "")
		d1, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint: endpoint,
			Token:    envString("KQ_INDEX_D1_TOKEN", ""),
			ServerID: serverID,
			Logger:   logger,
		})
		if err != nil {
			_ = sq.Close()
			return nil, err
		}
		return indexdb.Multi{sq, d1}, nil
	default:
		return nil, fmt.Errorf("unsupported KQ_INDEX_BACKEND: %s", backend)
	}
}
