package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"kienquoc.game/internal/persistence/r2s3"
)

// openArchiveMirror returns nil when mirroring is off.
func openArchiveMirror(logger *log.Logger) (*r2s3.Mirror, error) {
	if !envBool("KQ_ARCHIVE_MIRROR", false) {
		return nil, nil
	}
	endpoint := strings.TrimSpace(os.Getenv("KQ_R2_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("KQ_R2_BUCKET"))
	accessKeyID := strings.TrimSpace(os.Getenv("KQ_R2_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("KQ_R2_SECRET_ACCESS_KEY"))
	if endpoint == "" || bucket == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("KQ_ARCHIVE_MIRROR=true but KQ_R2_ENDPOINT/KQ_R2_BUCKET/KQ_R2_ACCESS_KEY_ID/KQ_R2_SECRET_ACCESS_KEY are not fully set")
	}
	client, err := r2s3.New(endpoint, bucket, accessKeyID, secretAccessKey)
	if err != nil {
		return nil, err
	}
	m := r2s3.NewMirror(client, envString("KQ_R2_PREFIX", ""), envInt("KQ_R2_UPLOAD_WORKERS", 2), envInt("KQ_R2_QUEUE", 64), logger)
	logger.Printf("archive mirror enabled bucket=%s", bucket)
	return m, nil
}
