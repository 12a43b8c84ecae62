package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/pavelanni/assessor/internal/catalog"
	"github.com/pavelanni/assessor/internal/store"
)

// loadCatalogs imports each file whose content changed since it was last
// imported, or every file when force is set.
func loadCatalogs(ctx context.Context, db *store.Store, paths []string, force bool) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash && !force {
			slog.Info("catalog file unchanged, skipping", "path", path)
			continue
		}

		c, err := catalog.ParseBytes(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		stats, err := db.ImportCatalog(ctx, c)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported catalog", "path", path, "quizzes", stats.Quizzes, "questions", stats.Questions)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
