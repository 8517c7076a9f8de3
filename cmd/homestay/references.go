package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"homestay/internal/app/commands"
	referenceapp "homestay/internal/app/handlers/references"
	domainreferences "homestay/internal/domain/references"
)

// loadReferences upserts the reference catalog from path, or from the
// built-in defaults when no fixtures file exists.
func loadReferences(ctx context.Context, bus commands.Bus, path string, logger *slog.Logger) error {
	if path == "" {
		path = defaultReferencesPath()
	}
	catalog := domainreferences.Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("references fixtures not found, using defaults", "path", path)
	case err != nil:
		return fmt.Errorf("read references: %w", err)
	default:
		catalog = domainreferences.Catalog{}
		if err := json.Unmarshal(data, &catalog); err != nil {
			return fmt.Errorf("decode references %s: %w", path, err)
		}
	}

	n, err := commands.Dispatch[referenceapp.LoadReferencesCommand, int](ctx, bus, referenceapp.LoadReferencesCommand{Catalog: catalog})
	if err != nil {
		return fmt.Errorf("load references: %w", err)
	}
	logger.Info("references loaded", "entries", n, "path", path)
	return nil
}

func defaultReferencesPath() string {
	candidates := []string{
		filepath.Join("data", "references.json"),
		filepath.Join("..", "..", "data", "references.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
