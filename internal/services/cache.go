package services

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"churn-dashboard/internal/models"
)

const cacheVersion = "v1"

func (c *Churn) getCacheFilename(csvPath string) string {
	name := fmt.Sprintf("%s_seed%d_%s.gob.sz", strings.ReplaceAll(filepath.Clean(csvPath), string(filepath.Separator), "_"), c.seed, cacheVersion)
	return filepath.Join(c.cacheDir, name)
}

func (c *Churn) saveToCache(csvPath string, summary *models.Summary) error {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.getCacheFilename(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	w := snappy.NewBufferedWriter(file)
	if err := gob.NewEncoder(w).Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return w.Close()
}

func (c *Churn) loadFromCache(csvPath string) (*models.Summary, error) {
	file, err := os.Open(c.getCacheFilename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var summary models.Summary
	if err := gob.NewDecoder(snappy.NewReader(file)).Decode(&summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}
