package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewise/backend/config"
	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/artifact"
	"github.com/pricewise/backend/internal/infrastructure/logging"
	"github.com/pricewise/backend/internal/usecase"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		input   string
		want    []domain.Category
		wantErr bool
	}{
		{input: "mobile", want: []domain.Category{domain.CategoryMobile}},
		{input: " Laptop , furniture ,", want: []domain.Category{domain.CategoryLaptop, domain.CategoryFurniture}},
		{input: "mobile,boat", wantErr: true},
		{input: " , ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseCategories(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSource(t *testing.T) {
	cfg := &config.Config{Training: config.TrainingConfig{Source: "csv", CSVPath: "listings.csv"}}

	src, closeFn, err := newSource(cfg, options{}, logging.NewNoOpLogger())
	require.NoError(t, err)
	closeFn()
	assert.NotNil(t, src)

	_, _, err = newSource(cfg, options{source: "postgres"}, logging.NewNoOpLogger())
	assert.ErrorContains(t, err, "DSN")

	_, _, err = newSource(cfg, options{source: "ftp"}, logging.NewNoOpLogger())
	assert.Error(t, err)
}

func TestPreprocessorConfig(t *testing.T) {
	cfg := &config.Config{Training: config.TrainingConfig{
		ZScoreThreshold: 2.5,
		PriceBounds:     map[string]config.PriceBounds{"mobile": {Min: 1000, Max: 90000}},
	}}

	got, err := preprocessorConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.ZScoreThreshold)
	assert.Equal(t, usecase.PriceBounds{Min: 1000, Max: 90000}, got.Bounds[domain.CategoryMobile])
	assert.Equal(t, usecase.DefaultPriceBounds()[domain.CategoryLaptop], got.Bounds[domain.CategoryLaptop])

	cfg.Training.PriceBounds["boat"] = config.PriceBounds{Min: 1, Max: 2}
	_, err = preprocessorConfig(cfg)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

// writeMobileCSV writes n synthetic phone listings whose price follows RAM and storage
func writeMobileCSV(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	brands := []string{"Apple", "Samsung", "Xiaomi", "Oppo"}
	rams := []int{3, 4, 6, 8, 12}
	storages := []int{128, 256, 512, 1024}

	var b strings.Builder
	b.WriteString("category,title,description,price,brand,ram,storage,condition\n")
	for i := 0; i < n; i++ {
		brand := brands[rng.Intn(len(brands))]
		ram := rams[rng.Intn(len(rams))]
		storage := storages[rng.Intn(len(storages))]
		price := 8000 + ram*3000 + storage*60 + rng.Intn(2000)
		if brand == "Apple" {
			price += 25000
		}
		fmt.Fprintf(&b, "mobile,%s phone %d,%dGB RAM %dGB,%d,%s,%d,%d,used\n", brand, i, ram, storage, price, brand, ram, storage)
	}

	path := filepath.Join(t.TempDir(), "listings.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func TestRun_TrainsAndPersists(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Artifacts: config.ArtifactsConfig{Dir: filepath.Join(dir, "models"), KeepVersions: 2},
		Training: config.TrainingConfig{
			MinRows:         50,
			TestFraction:    0.2,
			Seed:            42,
			TargetTransform: "log1p",
			Source:          "csv",
			CSVPath:         writeMobileCSV(t, 120),
		},
	}
	metricsFile := filepath.Join(dir, "training.prom")

	err := run(context.Background(), cfg, options{categories: "mobile", metricsFile: metricsFile}, logging.NewTestLogger(t))
	require.NoError(t, err)

	store, err := artifact.NewStore(cfg.Artifacts.Dir, 0, nil)
	require.NoError(t, err)
	meta, err := store.Metadata(context.Background(), domain.CategoryMobile)
	require.NoError(t, err)
	assert.Greater(t, meta.RowCount, 100)
	assert.LessOrEqual(t, meta.RowCount, 120)
	assert.Equal(t, meta.RowCount, meta.TrainRows+meta.TestRows)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pricewise_training_runs_total{category="mobile",outcome="success"} 1`)
}

func TestRun_ReportsFailedCategories(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Artifacts: config.ArtifactsConfig{Dir: filepath.Join(dir, "models")},
		Training: config.TrainingConfig{
			TestFraction:    0.2,
			TargetTransform: "log1p",
			Source:          "csv",
			CSVPath:         writeMobileCSV(t, 10),
		},
	}

	err := run(context.Background(), cfg, options{categories: "mobile,laptop", dryRun: true}, logging.NewTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mobile")
	assert.Contains(t, err.Error(), "laptop")
}
