package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

// mobileListings generates a deterministic batch whose price depends on brand
// tier, memory, storage and condition.
func mobileListings(n int, seed int64) []domain.RawListingRecord {
	rng := rand.New(rand.NewSource(seed))
	brands := []struct {
		name string
		tier float64
	}{{"Apple", 5}, {"Samsung", 4}, {"Xiaomi", 3}, {"Realme", 2}, {"Nokia", 2}, {"itel", 1}}
	rams := []float64{2, 3, 4, 6, 8, 12}
	storages := []float64{128, 256, 512, 1024}
	conditions := []struct {
		name string
		mult float64
	}{{"new", 1}, {"like new", 0.9}, {"good", 0.75}, {"used", 0.65}, {"fair", 0.55}}

	out := make([]domain.RawListingRecord, n)
	for i := range out {
		b := brands[rng.Intn(len(brands))]
		ram := rams[rng.Intn(len(rams))]
		storage := storages[rng.Intn(len(storages))]
		cond := conditions[rng.Intn(len(conditions))]
		battery := 3000 + float64(rng.Intn(20))*100

		price := (4000 + b.tier*9000 + ram*1500 + storage*40) * cond.mult
		price *= 0.95 + rng.Float64()*0.1

		attrs := map[string]string{
			"brand":     b.name,
			"ram":       strconv.FormatFloat(ram, 'f', -1, 64),
			"storage":   strconv.FormatFloat(storage, 'f', -1, 64),
			"condition": cond.name,
		}
		if i%3 != 0 {
			attrs["battery"] = strconv.FormatFloat(battery, 'f', -1, 64)
		}
		desc := ""
		if i%4 == 0 {
			desc = "PTA approved, 5G, with box"
		}
		out[i] = domain.RawListingRecord{
			Category:    "mobile",
			Title:       fmt.Sprintf("%s phone %gGB", b.name, storage),
			Description: desc,
			Attributes:  attrs,
			Price:       price,
			Source:      "test",
		}
	}
	return out
}

// fastMembers keeps the default names and weights with smaller models
func fastMembers() []MemberConfig {
	m := DefaultMembers(DefaultSeed)
	m[0].Boosting.Rounds = 60
	m[0].Boosting.Tree.MaxDepth = 4
	m[1].Boosting.Rounds = 60
	m[1].Boosting.Tree.MaxLeaves = 8
	m[1].Boosting.Tree.MinSamplesLeaf = 3
	m[2].Forest.Trees = 20
	m[2].Forest.Tree.MaxDepth = 6
	m[3].Boosting.Rounds = 40
	return m
}

type pipeline struct {
	tables       *ScoreTables
	extractor    *FeatureExtractor
	preprocessor *Preprocessor
	store        *memoryStore
	trainer      *EnsembleTrainer
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	log := logging.NewNoOpLogger()
	tables := NewScoreTables()
	extractor := NewFeatureExtractor(tables, log)
	pre := NewPreprocessor(PreprocessorConfig{}, log)
	store := newMemoryStore()
	trainer, err := NewEnsembleTrainer(TrainerConfig{Seed: DefaultSeed, Members: fastMembers()}, extractor, pre, store, nil, log)
	require.NoError(t, err)
	return &pipeline{tables: tables, extractor: extractor, preprocessor: pre, store: store, trainer: trainer}
}

func (p *pipeline) trainMobile(t *testing.T) *domain.ModelBundle {
	t.Helper()
	bundle, _, err := p.trainer.TrainFromRecords(context.Background(), domain.CategoryMobile, mobileListings(240, 1))
	require.NoError(t, err)
	_, err = p.trainer.Persist(context.Background(), bundle)
	require.NoError(t, err)
	return bundle
}

type memoryStore struct {
	mu      sync.Mutex
	bundles map[domain.Category]*domain.ModelBundle
	saves   int
	loadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{bundles: make(map[domain.Category]*domain.ModelBundle)}
}

func (s *memoryStore) Save(_ context.Context, b *domain.ModelBundle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	b.Metadata.Version = fmt.Sprintf("v%d", s.saves)
	s.bundles[b.Category] = b
	return b.Metadata.Version, nil
}

func (s *memoryStore) Load(_ context.Context, c domain.Category) (*domain.ModelBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	b, ok := s.bundles[c]
	if !ok {
		return nil, fmt.Errorf("no bundle for %s", c)
	}
	return b, nil
}

func (s *memoryStore) Metadata(ctx context.Context, c domain.Category) (*domain.BundleMetadata, error) {
	b, err := s.Load(ctx, c)
	if err != nil {
		return nil, err
	}
	return &b.Metadata, nil
}

func (s *memoryStore) Versions(_ context.Context, c domain.Category) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bundles[c]; ok {
		return []string{b.Metadata.Version}, nil
	}
	return nil, nil
}

func f64(v float64) *float64 { return &v }
