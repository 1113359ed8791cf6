// Package artifact persists model bundles on the local filesystem.
//
// Each category keeps its versions side by side:
//
//	<dir>/<category>/<version>/ensemble.gob.gz
//	<dir>/<category>/<version>/scaler.gob.gz
//	<dir>/<category>/<version>/metadata.json
//	<dir>/<category>/CURRENT
//
// A version directory is written under a temporary name and renamed into
// place. CURRENT is swapped the same way, so readers never see partial output.
package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pricewise/backend/internal/domain"
	"github.com/pricewise/backend/internal/infrastructure/logging"
)

const (
	EnsembleFile = "ensemble.gob.gz"
	ScalerFile   = "scaler.gob.gz"
	MetadataFile = "metadata.json"
	CurrentFile  = "CURRENT"

	// DefaultKeepVersions is how many versions per category survive pruning
	DefaultKeepVersions = 5

	versionTimeLayout = "20060102T150405.000000000Z"
)

// ensembleArtifact is the gob payload of ensemble.gob.gz
type ensembleArtifact struct {
	Category        domain.Category
	FeatureNames    []string
	TargetTransform domain.TargetTransform
	Members         []domain.EnsembleMember
}

// Store implements domain.BundleStore on a directory tree
type Store struct {
	baseDir string
	keep    int
	logger  logging.Logger
	now     func() time.Time
	mu      sync.RWMutex
}

var _ domain.BundleStore = (*Store)(nil)

// NewStore creates the base directory if needed. keepVersions <= 0 disables pruning.
func NewStore(baseDir string, keepVersions int, logger logging.Logger) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Store{
		baseDir: baseDir,
		keep:    keepVersions,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Dir returns the base directory
func (s *Store) Dir() string {
	return s.baseDir
}

func (s *Store) categoryDir(category domain.Category) string {
	return filepath.Join(s.baseDir, string(category))
}

func (s *Store) newVersion() string {
	return s.now().UTC().Format(versionTimeLayout) + "-" + uuid.NewString()[:8]
}

// Save writes the bundle as a new version and makes it current. On success the
// bundle's metadata carries the assigned version and artifact checksums.
func (s *Store) Save(ctx context.Context, bundle *domain.ModelBundle) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", fmt.Errorf("refusing to save invalid bundle: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catDir := s.categoryDir(bundle.Category)
	if err := os.MkdirAll(catDir, 0o750); err != nil {
		return "", fmt.Errorf("create category directory: %w", err)
	}

	version := s.newVersion()
	tmpDir, err := os.MkdirTemp(catDir, ".tmp-"+version+"-")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	ensembleSum, err := writeGob(filepath.Join(tmpDir, EnsembleFile), ensembleArtifact{
		Category:        bundle.Category,
		FeatureNames:    bundle.FeatureNames,
		TargetTransform: bundle.TargetTransform,
		Members:         bundle.Members,
	})
	if err != nil {
		return "", fmt.Errorf("write ensemble: %w", err)
	}
	scalerSum, err := writeGob(filepath.Join(tmpDir, ScalerFile), bundle.Scaler)
	if err != nil {
		return "", fmt.Errorf("write scaler: %w", err)
	}

	meta := bundle.Metadata
	meta.Version = version
	meta.Category = bundle.Category
	meta.TargetTransform = bundle.TargetTransform
	if meta.ModelType == "" {
		meta.ModelType = domain.ModelTypeBlendedTrees
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = s.now().UTC()
	}
	meta.Checksums = map[string]string{
		EnsembleFile: ensembleSum,
		ScalerFile:   scalerSum,
	}
	doc, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	if err := ValidateMetadata(doc); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, MetadataFile), doc, 0o600); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	if err := os.Rename(tmpDir, filepath.Join(catDir, version)); err != nil {
		return "", fmt.Errorf("commit version: %w", err)
	}
	committed = true

	if err := writeAtomic(filepath.Join(catDir, CurrentFile), []byte(version+"\n")); err != nil {
		return "", fmt.Errorf("update current pointer: %w", err)
	}

	bundle.Metadata = meta

	s.logger.Info("Model bundle saved", map[string]interface{}{
		"category": bundle.Category,
		"version":  version,
		"members":  len(bundle.Members),
	})

	if s.keep > 0 {
		if err := s.prune(bundle.Category, s.keep); err != nil {
			s.logger.Warn("Failed to prune old versions", map[string]interface{}{
				"category": bundle.Category,
				"error":    err.Error(),
			})
		}
	}
	return version, nil
}

// Load reads the current version for category
func (s *Store) Load(ctx context.Context, category domain.Category) (*domain.ModelBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, err := s.current(category)
	if err != nil {
		return nil, err
	}
	return s.loadVersion(ctx, category, version)
}

// LoadVersion reads a specific version for category
func (s *Store) LoadVersion(ctx context.Context, category domain.Category, version string) (*domain.ModelBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadVersion(ctx, category, version)
}

// Metadata reads only the metadata document of the current version
func (s *Store) Metadata(_ context.Context, category domain.Category) (*domain.BundleMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, err := s.current(category)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.categoryDir(category), version)
	meta, err := readMetadata(dir)
	if err != nil {
		return nil, &domain.ArtifactLoadError{Category: category, Path: dir, Err: err}
	}
	return meta, nil
}

// Versions lists committed versions for category, oldest first
func (s *Store) Versions(_ context.Context, category domain.Category) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions(category)
}

// Prune removes all but the newest keep versions. The current version is never removed.
func (s *Store) Prune(_ context.Context, category domain.Category, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(category, keep)
}

func (s *Store) current(category domain.Category) (string, error) {
	path := filepath.Join(s.categoryDir(category), CurrentFile)
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a validated category
	if err != nil {
		return "", &domain.ArtifactLoadError{Category: category, Path: path, Err: err}
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", &domain.ArtifactLoadError{Category: category, Path: path, Err: errors.New("empty version pointer")}
	}
	return version, nil
}

func (s *Store) versions(category domain.Category) ([]string, error) {
	entries, err := os.ReadDir(s.categoryDir(category))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) prune(category domain.Category, keep int) error {
	if keep <= 0 {
		return nil
	}
	versions, err := s.versions(category)
	if err != nil {
		return err
	}
	if len(versions) <= keep {
		return nil
	}
	current, _ := s.current(category)
	for _, v := range versions[:len(versions)-keep] {
		if v == current {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.categoryDir(category), v)); err != nil {
			return fmt.Errorf("remove version %s: %w", v, err)
		}
		s.logger.Debug("Pruned model version", map[string]interface{}{
			"category": category,
			"version":  v,
		})
	}
	return nil
}

func (s *Store) loadVersion(ctx context.Context, category domain.Category, version string) (*domain.ModelBundle, error) {
	dir := filepath.Join(s.categoryDir(category), version)
	fail := func(err error) (*domain.ModelBundle, error) {
		return nil, &domain.ArtifactLoadError{Category: category, Path: dir, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	meta, err := readMetadata(dir)
	if err != nil {
		return fail(err)
	}
	if meta.Category != category {
		return fail(fmt.Errorf("metadata category %q", meta.Category))
	}

	var ens ensembleArtifact
	if err := readGob(filepath.Join(dir, EnsembleFile), meta.Checksums[EnsembleFile], &ens); err != nil {
		return fail(fmt.Errorf("ensemble: %w", err))
	}
	var scaler domain.FittedScaler
	if err := readGob(filepath.Join(dir, ScalerFile), meta.Checksums[ScalerFile], &scaler); err != nil {
		return fail(fmt.Errorf("scaler: %w", err))
	}
	if ens.Category != category {
		return fail(fmt.Errorf("ensemble category %q", ens.Category))
	}

	bundle := &domain.ModelBundle{
		Category:        category,
		FeatureNames:    ens.FeatureNames,
		Members:         ens.Members,
		Scaler:          scaler,
		Metadata:        *meta,
		TargetTransform: ens.TargetTransform,
	}
	if meta.TargetTransform != ens.TargetTransform {
		return fail(fmt.Errorf("target transform %q in metadata, %q in ensemble", meta.TargetTransform, ens.TargetTransform))
	}
	if err := bundle.Validate(); err != nil {
		return fail(err)
	}
	return bundle, nil
}

func readMetadata(dir string) (*domain.BundleMetadata, error) {
	doc, err := os.ReadFile(filepath.Join(dir, MetadataFile)) //nolint:gosec // path is built from a validated category
	if err != nil {
		return nil, err
	}
	if err := ValidateMetadata(doc); err != nil {
		return nil, err
	}
	var meta domain.BundleMetadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// writeGob gob-encodes v, gzips it to path and returns the hex sha256 of the gob bytes
func writeGob(path string, v interface{}) (string, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // staging path under the artifact directory
	if err != nil {
		return "", err
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", err
	}
	return hex.EncodeToString(sum[:]), f.Close()
}

func readGob(path, wantSum string, v interface{}) error {
	f, err := os.Open(path) //nolint:gosec // path is built from a validated category
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != wantSum {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
