package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stability-mcp/internal/domain/generation"
	"stability-mcp/internal/infrastructure/metrics"
	"stability-mcp/utils/platformerrors"
)

const (
	filenamePrefix = "stability"
	metadataSuffix = "_metadata.json"

	// Attempts at a fresh suffix before giving up on a filename collision.
	maxCollisionRetries = 5
)

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// SuffixSource returns a fresh 5-digit suffix used to disambiguate artifacts
// created within the same second.
type SuffixSource func() string

// StoreConfig holds the artifact store settings.
type StoreConfig struct {
	// Path may be absolute, relative to the working directory, or ~-relative.
	// Empty selects the default "images" directory.
	Path string
	// CreateMissing controls whether a missing directory is created on demand.
	CreateMissing bool
}

// Store persists generated images together with a sibling metadata record.
// It does not assume exclusive ownership of the directory; collisions with
// concurrent writers are handled by bounded retry, not locking.
type Store struct {
	dir           string
	createMissing bool
	clock         Clock
	suffix        SuffixSource

	// Serializes filename generation + existence check + create within this
	// process so the collision retry stays meaningful under concurrent calls.
	mu sync.Mutex
}

var _ generation.ArtifactStore = (*Store)(nil)

// NewStore resolves the storage directory and returns a store using the real
// clock and a random suffix source.
func NewStore(cfg StoreConfig) (*Store, error) {
	return NewStoreWithDeps(cfg, time.Now, randomSuffix)
}

// NewStoreWithDeps is NewStore with an injectable clock and suffix source.
func NewStoreWithDeps(cfg StoreConfig, clock Clock, suffix SuffixSource) (*Store, error) {
	dir, err := ResolveDir(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Store{
		dir:           dir,
		createMissing: cfg.CreateMissing,
		clock:         clock,
		suffix:        suffix,
	}, nil
}

// Dir returns the resolved storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// ResolveDir expands and absolutizes the configured storage path. Empty input
// selects the default "images" directory under the working directory.
func ResolveDir(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "images"
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve storage path %q: %w", path, err)
	}
	return abs, nil
}

// EnsureDir verifies the storage directory exists and is usable, creating it
// when configured. The store never falls back to a different path.
func (s *Store) EnsureDir(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return s.dirUnavailable(ctx, fmt.Errorf("%s exists but is not a directory", s.dir))
		}
		return nil
	case os.IsNotExist(err):
		if !s.createMissing {
			return s.dirUnavailable(ctx, fmt.Errorf("directory %s does not exist", s.dir))
		}
		if mkErr := os.MkdirAll(s.dir, 0o755); mkErr != nil {
			return s.dirUnavailable(ctx, mkErr)
		}
		return nil
	default:
		return s.dirUnavailable(ctx, err)
	}
}

// Persist writes the image bytes first and the metadata record second, under
// a shared base name. A metadata failure after a successful image write is
// reported as a partial persist, never as success.
func (s *Store) Persist(ctx context.Context, res generation.Result, req generation.Request) (generation.Artifact, error) {
	if err := s.EnsureDir(ctx); err != nil {
		return generation.Artifact{}, err
	}

	createdAt := s.clock()
	imagePath, err := s.createImageFile(ctx, createdAt, req.OutputFormat, res.Image)
	if err != nil {
		return generation.Artifact{}, err
	}

	metadataPath := strings.TrimSuffix(imagePath, "."+req.OutputFormat) + metadataSuffix
	record := buildMetadata(res, req, imagePath, s.dir, createdAt)

	raw, err := json.MarshalIndent(record, "", "  ")
	if err == nil {
		err = os.WriteFile(metadataPath, raw, 0o644)
	}
	if err != nil {
		return generation.Artifact{}, platformerrors.NewErrorWithContext(ctx,
			platformerrors.LayerInfrastructure, platformerrors.ErrorTypePartialPersist,
			fmt.Sprintf("image written to %s but metadata write failed", imagePath), err, "",
			map[string]any{"image_path": imagePath, "metadata_path": metadataPath})
	}

	log.Info().
		Str("image", imagePath).
		Str("metadata", metadataPath).
		Msg("saved artifact")
	metrics.RecordArtifact(int64(len(res.Image)))

	return generation.Artifact{
		FilePath:     imagePath,
		MetadataPath: metadataPath,
		CreatedAt:    createdAt,
		SizeBytes:    int64(len(res.Image)),
	}, nil
}

// createImageFile picks a collision-free filename and writes the image bytes.
// O_EXCL makes the existence check and the create one atomic step, so a
// concurrent writer landing on the same name just triggers a fresh suffix.
func (s *Store) createImageFile(ctx context.Context, createdAt time.Time, format string, image []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := createdAt.Format("20060102_150405")
	for attempt := 0; attempt <= maxCollisionRetries; attempt++ {
		name := fmt.Sprintf("%s_%s_%s.%s", filenamePrefix, stamp, s.suffix(), format)
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", s.dirUnavailable(ctx, err)
		}

		if _, err := f.Write(image); err != nil {
			f.Close()
			os.Remove(path)
			return "", s.dirUnavailable(ctx, err)
		}
		if err := f.Close(); err != nil {
			return "", s.dirUnavailable(ctx, err)
		}
		return path, nil
	}

	return "", platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
		platformerrors.ErrorTypeCollisionUnresolved,
		fmt.Sprintf("could not find a collision-free filename after %d attempts", maxCollisionRetries+1),
		nil, "", map[string]any{"directory": s.dir})
}

// Stats walks the storage directory and reports its current contents. It
// performs no writes; writability is judged from the directory mode bits.
func (s *Store) Stats(ctx context.Context) (generation.StorageInfo, error) {
	info := generation.StorageInfo{Directory: s.dir}

	dirInfo, err := os.Stat(s.dir)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return generation.StorageInfo{}, s.dirUnavailable(ctx, err)
	}
	info.Exists = dirInfo.IsDir()
	info.Writable = info.Exists && dirInfo.Mode().Perm()&0o200 != 0

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return generation.StorageInfo{}, s.dirUnavailable(ctx, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileInfo, err := entry.Info()
		if err != nil {
			continue
		}
		info.TotalFiles++
		info.TotalBytes += fileInfo.Size()

		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			info.ImageFiles++
		case ".json":
			info.MetadataFiles++
		}
	}

	return info, nil
}

func (s *Store) dirUnavailable(ctx context.Context, err error) *platformerrors.PlatformError {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
		platformerrors.ErrorTypeDirectoryUnavailable,
		fmt.Sprintf("storage directory %s is unavailable", s.dir), err, "",
		map[string]any{"directory": s.dir})
}

// metadataRecord is the JSON shape written next to every image.
type metadataRecord struct {
	Prompt         string   `json:"prompt"`
	Model          string   `json:"model"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	Seed           int64    `json:"seed"`
	OutputFormat   string   `json:"output_format"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	GenerationType string   `json:"generation_type"`
	InputImagePath string   `json:"input_image_path,omitempty"`
	Strength       *float64 `json:"strength,omitempty"`
	FinishReason   string   `json:"finish_reason"`
	FilePath       string   `json:"file_path"`
	FileSize       int      `json:"file_size"`
	GeneratedAt    string   `json:"generated_at"`
	StorageDir     string   `json:"storage_directory"`
}

func buildMetadata(res generation.Result, req generation.Request, imagePath, dir string, createdAt time.Time) metadataRecord {
	record := metadataRecord{
		Prompt:         req.Prompt,
		Model:          req.Descriptor.ID,
		AspectRatio:    req.AspectRatio,
		Seed:           res.Seed,
		OutputFormat:   req.OutputFormat,
		NegativePrompt: req.NegativePrompt,
		GenerationType: string(req.Mode),
		FinishReason:   string(res.FinishReason),
		FilePath:       imagePath,
		FileSize:       len(res.Image),
		GeneratedAt:    createdAt.Format(time.RFC3339),
		StorageDir:     dir,
	}
	if req.Mode == generation.ModeImageToImage {
		record.InputImagePath = req.InputImagePath
		strength := req.Strength
		record.Strength = &strength
	}
	return record
}

func randomSuffix() string {
	return fmt.Sprintf("%05d", rand.Intn(100000))
}
