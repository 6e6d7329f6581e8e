package generation

import (
	"context"

	"github.com/rs/zerolog/log"

	"stability-mcp/internal/domain/model"
)

// Service orchestrates a tool invocation: resolve the model, build the
// request, execute the upstream call, persist the artifact. Each invocation is
// independent; the only shared state is the storage directory behind the
// ArtifactStore.
type Service struct {
	registry *model.Registry
	client   Client
	store    ArtifactStore
}

// NewService creates a generation service.
func NewService(registry *model.Registry, client Client, store ArtifactStore) *Service {
	return &Service{
		registry: registry,
		client:   client,
		store:    store,
	}
}

// Outcome bundles the upstream result with the persisted artifact for the
// tool facade.
type Outcome struct {
	Request  Request
	Result   Result
	Artifact Artifact
}

// Generate runs the full pipeline. Any stage failure short-circuits: a
// validation or upstream error means nothing was written to disk, while a
// storage error carries its own type so callers can tell the image was
// generated but not (fully) saved.
func (s *Service) Generate(ctx context.Context, params Params) (Outcome, error) {
	if params.Model == "" {
		params.Model = model.DefaultModelID
	}

	desc, err := s.registry.Resolve(params.Model)
	if err != nil {
		return Outcome{}, validationError(ctx, "model", err.Error())
	}

	req, err := Build(ctx, params, desc)
	if err != nil {
		return Outcome{}, err
	}

	log.Info().
		Str("model", desc.ID).
		Str("mode", string(req.Mode)).
		Str("output_format", req.OutputFormat).
		Int64("seed", req.Seed).
		Msg("executing generation request")

	res, err := s.client.Execute(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	if res.ContentFiltered() {
		log.Warn().Str("model", desc.ID).Msg("upstream flagged the result as content-filtered")
	}

	artifact, err := s.store.Persist(ctx, res, req)
	if err != nil {
		return Outcome{}, err
	}

	log.Info().
		Str("file", artifact.FilePath).
		Int64("size_bytes", artifact.SizeBytes).
		Msg("artifact persisted")

	return Outcome{Request: req, Result: res, Artifact: artifact}, nil
}

// ListModels returns all model descriptors in declaration order.
func (s *Service) ListModels() []model.Descriptor {
	return s.registry.List()
}

// StorageInfo reports the current state of the artifact directory.
func (s *Service) StorageInfo(ctx context.Context) (StorageInfo, error) {
	return s.store.Stats(ctx)
}
