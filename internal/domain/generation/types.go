package generation

import (
	"context"
	"time"

	"stability-mcp/internal/domain/model"
)

// Mode selects the request encoding. The choice is made once, during Build,
// so the client never has to infer it from field presence.
type Mode string

const (
	// ModeTextToImage sends prompt fields only.
	ModeTextToImage Mode = "text-to-image"
	// ModeImageToImage sends prompt fields plus the raw input image bytes as a
	// multipart file part.
	ModeImageToImage Mode = "image-to-image"
)

// Output formats accepted by the Stability endpoints.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// FinishReason reports how the upstream generation ended.
type FinishReason string

const (
	FinishSuccess FinishReason = "SUCCESS"
	// FinishContentFiltered means the upstream NSFW classifier replaced the
	// output. This is a successful generation; policy is left to the caller.
	FinishContentFiltered FinishReason = "CONTENT_FILTERED"
)

// Defaults applied by Build when parameters are omitted.
const (
	DefaultOutputFormat = FormatPNG
	DefaultStrength     = 0.7
)

// Params carries the raw arguments of a generate_image tool call, before
// validation against a model descriptor.
type Params struct {
	Prompt         string
	Model          string
	AspectRatio    string
	Seed           int64
	OutputFormat   string
	NegativePrompt string
	ImagePath      string
	Strength       *float64
}

// Request is a validated, immutable generation request ready for the API
// client. Constructed exclusively by Build.
type Request struct {
	Descriptor     model.Descriptor
	Mode           Mode
	Prompt         string
	AspectRatio    string
	Seed           int64
	OutputFormat   string
	NegativePrompt string
	InputImage     []byte
	InputImagePath string
	Strength       float64
}

// Result holds a successful upstream response. Failures travel as typed
// errors, not as a Result.
type Result struct {
	Image        []byte
	ContentType  string
	Seed         int64
	FinishReason FinishReason
}

// ContentFiltered reports whether the upstream flagged the output.
func (r Result) ContentFiltered() bool {
	return r.FinishReason == FinishContentFiltered
}

// Artifact describes a persisted generation: the image file, its sibling
// metadata record, and basic accounting. Never mutated after creation.
type Artifact struct {
	FilePath     string
	MetadataPath string
	CreatedAt    time.Time
	SizeBytes    int64
}

// StorageInfo is a point-in-time view of the artifact directory. Computed on
// demand, never cached.
type StorageInfo struct {
	Directory     string
	Exists        bool
	Writable      bool
	TotalFiles    int
	ImageFiles    int
	MetadataFiles int
	TotalBytes    int64
}

// TotalMB returns the aggregate size in megabytes, rounded to two decimals.
func (s StorageInfo) TotalMB() float64 {
	return float64(int64(float64(s.TotalBytes)/1024/1024*100+0.5)) / 100
}

// Client executes exactly one synchronous call against the Stability API.
type Client interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ArtifactStore persists generated images with their metadata and reports
// storage statistics.
type ArtifactStore interface {
	Persist(ctx context.Context, res Result, req Request) (Artifact, error)
	Stats(ctx context.Context) (StorageInfo, error)
}
