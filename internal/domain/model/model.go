package model

// Family selects how a request is encoded on the wire. Core/Ultra models each
// have a dedicated endpoint; SD3.5 models share one endpoint and pick the
// model through a form field.
type Family string

const (
	FamilyCoreUltra Family = "core-ultra"
	FamilySD35      Family = "sd35"
)

// Tier is an informational cost/speed classification. It never affects
// request encoding or validation.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierTurbo    Tier = "turbo"
)

// MaxSeed is the largest seed the Stability API accepts (2^32 - 2).
const MaxSeed = 4294967294

// Descriptor declares a supported model and its capability flags. Descriptors
// are defined at process start and never mutated afterwards.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	Family      Family
	Tier        Tier

	SupportsNegativePrompt bool
	SupportsImageToImage   bool

	AllowedAspectRatios []string
	DefaultAspectRatio  string
}

// SupportsAspectRatio reports whether ratio is in the descriptor's allowed set.
func (d Descriptor) SupportsAspectRatio(ratio string) bool {
	for _, allowed := range d.AllowedAspectRatios {
		if allowed == ratio {
			return true
		}
	}
	return false
}
