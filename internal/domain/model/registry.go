package model

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModelID is used when a tool call omits the model parameter.
const DefaultModelID = "stable-image-core"

// aspectRatios accepted by all Stability generation endpoints.
var aspectRatios = []string{
	"21:9", "16:9", "3:2", "5:4", "1:1", "4:5", "2:3", "9:16", "9:21",
}

// Registry is the static table of supported models. Lookup only; entries are
// fixed at construction apart from operator overrides of descriptive fields.
type Registry struct {
	order       []string
	descriptors map[string]Descriptor
}

// NewRegistry builds the registry with the supported Stability models in
// presentation order.
func NewRegistry() *Registry {
	descriptors := []Descriptor{
		{
			ID:                     "stable-image-core",
			Name:                   "Stable Image Core",
			Description:            "Fast, cost-effective generation for everyday use.",
			Family:                 FamilyCoreUltra,
			Tier:                   TierStandard,
			SupportsNegativePrompt: true,
			SupportsImageToImage:   true,
		},
		{
			ID:                     "stable-image-ultra",
			Name:                   "Stable Image Ultra",
			Description:            "Highest quality output with the best prompt adherence.",
			Family:                 FamilyCoreUltra,
			Tier:                   TierPremium,
			SupportsNegativePrompt: true,
			SupportsImageToImage:   true,
		},
		{
			ID:                     "sd3.5-large",
			Name:                   "Stable Diffusion 3.5 Large",
			Description:            "Full-size SD3.5 model for detailed, technical work.",
			Family:                 FamilySD35,
			Tier:                   TierPremium,
			SupportsNegativePrompt: true,
			SupportsImageToImage:   true,
		},
		{
			ID:                     "sd3.5-large-turbo",
			Name:                   "Stable Diffusion 3.5 Large Turbo",
			Description:            "Distilled SD3.5 Large with much faster sampling.",
			Family:                 FamilySD35,
			Tier:                   TierTurbo,
			SupportsNegativePrompt: true,
			SupportsImageToImage:   true,
		},
		{
			ID:                     "sd3.5-medium",
			Name:                   "Stable Diffusion 3.5 Medium",
			Description:            "Balanced SD3.5 model for quality at moderate cost.",
			Family:                 FamilySD35,
			Tier:                   TierStandard,
			SupportsNegativePrompt: true,
			SupportsImageToImage:   true,
		},
		{
			ID:                     "sd3.5-flash",
			Name:                   "Stable Diffusion 3.5 Flash",
			Description:            "Fastest SD3.5 variant for rapid iteration and previews.",
			Family:                 FamilySD35,
			Tier:                   TierTurbo,
			SupportsNegativePrompt: false,
			SupportsImageToImage:   true,
		},
	}

	registry := &Registry{
		order:       make([]string, 0, len(descriptors)),
		descriptors: make(map[string]Descriptor, len(descriptors)),
	}
	for _, desc := range descriptors {
		desc.AllowedAspectRatios = aspectRatios
		desc.DefaultAspectRatio = "1:1"
		registry.order = append(registry.order, desc.ID)
		registry.descriptors[desc.ID] = desc
	}
	return registry
}

// Resolve returns the descriptor for id. Unknown ids return an error listing
// the valid ones.
func (r *Registry) Resolve(id string) (Descriptor, error) {
	desc, ok := r.descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown model %q, valid models: %s", id, strings.Join(r.IDs(), ", "))
	}
	return desc, nil
}

// List returns the descriptors in declaration order. The slice and its
// entries are copies; callers cannot mutate registry state through it.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.descriptors[id])
	}
	return out
}

// IDs returns the model identifiers in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// descriptorOverride is the per-model shape of the operator overrides file.
// Only descriptive fields are overridable; capability flags are fixed because
// they encode what the upstream endpoints actually accept.
type descriptorOverride struct {
	Description string `yaml:"description"`
	Tier        string `yaml:"tier"`
}

type overridesFile struct {
	Models map[string]descriptorOverride `yaml:"models"`
}

// ApplyOverrides loads a YAML overrides file and applies it to the registry.
// Unknown model keys are rejected so typos fail at startup, not silently.
func (r *Registry) ApplyOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model overrides: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse model overrides: %w", err)
	}

	keys := make([]string, 0, len(file.Models))
	for id := range file.Models {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	for _, id := range keys {
		desc, ok := r.descriptors[id]
		if !ok {
			return fmt.Errorf("model overrides reference unknown model %q", id)
		}
		override := file.Models[id]
		if override.Description != "" {
			desc.Description = override.Description
		}
		if override.Tier != "" {
			switch Tier(override.Tier) {
			case TierStandard, TierPremium, TierTurbo:
				desc.Tier = Tier(override.Tier)
			default:
				return fmt.Errorf("model overrides: invalid tier %q for model %q", override.Tier, id)
			}
		}
		r.descriptors[id] = desc
	}
	return nil
}
