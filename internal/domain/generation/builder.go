package generation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"stability-mcp/internal/domain/model"
	"stability-mcp/utils/platformerrors"
)

// Build validates params against the model descriptor and produces an
// immutable Request. Every rule is checked independently; the first failure is
// returned as a validation error naming the offending field. No side effects
// are performed besides reading the optional input image.
func Build(ctx context.Context, params Params, desc model.Descriptor) (Request, error) {
	prompt := strings.TrimSpace(params.Prompt)
	if prompt == "" {
		return Request{}, validationError(ctx, "prompt", "prompt must not be empty")
	}

	if params.Seed < 0 || params.Seed > model.MaxSeed {
		return Request{}, validationError(ctx, "seed",
			fmt.Sprintf("seed %d out of range, must be between 0 and %d", params.Seed, int64(model.MaxSeed)))
	}

	format := params.OutputFormat
	if format == "" {
		format = DefaultOutputFormat
	}
	if format != FormatPNG && format != FormatJPEG {
		return Request{}, validationError(ctx, "output_format",
			fmt.Sprintf("invalid output format %q, valid formats: %s, %s", params.OutputFormat, FormatPNG, FormatJPEG))
	}

	negative := strings.TrimSpace(params.NegativePrompt)
	if negative != "" && !desc.SupportsNegativePrompt {
		return Request{}, validationError(ctx, "negative_prompt",
			fmt.Sprintf("model %q does not support negative prompts", desc.ID))
	}

	req := Request{
		Descriptor:     desc,
		Mode:           ModeTextToImage,
		Prompt:         prompt,
		Seed:           params.Seed,
		OutputFormat:   format,
		NegativePrompt: negative,
	}

	imagePath := strings.TrimSpace(params.ImagePath)
	if imagePath == "" {
		// Text-to-image: the aspect ratio is part of the request.
		ratio := params.AspectRatio
		if ratio == "" {
			ratio = desc.DefaultAspectRatio
		}
		if !desc.SupportsAspectRatio(ratio) {
			return Request{}, validationError(ctx, "aspect_ratio",
				fmt.Sprintf("invalid aspect ratio %q for model %q, valid ratios: %s",
					ratio, desc.ID, strings.Join(desc.AllowedAspectRatios, ", ")))
		}
		req.AspectRatio = ratio

		if params.Strength != nil {
			return Request{}, validationError(ctx, "strength",
				"strength only applies to image-to-image requests")
		}
		return req, nil
	}

	// Image-to-image: the endpoint derives dimensions from the input image and
	// ignores aspect_ratio, so it is dropped here rather than sent upstream.
	if !desc.SupportsImageToImage {
		return Request{}, validationError(ctx, "image_path",
			fmt.Sprintf("model %q does not support image-to-image generation", desc.ID))
	}

	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return Request{}, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("input image %q is not readable", imagePath), err, "",
			map[string]any{"field": "image_path"})
	}
	if len(imageBytes) == 0 {
		return Request{}, validationError(ctx, "image_path",
			fmt.Sprintf("input image %q is empty", imagePath))
	}

	strength := DefaultStrength
	if params.Strength != nil {
		strength = *params.Strength
	}
	if strength < 0.0 || strength > 1.0 {
		return Request{}, validationError(ctx, "strength",
			fmt.Sprintf("invalid strength %v, must be between 0.0 and 1.0", strength))
	}

	req.Mode = ModeImageToImage
	req.InputImage = imageBytes
	req.InputImagePath = imagePath
	req.Strength = strength
	return req, nil
}

func validationError(ctx context.Context, field, message string) *platformerrors.PlatformError {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
		platformerrors.ErrorTypeValidation, message, nil, "",
		map[string]any{"field": field})
}
