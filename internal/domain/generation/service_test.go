package generation

import (
	"context"
	"testing"
	"time"

	"stability-mcp/internal/domain/model"
	"stability-mcp/utils/platformerrors"
)

type fakeClient struct {
	calls  int
	result Result
	err    error
}

func (f *fakeClient) Execute(ctx context.Context, req Request) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	return f.result, nil
}

type fakeStore struct {
	persists int
	artifact Artifact
	err      error
	lastReq  Request
}

func (f *fakeStore) Persist(ctx context.Context, res Result, req Request) (Artifact, error) {
	f.persists++
	f.lastReq = req
	if f.err != nil {
		return Artifact{}, f.err
	}
	return f.artifact, nil
}

func (f *fakeStore) Stats(ctx context.Context) (StorageInfo, error) {
	return StorageInfo{Directory: "/tmp/images", Exists: true, Writable: true}, nil
}

func newTestService(client *fakeClient, store *fakeStore) *Service {
	return NewService(model.NewRegistry(), client, store)
}

func TestGenerateSuccess(t *testing.T) {
	client := &fakeClient{result: Result{
		Image:        []byte("png data"),
		ContentType:  "image/png",
		Seed:         42,
		FinishReason: FinishSuccess,
	}}
	store := &fakeStore{artifact: Artifact{
		FilePath:     "/tmp/images/stability_20260823_120000_00042.png",
		MetadataPath: "/tmp/images/stability_20260823_120000_00042_metadata.json",
		CreatedAt:    time.Now(),
		SizeBytes:    8,
	}}
	service := newTestService(client, store)

	outcome, err := service.Generate(context.Background(), Params{
		Prompt:      "a red fox in snow",
		Model:       "stable-image-core",
		AspectRatio: "1:1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("client calls = %d, want 1", client.calls)
	}
	if store.persists != 1 {
		t.Fatalf("persist calls = %d, want 1", store.persists)
	}
	if outcome.Result.Seed != 42 {
		t.Fatalf("seed = %d, want 42", outcome.Result.Seed)
	}
	if outcome.Artifact.FilePath == "" {
		t.Fatal("expected artifact path")
	}
}

func TestGenerateDefaultModel(t *testing.T) {
	client := &fakeClient{result: Result{Image: []byte("x"), FinishReason: FinishSuccess}}
	store := &fakeStore{}
	service := newTestService(client, store)

	_, err := service.Generate(context.Background(), Params{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastReq.Descriptor.ID != model.DefaultModelID {
		t.Fatalf("model = %q, want default %q", store.lastReq.Descriptor.ID, model.DefaultModelID)
	}
}

func TestGenerateUnknownModelNoSideEffects(t *testing.T) {
	client := &fakeClient{}
	store := &fakeStore{}
	service := newTestService(client, store)

	_, err := service.Generate(context.Background(), Params{Prompt: "a fox", Model: "imagen-4"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("client calls = %d, want 0", client.calls)
	}
	if store.persists != 0 {
		t.Fatalf("persist calls = %d, want 0", store.persists)
	}
}

func TestGenerateValidationFailureBeforeNetwork(t *testing.T) {
	client := &fakeClient{}
	store := &fakeStore{}
	service := newTestService(client, store)

	// sd3.5-flash does not support negative prompts.
	_, err := service.Generate(context.Background(), Params{
		Prompt:         "a fox",
		Model:          "sd3.5-flash",
		NegativePrompt: "blurry",
	})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("client calls = %d, want 0", client.calls)
	}
}

func TestGenerateNegativePromptSupported(t *testing.T) {
	client := &fakeClient{result: Result{Image: []byte("x"), FinishReason: FinishSuccess}}
	store := &fakeStore{}
	service := newTestService(client, store)

	_, err := service.Generate(context.Background(), Params{
		Prompt:         "a fox",
		Model:          "sd3.5-large",
		NegativePrompt: "blurry",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastReq.NegativePrompt != "blurry" {
		t.Fatalf("negative prompt = %q, want passed through", store.lastReq.NegativePrompt)
	}
}

func TestGenerateUpstreamFailureNoPersist(t *testing.T) {
	upstreamErr := platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure,
		platformerrors.ErrorTypeInsufficientCredits, "insufficient credits", nil, "")
	client := &fakeClient{err: upstreamErr}
	store := &fakeStore{}
	service := newTestService(client, store)

	_, err := service.Generate(context.Background(), Params{Prompt: "a fox"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeInsufficientCredits) {
		t.Fatalf("expected insufficient credits error, got %v", err)
	}
	if store.persists != 0 {
		t.Fatalf("persist calls = %d, want 0", store.persists)
	}
}

func TestGenerateContentFilteredIsSuccess(t *testing.T) {
	client := &fakeClient{result: Result{
		Image:        []byte("replacement"),
		FinishReason: FinishContentFiltered,
	}}
	store := &fakeStore{}
	service := newTestService(client, store)

	outcome, err := service.Generate(context.Background(), Params{Prompt: "a fox"})
	if err != nil {
		t.Fatalf("content-filtered results must not be errors, got %v", err)
	}
	if !outcome.Result.ContentFiltered() {
		t.Fatal("expected content-filtered flag to survive the pipeline")
	}
	if store.persists != 1 {
		t.Fatalf("persist calls = %d, want 1", store.persists)
	}
}

func TestGenerateStorageFailureSurfaced(t *testing.T) {
	client := &fakeClient{result: Result{Image: []byte("x"), FinishReason: FinishSuccess}}
	storageErr := platformerrors.NewError(context.Background(), platformerrors.LayerInfrastructure,
		platformerrors.ErrorTypePartialPersist, "metadata write failed", nil, "")
	store := &fakeStore{err: storageErr}
	service := newTestService(client, store)

	_, err := service.Generate(context.Background(), Params{Prompt: "a fox"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypePartialPersist) {
		t.Fatalf("expected partial persist error, got %v", err)
	}
	if !platformerrors.IsStorageError(err) {
		t.Fatal("expected storage error classification")
	}
}

func TestStorageInfoPassthrough(t *testing.T) {
	service := newTestService(&fakeClient{}, &fakeStore{})

	info, err := service.StorageInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Directory != "/tmp/images" {
		t.Fatalf("directory = %q, want /tmp/images", info.Directory)
	}
}

func TestListModels(t *testing.T) {
	service := newTestService(&fakeClient{}, &fakeStore{})

	descriptors := service.ListModels()
	if len(descriptors) != 6 {
		t.Fatalf("expected 6 models, got %d", len(descriptors))
	}
	if descriptors[0].ID != "stable-image-core" {
		t.Fatalf("first model = %q, want stable-image-core", descriptors[0].ID)
	}
}
