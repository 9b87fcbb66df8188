package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"execoj/internal/common/storage"
	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const artifactContentType = "application/zstd"

// Artifact is the archived record of one execution.
type Artifact struct {
	Request *model.ExecutionRequest `json:"request"`
	Result  *model.ExecutionResult  `json:"result"`
}

// ArtifactArchive stores zstd-compressed artifacts in object storage.
type ArtifactArchive struct {
	storage storage.ObjectStorage
	bucket  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewArtifactArchive creates an archive writing into bucket.
func NewArtifactArchive(objects storage.ObjectStorage, bucket string) (*ArtifactArchive, error) {
	if objects == nil {
		return nil, fmt.Errorf("object storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder failed: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder failed: %w", err)
	}
	return &ArtifactArchive{storage: objects, bucket: bucket, encoder: encoder, decoder: decoder}, nil
}

// Init creates the bucket when missing.
func (a *ArtifactArchive) Init(ctx context.Context) error {
	if err := a.storage.EnsureBucket(ctx, a.bucket); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "ensure artifact bucket failed")
	}
	return nil
}

// Archive writes the request and its terminal result.
func (a *ArtifactArchive) Archive(ctx context.Context, req *model.ExecutionRequest, result *model.ExecutionResult) error {
	if result == nil || result.ID == "" {
		return appErr.ValidationError("requestId", "required")
	}
	payload, err := json.Marshal(Artifact{Request: req, Result: result})
	if err != nil {
		return fmt.Errorf("marshal artifact failed: %w", err)
	}
	compressed := a.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	key := ArtifactKey(result)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(compressed), int64(len(compressed)), artifactContentType); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "store artifact failed")
	}
	return nil
}

// Load reads back an archived artifact by object key.
func (a *ArtifactArchive) Load(ctx context.Context, key string) (*Artifact, error) {
	reader, err := a.storage.GetObject(ctx, a.bucket, key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "open artifact failed")
	}
	defer reader.Close()
	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "read artifact failed")
	}
	payload, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "decompress artifact failed")
	}
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "decode artifact failed")
	}
	return &artifact, nil
}

// Close releases the codec resources.
func (a *ArtifactArchive) Close() error {
	a.decoder.Close()
	return a.encoder.Close()
}

// ArtifactKey partitions artifacts by category and end date.
func ArtifactKey(result *model.ExecutionResult) string {
	category := string(result.Category)
	if category == "" {
		category = "unknown"
	}
	return fmt.Sprintf("executions/%s/%s/%s.json.zst", category, result.EndTime.UTC().Format("2006/01/02"), result.ID)
}
