package diagnostics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/framez/backend/internal/logging"
	"github.com/framez/backend/internal/storage"
)

// Steps identify which check failed.
const (
	StepConnection     = "connection"
	StepBucketExists   = "bucketExists"
	StepBucketPublic   = "bucketPublic"
	StepAuthentication = "authentication"
)

// ObjectStore is the subset of the object store exercised by the checks.
type ObjectStore interface {
	Bucket() string
	ListBuckets(ctx context.Context) ([]storage.Bucket, error)
	BucketPublic(ctx context.Context) (bool, error)
	List(ctx context.Context, prefix string, limit int32) ([]storage.Object, error)
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// Report is the outcome of a connectivity check.
type Report struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Step    string          `json:"step,omitempty"`
	Buckets []string        `json:"buckets,omitempty"`
	Bucket  *storage.Bucket `json:"bucket,omitempty"`
	User    string          `json:"user,omitempty"`
}

// Checker verifies the object store is reachable and usable for post images.
type Checker struct {
	Store  ObjectStore
	Logger *slog.Logger
	Now    func() time.Time
}

// Check runs the connectivity checks in order and stops at the first failure.
// Listing the caller's own prefix is informational only.
func (c Checker) Check(ctx context.Context, userID string) Report {
	logger := c.logger(ctx)
	bucketName := c.Store.Bucket()

	buckets, err := c.Store.ListBuckets(ctx)
	if err != nil {
		logger.Error("storage check: list buckets failed", "error", err)
		return Report{Step: StepConnection, Error: fmt.Sprintf("Cannot access storage: %v", err)}
	}

	var found *storage.Bucket
	names := make([]string, 0, len(buckets))
	for i := range buckets {
		names = append(names, buckets[i].Name)
		if buckets[i].Name == bucketName {
			found = &buckets[i]
		}
	}
	if found == nil {
		logger.Warn("storage check: bucket missing", "bucket", bucketName, "buckets", names)
		return Report{
			Step:    StepBucketExists,
			Error:   fmt.Sprintf("Storage bucket %q not found. Create it before posting images.", bucketName),
			Buckets: names,
		}
	}

	public, err := c.Store.BucketPublic(ctx)
	if err != nil {
		logger.Error("storage check: bucket access lookup failed", "bucket", bucketName, "error", err)
		return Report{Step: StepBucketPublic, Error: fmt.Sprintf("Cannot read access settings for bucket %q: %v", bucketName, err)}
	}
	if !public {
		return Report{Step: StepBucketPublic, Error: fmt.Sprintf("Storage bucket %q is not public. Allow public reads so post images load.", bucketName)}
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Report{Step: StepAuthentication, Error: "Not authenticated. Please log in first."}
	}

	if _, err := c.Store.List(ctx, userID+"/", 1); err != nil {
		logger.Warn("storage check: listing user prefix failed", "userId", userID, "error", err)
	}

	logger.Info("storage check passed", "bucket", bucketName, "userId", userID)
	return Report{Success: true, Message: "Storage connection successful!", Bucket: found, User: userID}
}

// UploadResult is the outcome of a write probe.
type UploadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Key     string `json:"key,omitempty"`
}

// UploadTest writes and removes a small text object under the caller's prefix.
func (c Checker) UploadTest(ctx context.Context, userID string) UploadResult {
	logger := c.logger(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UploadResult{Error: "Not authenticated"}
	}

	key := fmt.Sprintf("%s/test-%d.txt", userID, c.now().UnixMilli())

	ctx, span := logging.StartSpan(ctx, "storage.upload_test", "key", key)
	_, err := c.Store.Upload(ctx, key, strings.NewReader("test"), "text/plain")
	span.End(err)
	if err != nil {
		return UploadResult{Error: err.Error(), Key: key}
	}

	if err := c.Store.Delete(ctx, key); err != nil {
		logger.Warn("storage upload test: cleanup failed", "key", key, "error", err)
	}

	return UploadResult{Success: true, Message: "Upload test successful!", Key: key}
}

func (c Checker) logger(ctx context.Context) *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.FromContext(ctx)
}

func (c Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
