// Package s3 provides an S3-compatible storage adapter for Assay.
//
// This adapter supports AWS S3, MinIO, LocalStack, Cloudflare R2, and
// other S3-compatible object stores.
//
// Schema discovery drives two access patterns the adapter is shaped
// around: recursive listings that carry object sizes (so footer reads know
// each file's length without an extra round trip per file), and ranged
// reads via the HTTP Range header (so only the trailing metadata region of
// a Parquet file crosses the network). Writes exist for summary files
// only and use PutObject with If-None-Match for no-overwrite semantics;
// objects beyond the single-request PutObject limit are out of scope.
//
// # Consistency
//
// AWS S3 provides strong read-after-write consistency. Other S3-compatible
// backends may differ — consult their documentation.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/justapithecus/assay/assay"
)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix for all operations. If set, all
	// keys are prefixed with this value (with a trailing slash added if
	// missing).
	Prefix string
}

// Store implements assay.Store using an S3-compatible backend.
type Store struct {
	client API
	bucket string
	prefix string
}

// New creates a new S3 store with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and
// endpoint. Use github.com/aws/aws-sdk-go-v2/config to load configuration.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store, err := s3store.New(client, s3store.Config{Bucket: "my-bucket"})
func New(client API, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// Factory returns an assay.StoreFactory producing this store.
func (s *Store) Factory() assay.StoreFactory {
	return func() (assay.Store, error) { return s, nil }
}

// Put writes data to the given path using PutObject with If-None-Match,
// giving an atomic no-overwrite guarantee. The payload is buffered in
// memory; the store writes only schema summary files, which are small.
// Returns ErrPathExists if the path already exists.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("s3: buffering payload: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			// Some S3-compatible backends return the bare status code.
			code := apiErr.ErrorCode()
			if code == "PreconditionFailed" || code == "412" {
				return assay.ErrPathExists
			}
		}
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}

// Get retrieves data from the given path.
// Returns ErrNotFound if the path does not exist.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, assay.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}
	return out.Body, nil
}

// Exists checks whether a path exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3: head object: %w", err)
	}
	return true, nil
}

// List returns all objects under the given prefix with their sizes,
// paginating as needed.
func (s *Store) List(ctx context.Context, prefix string) ([]assay.ObjectInfo, error) {
	fullPrefix, err := s.validatePrefix(prefix)
	if err != nil {
		return nil, err
	}

	var objects []assay.ObjectInfo
	var continuation *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, object := range out.Contents {
			key := strings.TrimPrefix(aws.ToString(object.Key), s.prefix)
			objects = append(objects, assay.ObjectInfo{
				Key:       key,
				SizeBytes: aws.ToInt64(object.Size),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuation = out.NextContinuationToken
	}
	return objects, nil
}

// Delete removes the path if it exists. Deleting a missing path succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("s3: delete object: %w", err)
	}
	return nil
}

// ReaderAt opens the path for random access reads. The object's size is
// taken from a single HeadObject call; each ReadAt issues one ranged
// GetObject. Returns ErrNotFound if the path does not exist.
// The returned reader supports concurrent reads at different offsets.
func (s *Store) ReaderAt(ctx context.Context, key string) (assay.SizedReaderAt, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return nil, err
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, assay.ErrNotFound
		}
		return nil, fmt.Errorf("s3: head object: %w", err)
	}

	return &readerAt{
		client:  s.client,
		bucket:  s.bucket,
		key:     fullKey,
		size:    aws.ToInt64(head.ContentLength),
		baseCtx: ctx,
	}, nil
}

// readerAt implements assay.SizedReaderAt using S3 range reads.
// It is safe for concurrent use.
type readerAt struct {
	client  API
	bucket  string
	key     string
	size    int64
	baseCtx context.Context
}

func (r *readerAt) Size() int64 { return r.size }

func (r *readerAt) Close() error { return nil }

// ReadAt implements io.ReaderAt.
func (r *readerAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("s3: negative offset")
	}
	if len(p) == 0 {
		return 0, nil
	}

	// S3 Range header format: "bytes=start-end" (inclusive).
	end := off + int64(len(p)) - 1
	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, end)

	out, err := r.client.GetObject(r.baseCtx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		// InvalidRange means the offset is beyond EOF.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("s3: range read: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	n, err = io.ReadFull(out.Body, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// Requested range extends beyond EOF.
		err = io.EOF
	}
	return n, err
}

// validateKey validates and returns the full key for object operations.
func (s *Store) validateKey(key string) (string, error) {
	if key == "" {
		return "", assay.ErrInvalidPath
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", assay.ErrInvalidPath
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", assay.ErrInvalidPath
	}

	return s.prefix + cleaned, nil
}

// validatePrefix validates and returns the full prefix for list operations.
func (s *Store) validatePrefix(prefix string) (string, error) {
	if prefix == "" {
		return s.prefix, nil
	}

	cleaned := path.Clean(prefix)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", assay.ErrInvalidPath
	}
	if cleaned == "." {
		return s.prefix, nil
	}
	cleaned = strings.TrimPrefix(cleaned, "/")

	return s.prefix + cleaned, nil
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is a test double for API.
type MockS3Client struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Call counters for test assertions.
	PutObjectCalls  int
	GetObjectCalls  int
	HeadObjectCalls int
	ListCalls       int

	// GetObjectErr, when set, fails every GetObject call.
	GetObjectErr error

	// PutObjectErr, when set, fails every PutObject call.
	PutObjectErr error
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{objects: make(map[string][]byte)}
}

// SetObject seeds the mock with an object, bypassing Put semantics.
func (m *MockS3Client) SetObject(key string, data []byte) {
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
}

// PutObject implements API.PutObject for testing.
func (m *MockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutObjectCalls++

	if m.PutObjectErr != nil {
		return nil, m.PutObjectErr
	}

	// Handle If-None-Match: "*" (conditional write for immutability).
	if aws.ToString(params.IfNoneMatch) == "*" {
		if _, exists := m.objects[key]; exists {
			return nil, &smithyAPIError{code: "PreconditionFailed", message: "object already exists"}
		}
	}

	m.objects[key] = data
	return &s3.PutObjectOutput{}, nil
}

// GetObject implements API.GetObject for testing, including range requests.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.Lock()
	m.GetObjectCalls++
	failErr := m.GetObjectErr
	m.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}

	m.mu.RLock()
	data, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return nil, &types.NoSuchKey{}
	}

	if params.Range != nil {
		var start, end int64
		_, _ = fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end)

		if start >= int64(len(data)) {
			return nil, &smithyAPIError{code: "InvalidRange"}
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.Lock()
	m.HeadObjectCalls++
	m.mu.Unlock()

	m.mu.RLock()
	data, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return nil, &types.NoSuchKey{}
	}

	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

// DeleteObject implements API.DeleteObject for testing.
func (m *MockS3Client) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(params.Key)

	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()

	return &s3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)

	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var contents []types.Object
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(data))),
			})
		}
	}

	return &s3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(false),
	}, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string { return e.message }

func (e *smithyAPIError) ErrorCode() string { return e.code }

func (e *smithyAPIError) ErrorMessage() string { return e.message }

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
