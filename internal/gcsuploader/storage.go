// Package gcsuploader manages the Cloud Storage bucket statements are
// uploaded to: signed upload targets and statement listing. Every account
// schema has its own folder under the statements prefix:
//
//	<prefix><schema>/<object>
package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// DefaultExpiry is how long a signed upload URL stays valid.
const DefaultExpiry = 15 * time.Minute

// ErrForeignObject is returned for URIs outside the statements prefix.
var ErrForeignObject = errors.New("object is not an uploaded statement")

// ErrInvalidSchema is returned for schema names that cannot be a folder.
var ErrInvalidSchema = errors.New("invalid schema")

// Storage is the statements area of one bucket.
type Storage struct {
	client *storage.Client
	bucket string
	prefix string
	schema string
	expiry time.Duration
	newID  func() string
	log    zerolog.Logger
}

// NewStorage creates a Storage with its own client. It assumes Application
// Default Credentials able to sign URLs (a service account). Requests
// without a schema use defaultSchema's folder.
func NewStorage(ctx context.Context, bucket, prefix, defaultSchema string, log zerolog.Logger) (*Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewStorage: bucket is required")
	}
	if !domain.ValidTableName(defaultSchema) {
		return nil, fmt.Errorf("NewStorage: %w: %q", ErrInvalidSchema, defaultSchema)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorage: create storage client: %w", err)
	}
	return newStorage(client, bucket, prefix, defaultSchema, log), nil
}

func newStorage(client *storage.Client, bucket, prefix, defaultSchema string, log zerolog.Logger) *Storage {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
		schema: defaultSchema,
		expiry: DefaultExpiry,
		newID:  func() string { return uuid.NewString()[:8] },
		log:    log,
	}
}

// Close closes the storage client.
func (s *Storage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Folder returns the object prefix of schema's statements.
func (s *Storage) Folder(schema string) (string, error) {
	if schema == "" {
		schema = s.schema
	}
	if !domain.ValidTableName(schema) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	return s.prefix + schema + "/", nil
}

// ObjectName builds a fresh object name for a file uploaded to schema. A
// short random suffix is added to the stem so that re-uploading a file
// never overwrites an earlier statement:
//
//	"enero 2024.csv" -> "statements/finance/enero 2024_1a2b3c4d.csv"
func (s *Storage) ObjectName(schema, filename string) (string, error) {
	folder, err := s.Folder(schema)
	if err != nil {
		return "", err
	}
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem, rest := base, ""
	if i := strings.Index(base, "."); i >= 0 {
		stem, rest = base[:i], base[i:]
	}
	if stem == "" {
		stem = "statement"
	}
	return folder + stem + "_" + s.newID() + rest, nil
}

// SignedUploadURL returns a V4 signed PUT URL for a new object of schema
// named after filename.
func (s *Storage) SignedUploadURL(ctx context.Context, schema, filename string) (string, error) {
	object, err := s.ObjectName(schema, filename)
	if err != nil {
		return "", fmt.Errorf("SignedUploadURL: %w", err)
	}
	opts := &storage.SignedURLOptions{
		Method:  "PUT",
		Expires: time.Now().Add(s.expiry),
		Scheme:  storage.SigningSchemeV4,
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("SignedUploadURL: signing %s: %w", object, err)
	}

	s.log.Info().Str("bucket", s.bucket).Str("object", object).Msg("Signed upload URL")
	return url, nil
}

// ListStatements returns the object names in schema's folder in lexical
// order. Nested folders are not descended into.
func (s *Storage) ListStatements(ctx context.Context, schema string) ([]string, error) {
	folder, err := s.Folder(schema)
	if err != nil {
		return nil, fmt.Errorf("ListStatements: %w", err)
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: folder, Delimiter: "/"})

	names := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListStatements: iter next: %w", err)
		}
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// ValidateStatementURI checks that gcsURI names an object of this bucket
// directly inside schema's folder.
func (s *Storage) ValidateStatementURI(schema, gcsURI string) error {
	folder, err := s.Folder(schema)
	if err != nil {
		return err
	}
	bucket, object, err := ParseGCSURI(gcsURI)
	if err != nil {
		return err
	}
	name, ok := strings.CutPrefix(object, folder)
	if bucket != s.bucket || !ok || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %s", ErrForeignObject, gcsURI)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
