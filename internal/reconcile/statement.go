package reconcile

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

const storageHost = "storage.googleapis.com"

// Statement is an uploaded statement object and its display label.
// The label doubles as the statement table name on the backend.
type Statement struct {
	Label  string
	Object string
}

// StatementFile is a local file picked for upload.
type StatementFile struct {
	Name     string
	MIMEType string
	Body     io.Reader
}

// NewStatement builds a Statement from an object name.
func NewStatement(object string) Statement {
	return Statement{Label: domain.StatementLabel(object), Object: object}
}

// GCSURIFromSignedURL turns a signed upload URL into the gs:// URI of the
// object it targets. Both path-style and virtual-hosted URLs are accepted.
func GCSURIFromSignedURL(signed string) (string, error) {
	u, err := url.Parse(signed)
	if err != nil {
		return "", fmt.Errorf("GCSURIFromSignedURL: parsing url: %w", err)
	}
	object := strings.TrimPrefix(u.EscapedPath(), "/")
	if unescaped, err := url.PathUnescape(object); err == nil {
		object = unescaped
	}

	switch {
	case u.Host == storageHost:
		if !strings.Contains(object, "/") {
			return "", fmt.Errorf("GCSURIFromSignedURL: no object in %q", u.Path)
		}
		return "gs://" + object, nil
	case strings.HasSuffix(u.Host, "."+storageHost):
		bucket := strings.TrimSuffix(u.Host, "."+storageHost)
		if object == "" {
			return "", fmt.Errorf("GCSURIFromSignedURL: no object in %q", u.Path)
		}
		return "gs://" + path.Join(bucket, object), nil
	default:
		return "", fmt.Errorf("GCSURIFromSignedURL: unexpected host %q", u.Host)
	}
}
