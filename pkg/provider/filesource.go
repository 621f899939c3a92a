package provider

import (
	"context"
	"io"
	"os"
)

// FileSource abstracts retrieval of stored document bytes. File storage is
// owned by the portal; the pipeline only ever reads.
type FileSource interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// OSFileSource reads documents from the local filesystem.
type OSFileSource struct{}

func (OSFileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ExcerptLimit caps the text excerpt carried through the pipeline for
// prompt-based querying.
const ExcerptLimit = 3000

// ReadExcerpt reads the document and returns its full bytes plus a bounded
// text excerpt.
func ReadExcerpt(ctx context.Context, src FileSource, path string) (data []byte, excerpt string, err error) {
	rc, err := src.Open(ctx, path)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, "", err
	}

	if len(data) > ExcerptLimit {
		excerpt = string(data[:ExcerptLimit])
	} else {
		excerpt = string(data)
	}
	return data, excerpt, nil
}
