package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ObjectStore is the slice of the storage client the pipeline stages need.
type ObjectStore interface {
	Bucket() string
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// ObjectStoreFetcher reads the input bytes from a bucket. Request.InputPath
// carries the object key.
type ObjectStoreFetcher struct {
	Store ObjectStore
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Store == nil {
		return nil, errors.New("object store is required")
	}
	return f.Store.ReadObject(ctx, req.InputPath)
}

// ObjectStoreEmitter writes outputs under a key prefix in a bucket. Reported
// paths use the s3://bucket/key form so batch summaries read the same for
// local and remote destinations.
type ObjectStoreEmitter struct {
	Store  ObjectStore
	Prefix string
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, _ Request, out Output) (OutputInfo, error) {
	if e.Store == nil {
		return OutputInfo{}, errors.New("object store is required")
	}

	objectKey := path.Join(strings.Trim(e.Prefix, "/"), out.Name)
	if err := e.Store.WriteObject(ctx, objectKey, out.Data, contentTypeForFormat(out.Format)); err != nil {
		return OutputInfo{}, err
	}

	return OutputInfo{
		Path:   fmt.Sprintf("s3://%s/%s", e.Store.Bucket(), objectKey),
		Format: out.Format,
		Bytes:  len(out.Data),
		Width:  out.Width,
		Height: out.Height,
		Col:    out.Col,
		Row:    out.Row,
	}, nil
}

func contentTypeForFormat(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}
