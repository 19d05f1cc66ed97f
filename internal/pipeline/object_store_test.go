package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pixelheap/imgproc/internal/domain"
)

type fakeObjectStore struct {
	bucket       string
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeObjectStore(bucket string) *fakeObjectStore {
	return &fakeObjectStore{
		bucket:       bucket,
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func (s *fakeObjectStore) Bucket() string { return s.bucket }

func (s *fakeObjectStore) ReadObject(_ context.Context, objectKey string) ([]byte, error) {
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("get object %s: no such key", objectKey)
	}
	return data, nil
}

func (s *fakeObjectStore) WriteObject(_ context.Context, objectKey string, data []byte, contentType string) error {
	s.objects[objectKey] = data
	s.contentTypes[objectKey] = contentType
	return nil
}

func TestObjectStoreRoundTrip(t *testing.T) {
	store := newFakeObjectStore("assets")
	source := encodePNG(t, patternImage(48, 32))
	store.objects["incoming/sprite.png"] = source

	processor, err := NewProcessor(
		ObjectStoreFetcher{Store: store},
		ObjectStoreEmitter{Store: store, Prefix: "processed"},
	)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	res, err := processor.Process(context.Background(), Request{
		InputPath: "incoming/sprite.png",
		OutputDir: "s3://assets/processed",
		Op: domain.Op{
			Kind:     domain.OpConvert,
			Format:   FormatBMP,
			Ext:      ".bmp",
			BaseName: "sprite",
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if res.SourceBytes != len(source) {
		t.Fatalf("source bytes = %d, want %d", res.SourceBytes, len(source))
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(res.Outputs))
	}
	if res.Outputs[0].Path != "s3://assets/processed/sprite.bmp" {
		t.Fatalf("unexpected output path %q", res.Outputs[0].Path)
	}

	data, ok := store.objects["processed/sprite.bmp"]
	if !ok {
		t.Fatalf("converted object was not written, have %v", keysOf(store.objects))
	}
	if store.contentTypes["processed/sprite.bmp"] != "image/bmp" {
		t.Fatalf("unexpected content type %q", store.contentTypes["processed/sprite.bmp"])
	}
	decoded := decodeOutput(t, Output{Name: "processed/sprite.bmp", Data: data})
	if decoded.Bounds().Dx() != 48 || decoded.Bounds().Dy() != 32 {
		t.Fatalf("unexpected output bounds %v", decoded.Bounds())
	}
}

func TestObjectStoreFetchMissingKey(t *testing.T) {
	fetcher := ObjectStoreFetcher{Store: newFakeObjectStore("assets")}
	_, err := fetcher.Fetch(context.Background(), Request{InputPath: "missing.png"})
	if err == nil || !strings.Contains(err.Error(), "missing.png") {
		t.Fatalf("expected missing-key error, got %v", err)
	}
}

func TestObjectStoreStagesRequireStore(t *testing.T) {
	if _, err := (ObjectStoreFetcher{}).Fetch(context.Background(), Request{InputPath: "a"}); err == nil {
		t.Fatal("fetcher without a store should fail")
	}
	if _, err := (ObjectStoreEmitter{}).Emit(context.Background(), Request{}, Output{Name: "a.png"}); err == nil {
		t.Fatal("emitter without a store should fail")
	}
}

func TestObjectStoreEmitterKeyJoin(t *testing.T) {
	scenarios := []struct {
		prefix   string
		wantKey  string
		wantPath string
	}{
		{prefix: "", wantKey: "tile_0_0.png", wantPath: "s3://maps/tile_0_0.png"},
		{prefix: "tiles", wantKey: "tiles/tile_0_0.png", wantPath: "s3://maps/tiles/tile_0_0.png"},
		{prefix: "/deep/run-1/", wantKey: "deep/run-1/tile_0_0.png", wantPath: "s3://maps/deep/run-1/tile_0_0.png"},
	}
	for _, sc := range scenarios {
		store := newFakeObjectStore("maps")
		emitter := ObjectStoreEmitter{Store: store, Prefix: sc.prefix}

		info, err := emitter.Emit(context.Background(), Request{}, Output{
			Name:   "tile_0_0.png",
			Data:   []byte{1, 2, 3},
			Format: FormatPNG,
		})
		if err != nil {
			t.Fatalf("emit with prefix %q: %v", sc.prefix, err)
		}
		if info.Path != sc.wantPath {
			t.Fatalf("prefix %q reported path %q, want %q", sc.prefix, info.Path, sc.wantPath)
		}
		if _, ok := store.objects[sc.wantKey]; !ok {
			t.Fatalf("prefix %q wrote keys %v, want %q", sc.prefix, keysOf(store.objects), sc.wantKey)
		}
	}
}

func TestContentTypeForFormat(t *testing.T) {
	want := map[string]string{
		FormatJPEG: "image/jpeg",
		FormatPNG:  "image/png",
		FormatGIF:  "image/gif",
		FormatTIFF: "image/tiff",
		FormatBMP:  "image/bmp",
		FormatWebP: "image/webp",
	}
	for format, ct := range want {
		if got := contentTypeForFormat(format); got != ct {
			t.Fatalf("contentTypeForFormat(%q) = %q, want %q", format, got, ct)
		}
	}
}

func keysOf(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
