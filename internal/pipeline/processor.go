package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixelheap/imgproc/internal/domain"
	"github.com/pixelheap/imgproc/internal/fsutil"
)

// Request runs one operation against one input file. A convert yields a
// single output; a tile yields one output per grid cell.
type Request struct {
	InputPath string
	OutputDir string
	Op        domain.Op
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, out Output) (OutputInfo, error)
}

// OutputInfo describes one emitted artifact.
type OutputInfo struct {
	Path   string
	Format string
	Bytes  int
	Width  int
	Height int
	Col    int
	Row    int
}

type Result struct {
	SourceBytes int
	Outputs     []OutputInfo
}

type Processor struct {
	fetcher Fetcher
	engine  Engine
	emitter Emitter
}

// NewProcessor assembles a pipeline from the given fetch and emit stages
// around the engine the build provides.
func NewProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if emitter == nil {
		return nil, errors.New("emitter is required")
	}

	engine, err := newEngine()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &Processor{
		fetcher: fetcher,
		engine:  engine,
		emitter: emitter,
	}, nil
}

// NewLocalProcessor builds the filesystem-to-filesystem pipeline.
func NewLocalProcessor() (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, LocalDirEmitter{})
}

func (p *Processor) EngineName() string {
	return p.engine.Name()
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.InputPath) == "" {
		return Result{}, errors.New("input path is required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return Result{}, errors.New("output directory is required")
	}
	if err := req.Op.Validate(); err != nil {
		return Result{}, err
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	outputs, err := p.engine.Apply(ctx, sourceBytes, req.Op)
	if err != nil {
		return Result{}, fmt.Errorf("%s stage: %w", req.Op.Kind, err)
	}

	res := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]OutputInfo, 0, len(outputs)),
	}
	for _, out := range outputs {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		written, err := p.emitter.Emit(ctx, req, out)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage %s: %w", out.Name, err)
		}
		res.Outputs = append(res.Outputs, written)
	}

	return res, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.InputPath, err)
	}
	return data, nil
}

type LocalDirEmitter struct{}

func (LocalDirEmitter) Emit(_ context.Context, req Request, out Output) (OutputInfo, error) {
	if err := fsutil.EnsureDir(req.OutputDir); err != nil {
		return OutputInfo{}, err
	}

	fullPath := filepath.Join(req.OutputDir, out.Name)
	if err := os.WriteFile(fullPath, out.Data, 0o644); err != nil {
		return OutputInfo{}, fmt.Errorf("write output file: %w", err)
	}

	return OutputInfo{
		Path:   fullPath,
		Format: out.Format,
		Bytes:  len(out.Data),
		Width:  out.Width,
		Height: out.Height,
		Col:    out.Col,
		Row:    out.Row,
	}, nil
}
