// Package batch runs pipeline operations over one file or a directory of
// files. Files are independent: a failed file is recorded in the summary and
// the run moves on to the next one. Inputs and outputs may live on the local
// filesystem or in an object store bucket addressed as s3://bucket/prefix.
package batch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelheap/imgproc/internal/domain"
	"github.com/pixelheap/imgproc/internal/fsutil"
	"github.com/pixelheap/imgproc/internal/id"
	"github.com/pixelheap/imgproc/internal/pipeline"
	"github.com/pixelheap/imgproc/internal/storage"
)

type Runner struct {
	logger    *log.Logger
	processor *pipeline.Processor
	tracer    trace.Tracer
	store     storage.Config
	clients   map[string]*storage.Client
	verbose   bool
	runID     string
}

// NewRunner builds a runner around the local pipeline. store supplies object
// store credentials for jobs that reference s3:// locations; its bucket field
// is ignored because every location names its own bucket.
func NewRunner(logger *log.Logger, store storage.Config, verbose bool) (*Runner, error) {
	processor, err := pipeline.NewLocalProcessor()
	if err != nil {
		return nil, fmt.Errorf("build processor: %w", err)
	}

	return &Runner{
		logger:    logger,
		processor: processor,
		tracer:    otel.Tracer("imgproc/batch"),
		store:     store,
		clients:   map[string]*storage.Client{},
		verbose:   verbose,
		runID:     id.New(),
	}, nil
}

func (r *Runner) RunID() string {
	return r.runID
}

func (r *Runner) EngineName() string {
	return r.processor.EngineName()
}

// ConvertJob converts every matching file under InputPath, or just InputPath
// itself when it names a file. The Op carries everything but the per-file
// base name.
type ConvertJob struct {
	InputPath string
	OutputDir string
	InputExt  string
	Op        domain.Op
}

// TileJob splits a single input file into a grid.
type TileJob struct {
	InputPath string
	OutputDir string
	Spec      domain.TileSpec
	Format    string
	Ext       string
	Quality   int
}

type FileError struct {
	Path string
	Err  error
}

type Summary struct {
	RunID    string
	Files    int
	Failed   int
	Outputs  int
	Cols     int
	Rows     int
	InBytes  int64
	OutBytes int64
	Elapsed  time.Duration
	Failures []FileError
}

// Err reports the aggregate outcome: nil when every file converted, an error
// naming the failure count otherwise.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", s.Failed, s.Files)
}

func (r *Runner) Convert(ctx context.Context, job ConvertJob) (Summary, error) {
	started := time.Now()

	in, err := parseLocation(job.InputPath)
	if err != nil {
		return Summary{}, err
	}
	out, err := parseLocation(job.OutputDir)
	if err != nil {
		return Summary{}, err
	}

	files, err := r.resolveInputs(ctx, in, job.InputExt)
	if err != nil {
		return Summary{}, err
	}

	ctx, span := r.tracer.Start(ctx, "imgproc.convert", trace.WithAttributes(
		attribute.String("run.id", r.runID),
		attribute.String("input.path", job.InputPath),
		attribute.Int("input.files", len(files)),
		attribute.String("output.format", job.Op.Format),
	))
	defer span.End()

	sum := Summary{RunID: r.runID, Files: len(files)}
	if len(files) == 0 {
		r.logger.Printf("no input files matched path=%s ext=%s run=%s", job.InputPath, job.InputExt, r.runID)
		span.SetStatus(codes.Ok, "no matching files")
		sum.Elapsed = time.Since(started)
		return sum, nil
	}

	processor, err := r.processorFor(ctx, in, out)
	if err != nil {
		span.SetStatus(codes.Error, "pipeline setup failed")
		return Summary{}, err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(started)
			return sum, err
		}

		op := job.Op
		op.BaseName = stemOf(file, in.Remote)
		result, err := r.processFile(ctx, processor, pipeline.Request{
			InputPath: file,
			OutputDir: out.Raw,
			Op:        op,
		})
		if err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, FileError{Path: file, Err: err})
			r.logger.Printf("convert failed file=%s err=%v run=%s", file, err, r.runID)
			continue
		}

		sum.Outputs += len(result.Outputs)
		sum.InBytes += int64(result.SourceBytes)
		for _, out := range result.Outputs {
			sum.OutBytes += int64(out.Bytes)
		}
		if r.verbose {
			r.logger.Printf("converted file=%s outputs=%d run=%s", file, len(result.Outputs), r.runID)
		}
	}

	sum.Elapsed = time.Since(started)
	span.SetAttributes(
		attribute.Int("output.files", sum.Outputs),
		attribute.Int("failed.files", sum.Failed),
	)
	if sum.Failed > 0 {
		span.SetStatus(codes.Error, "finished with failures")
	} else {
		span.SetStatus(codes.Ok, "complete")
	}
	return sum, nil
}

func (r *Runner) Tile(ctx context.Context, job TileJob) (Summary, error) {
	started := time.Now()

	in, err := parseLocation(job.InputPath)
	if err != nil {
		return Summary{}, err
	}
	out, err := parseLocation(job.OutputDir)
	if err != nil {
		return Summary{}, err
	}

	inputPath := in.Raw
	if in.Remote {
		if in.Key == "" {
			return Summary{}, fmt.Errorf("tile input %s must name an object key", job.InputPath)
		}
		client, err := r.client(in.Bucket)
		if err != nil {
			return Summary{}, err
		}
		exists, err := client.ObjectExists(ctx, in.Key)
		if err != nil {
			return Summary{}, err
		}
		if !exists {
			return Summary{}, fmt.Errorf("input object %s does not exist", job.InputPath)
		}
		inputPath = in.Key
	} else {
		info, err := os.Stat(job.InputPath)
		if err != nil {
			return Summary{}, fmt.Errorf("stat input file: %w", err)
		}
		if info.IsDir() {
			return Summary{}, fmt.Errorf("tile input %s is a directory, want a file", job.InputPath)
		}
	}

	ctx, span := r.tracer.Start(ctx, "imgproc.tile", trace.WithAttributes(
		attribute.String("run.id", r.runID),
		attribute.String("input.path", job.InputPath),
		attribute.String("tile.size", job.Spec.String()),
		attribute.String("output.format", job.Format),
	))
	defer span.End()

	processor, err := r.processorFor(ctx, in, out)
	if err != nil {
		span.SetStatus(codes.Error, "pipeline setup failed")
		return Summary{}, err
	}

	spec := job.Spec
	result, err := r.processFile(ctx, processor, pipeline.Request{
		InputPath: inputPath,
		OutputDir: out.Raw,
		Op: domain.Op{
			Kind:     domain.OpTile,
			Format:   job.Format,
			Ext:      job.Ext,
			Quality:  job.Quality,
			Tile:     &spec,
			BaseName: stemOf(inputPath, in.Remote),
		},
	})
	if err != nil {
		span.SetStatus(codes.Error, "tile failed")
		return Summary{}, err
	}

	sum := Summary{
		RunID:   r.runID,
		Files:   1,
		Outputs: len(result.Outputs),
		InBytes: int64(result.SourceBytes),
		Elapsed: time.Since(started),
	}
	for _, out := range result.Outputs {
		sum.OutBytes += int64(out.Bytes)
		if out.Col+1 > sum.Cols {
			sum.Cols = out.Col + 1
		}
		if out.Row+1 > sum.Rows {
			sum.Rows = out.Row + 1
		}
	}

	span.SetAttributes(attribute.Int("output.files", sum.Outputs))
	span.SetStatus(codes.Ok, "complete")
	if r.verbose {
		r.logger.Printf("tiled file=%s tiles=%d grid=%dx%d run=%s", job.InputPath, sum.Outputs, sum.Cols, sum.Rows, r.runID)
	}
	return sum, nil
}

func (r *Runner) processFile(ctx context.Context, processor *pipeline.Processor, req pipeline.Request) (pipeline.Result, error) {
	ctx, span := r.tracer.Start(ctx, "imgproc.file", trace.WithAttributes(
		attribute.String("file.path", req.InputPath),
		attribute.String("op.kind", req.Op.Kind),
	))
	defer span.End()

	result, err := processor.Process(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return pipeline.Result{}, err
	}
	span.SetStatus(codes.Ok, "processed")
	return result, nil
}

// processorFor returns the shared local pipeline, or assembles one with
// object store stages when a location is remote. A remote output bucket is
// created up front, the way local output directories are.
func (r *Runner) processorFor(ctx context.Context, in, out location) (*pipeline.Processor, error) {
	if !in.Remote && !out.Remote {
		return r.processor, nil
	}

	var fetcher pipeline.Fetcher = pipeline.LocalFileFetcher{}
	if in.Remote {
		client, err := r.client(in.Bucket)
		if err != nil {
			return nil, err
		}
		fetcher = pipeline.ObjectStoreFetcher{Store: client}
	}

	var emitter pipeline.Emitter = pipeline.LocalDirEmitter{}
	if out.Remote {
		client, err := r.client(out.Bucket)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		emitter = pipeline.ObjectStoreEmitter{Store: client, Prefix: out.Key}
	}

	return pipeline.NewProcessor(fetcher, emitter)
}

func (r *Runner) client(bucket string) (*storage.Client, error) {
	if client, ok := r.clients[bucket]; ok {
		return client, nil
	}

	cfg := r.store
	cfg.Bucket = bucket
	client, err := storage.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	r.clients[bucket] = client
	return client, nil
}

// resolveInputs expands a directory or key prefix into its matching inputs. A
// direct file path or existing object key is taken as-is, whatever its
// extension.
func (r *Runner) resolveInputs(ctx context.Context, in location, ext string) ([]string, error) {
	if in.Remote {
		client, err := r.client(in.Bucket)
		if err != nil {
			return nil, err
		}
		if in.Key != "" {
			exists, err := client.ObjectExists(ctx, in.Key)
			if err != nil {
				return nil, err
			}
			if exists {
				return []string{in.Key}, nil
			}
		}
		return client.ListByExt(ctx, in.Key, ext)
	}

	info, err := os.Stat(in.Raw)
	if err != nil {
		return nil, fmt.Errorf("stat input path: %w", err)
	}
	if !info.IsDir() {
		return []string{in.Raw}, nil
	}
	return fsutil.FindByExt(in.Raw, ext)
}

// location is a parsed input or output destination: a filesystem path, or an
// object store address of the form s3://bucket/key.
type location struct {
	Raw    string
	Bucket string
	Key    string
	Remote bool
}

func parseLocation(raw string) (location, error) {
	if !strings.HasPrefix(strings.ToLower(raw), "s3://") {
		return location{Raw: raw}, nil
	}

	bucket, key, _ := strings.Cut(raw[len("s3://"):], "/")
	if bucket == "" {
		return location{}, fmt.Errorf("object store location %q must name a bucket", raw)
	}
	return location{
		Raw:    raw,
		Bucket: bucket,
		Key:    strings.Trim(key, "/"),
		Remote: true,
	}, nil
}

// stemOf trims the extension from the last path element. Object keys always
// use forward slashes, whatever the host OS does.
func stemOf(p string, remote bool) string {
	if remote {
		base := path.Base(p)
		return strings.TrimSuffix(base, path.Ext(base))
	}
	return fsutil.Stem(p)
}
