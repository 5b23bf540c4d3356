// Package dumpbucket reads the S3 bucket the dumps are published to: it lists
// the published objects and downloads a dump into the local data directory.
// Every request waits on a shared rate limiter.
package dumpbucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/discogs-dumpload/internal/config"
	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// Request operations reported to the recorder.
const (
	OpList = "list"
	OpGet  = "get"
)

// Object is one listed object of the bucket.
type Object struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

type recorder interface {
	CatalogRequest(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) CatalogRequest(string, error) {}

// Options configures a Bucket built around an existing client.
type Options struct {
	Bucket  string
	Prefix  string
	DataDir string
	Rate    float64
	Burst   int
	Timeout time.Duration
}

// Bucket lists and downloads published dumps.
type Bucket struct {
	log     *slog.Logger
	client  *s3.Client
	opts    Options
	limiter *rate.Limiter
	metrics recorder
}

// New creates a Bucket from the catalog configuration. Anonymous access skips
// request signing; otherwise static keys are used when set, and the default
// credential chain when not.
func New(ctx context.Context, log *slog.Logger, cfg config.CatalogConfig, dataDir string, metrics recorder) (*Bucket, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	switch {
	case cfg.Anonymous:
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewWithClient(log, client, Options{
		Bucket:  cfg.Bucket,
		Prefix:  cfg.Prefix,
		DataDir: dataDir,
		Rate:    cfg.RequestRate,
		Burst:   cfg.RequestBurst,
		Timeout: cfg.RequestTimeout,
	}, metrics), nil
}

// NewWithClient creates a Bucket around client. A nil metrics recorder
// disables metrics.
func NewWithClient(log *slog.Logger, client *s3.Client, opts Options, metrics recorder) *Bucket {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Bucket{
		log:     log.With("component", "dumpbucket", slog.String("bucket", opts.Bucket)),
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		metrics: metrics,
	}
}

// List returns every object under the configured prefix, following
// continuation tokens.
func (b *Bucket) List(ctx context.Context) ([]Object, error) {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.opts.Bucket),
		Prefix: aws.String(b.opts.Prefix),
	})

	var out []Object
	pages := 0
	for p.HasMorePages() {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("list %s: %w", b.opts.Bucket, err)
		}
		page, err := b.nextPage(ctx, p)
		b.metrics.CatalogRequest(OpList, err)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", b.opts.Bucket, err)
		}
		pages++
		for _, obj := range page.Contents {
			out = append(out, Object{
				Key:          aws.ToString(obj.Key),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}

	b.log.DebugContext(ctx, "bucket listed", slog.Int("pages", pages), slog.Int("objects", len(out)))
	return out, nil
}

func (b *Bucket) nextPage(ctx context.Context, p *s3.ListObjectsV2Paginator) (*s3.ListObjectsV2Output, error) {
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	return p.NextPage(ctx)
}

// ErrUnsafeKey is returned for a dump whose key would place the local copy
// outside the data directory.
var ErrUnsafeKey = errors.New("dump key escapes data dir")

// LocalPath returns where the dump is stored under the data directory.
func (b *Bucket) LocalPath(d domain.Dump) (string, error) {
	path := filepath.Join(b.opts.DataDir, filepath.FromSlash(d.URI))
	rel, err := filepath.Rel(b.opts.DataDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeKey, d.URI)
	}
	return path, nil
}

// Fetch makes the dump available in the data directory and returns its path.
// A local file of the catalogued size is reused; otherwise the object is
// downloaded into a temporary file that replaces the target on success.
func (b *Bucket) Fetch(ctx context.Context, d domain.Dump) (string, error) {
	path, err := b.LocalPath(d)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	log := b.log.With(slog.String("key", d.URI))

	if fi, err := os.Stat(path); err == nil && fi.Size() == d.SizeBytes {
		log.DebugContext(ctx, "dump already downloaded", slog.String("path", path))
		return path, nil
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("fetch %s: %w", d.URI, err)
	}

	start := time.Now()
	n, err := b.download(ctx, d.URI, path)
	b.metrics.CatalogRequest(OpGet, err)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", d.URI, err)
	}

	log.InfoContext(ctx, "dump downloaded",
		slog.String("path", path),
		slog.Int64("bytes", n),
		slog.Duration("duration", time.Since(start)),
	)
	return path, nil
}

func (b *Bucket) download(ctx context.Context, key, path string) (n int64, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, out.Body)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}
