package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
)

// s3API is the slice of the S3 client the deployer actually calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 uploads the output tree object by object. Works against AWS and
// S3-compatible endpoints (path-style access when an endpoint is set).
type S3 struct {
	cfg    config.S3Config
	client s3API
	prune  bool
}

func NewS3(cfg config.S3Config) *S3 { return &S3{cfg: cfg} }

// SetPrune enables deletion of remote keys that no longer exist locally.
func (d *S3) SetPrune(prune bool) *S3 {
	d.prune = prune
	return d
}

func (d *S3) Name() string { return "s3" }

func (d *S3) Publish(ctx context.Context, dir string) (*Result, error) {
	if d.cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: deploy.s3.bucket is not configured")
	}
	client, err := d.api()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	prefix := strings.Trim(d.cfg.Prefix, "/")

	uploaded := make(map[string]bool)
	files := 0
	err = filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" {
			key = prefix + "/" + key
		}
		if err := d.upload(ctx, client, p, key); err != nil {
			return err
		}
		uploaded[key] = true
		files++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if d.prune {
		removed, err := d.pruneRemote(ctx, client, prefix, uploaded)
		if err != nil {
			return nil, err
		}
		if removed > 0 {
			slog.Info("Pruned stale objects", slog.Int("objects", removed), logfields.Target("s3"))
		}
	}

	return &Result{Target: "s3", Files: files, Duration: time.Since(start)}, nil
}

// api builds the client on first use so missing credentials surface before
// any network traffic.
func (d *S3) api() (s3API, error) {
	if d.client != nil {
		return d.client, nil
	}
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, &CredentialsError{Target: "s3", Env: "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY"}
	}
	region := d.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN")),
	}
	if d.cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(strings.TrimRight(d.cfg.Endpoint, "/"))
		opts.UsePathStyle = true
	}
	d.client = s3.New(opts)
	return d.client, nil
}

func (d *S3) upload(ctx context.Context, client s3API, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", d.cfg.Bucket, key, err)
	}
	slog.Debug("Uploaded object", logfields.Path(key))
	return nil
}

// pruneRemote deletes keys under the prefix that this publish did not
// upload.
func (d *S3) pruneRemote(ctx context.Context, client s3API, prefix string, keep map[string]bool) (int, error) {
	var stale []s3types.ObjectIdentifier
	in := &s3.ListObjectsV2Input{Bucket: aws.String(d.cfg.Bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix + "/")
	}
	for {
		out, err := client.ListObjectsV2(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("s3 list %s: %w", d.cfg.Bucket, err)
		}
		for _, obj := range out.Contents {
			if key := aws.ToString(obj.Key); !keep[key] {
				stale = append(stale, s3types.ObjectIdentifier{Key: obj.Key})
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}

	for i := 0; i < len(stale); i += 1000 {
		batch := stale[i:min(i+1000, len(stale))]
		_, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.cfg.Bucket),
			Delete: &s3types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return 0, fmt.Errorf("s3 delete %s: %w", d.cfg.Bucket, err)
		}
	}
	return len(stale), nil
}

// contentType favors explicit web types; the mime package's table is not
// reliable for them across minimal container images.
func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".json":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	case ".xml":
		return "application/xml"
	case ".txt", ".md":
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(filepath.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
