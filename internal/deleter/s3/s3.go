// Package s3 implements cleanup.PathDeleter against an S3 (or
// S3-compatible) bucket, for task working directories and outputs that
// live under an object-storage prefix rather than a local disk. The AWS
// config/client wiring mirrors aaronlmathis/goetl's S3Reader in the
// example corpus.
package s3

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	pkgerrors "github.com/pkg/errors"
)

// Options configures the S3 deleter.
type Options struct {
	Bucket         string
	Region         string
	Profile        string
	Credentials    *aws.Credentials
	EndpointURL    string
	ForcePathStyle bool
}

// Deleter deletes objects and object prefixes ("directories") from a
// single S3 bucket. Paths handed to Delete are expected to be keys (or
// key prefixes for task work directories), not s3:// URLs — the caller
// (the engine's injected collaborators) is responsible for stripping any
// bucket/scheme portion before invoking it.
type Deleter struct {
	client *s3.Client
	bucket string
}

// New builds a Deleter from opts, loading AWS credentials the same way
// aaronlmathis/goetl's S3Reader does: default config chain, optionally
// overridden by an explicit region/profile/credentials/endpoint.
func New(ctx context.Context, opts Options) (*Deleter, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 deleter: bucket is required")
	}

	var configOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "s3 deleter: load AWS config")
	}
	if opts.Credentials != nil {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return &Deleter{client: client, bucket: opts.Bucket}, nil
}

// Delete removes the object at key, if any, and then every object under
// key as a prefix — the S3 equivalent of os.RemoveAll, since S3 has no
// real directories.
// Deleting an already-absent key/prefix is a no-op, satisfying the
// idempotent-on-missing contract of PathDeleter.
func (d *Deleter) Delete(path string) error {
	ctx := context.Background()
	key := strings.TrimPrefix(path, "/")

	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "s3 deleter: delete object %q", key)
	}

	return d.deletePrefix(ctx, key)
}

func (d *Deleter) deletePrefix(ctx context.Context, prefix string) error {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return pkgerrors.Wrapf(err, "s3 deleter: list objects under %q", prefix)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: ids},
		})
		if err != nil {
			return pkgerrors.Wrapf(err, "s3 deleter: batch delete under %q", prefix)
		}
	}
	return nil
}
