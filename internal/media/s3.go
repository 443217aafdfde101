package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/and161185/chat-directory/internal/errs"
)

// MinPartSize is the smallest multipart chunk S3 accepts (except the last part).
const MinPartSize = 5 << 20

// S3Config describes an S3 or S3-compatible (MinIO) bucket.
type S3Config struct {
	Region    string
	Endpoint  string // empty for AWS, e.g. http://127.0.0.1:9000 for MinIO
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicBaseURL is the prefix clients use to fetch objects (CDN or
	// public bucket URL). Defaults to the path-style endpoint URL.
	PublicBaseURL string
	PartSize      int64
	MaxBytes      int64
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Store keeps objects in a bucket. Small payloads go up in a single
// PutObject; larger ones are streamed as a multipart upload, which S3 only
// makes visible on CompleteMultipartUpload.
type S3Store struct {
	api      s3API
	bucket   string
	baseURL  string
	partSize int64
	maxBytes int64
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3 client from static credentials.
func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	if c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return nil, fmt.Errorf("s3 store: credentials and bucket are required: %w", errs.ErrInvalidInput)
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true // MinIO
		}
	})
	return newS3Store(client, c), nil
}

func newS3Store(api s3API, c S3Config) *S3Store {
	base := c.PublicBaseURL
	if base == "" {
		if c.Endpoint != "" {
			base = strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
		}
	}
	part := c.PartSize
	if part < MinPartSize {
		part = MinPartSize
	}
	return &S3Store{
		api:      api,
		bucket:   c.Bucket,
		baseURL:  strings.TrimRight(base, "/"),
		partSize: part,
		maxBytes: c.MaxBytes,
	}
}

// Put uploads the object and returns its versioned URL.
func (s *S3Store) Put(ctx context.Context, k Key, r io.Reader) (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	h := newHash()
	src := source(ctx, r, s.maxBytes, h)

	buf := make([]byte, s.partSize)
	n, err := io.ReadFull(src, buf)
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		if err := s.putSingle(ctx, k, buf[:n]); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("read payload: %w", err)
	default:
		if err := s.putMultipart(ctx, k, buf, src); err != nil {
			return "", err
		}
	}
	return versionedURL(s.URL(k), h.Sum(nil)), nil
}

func (s *S3Store) putSingle(ctx context.Context, k Key, body []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(k.Path()),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(http.DetectContentType(body)),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// putMultipart uploads first (a full part) and then the rest of src.
func (s *S3Store) putMultipart(ctx context.Context, k Key, first []byte, src io.Reader) (err error) {
	created, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k.Path()),
		ContentType: aws.String(http.DetectContentType(first)),
	})
	if err != nil {
		return fmt.Errorf("initiate multipart upload: %w", err)
	}
	uploadID := created.UploadId
	defer func() {
		if err == nil {
			return
		}
		_, _ = s.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(k.Path()),
			UploadId: uploadID,
		})
	}()

	var parts []types.CompletedPart
	chunk := first
	for num := int32(1); ; num++ {
		out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(k.Path()),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(num),
			Body:          bytes.NewReader(chunk),
			ContentLength: aws.Int64(int64(len(chunk))),
		})
		if err != nil {
			return fmt.Errorf("upload part %d: %w", num, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(num)})

		n, rerr := io.ReadFull(src, first)
		if n == 0 && errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil && !errors.Is(rerr, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read payload: %w", rerr)
		}
		chunk = first[:n]
	}

	_, err = s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(k.Path()),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

// Get streams the object body.
func (s *S3Store) Get(ctx context.Context, k Key) (io.ReadCloser, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k.Path()),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes the object; S3 treats missing keys as success.
func (s *S3Store) Delete(ctx context.Context, k Key) error {
	if err := k.Validate(); err != nil {
		return err
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k.Path()),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// URL returns baseURL/<object path>.
func (s *S3Store) URL(k Key) string {
	return s.baseURL + "/" + k.Path()
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && (ae.ErrorCode() == "NoSuchKey" || ae.ErrorCode() == "NotFound")
}
