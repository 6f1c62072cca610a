// Package s3store keeps blobs in an S3-compatible object store. Reads and
// writes both go through presigned URLs, so the service never proxies
// credentials to the HTTP client it fetches with.
//
// Locators map onto objects as bucket = ChannelID and
// key = MessageID + "/" + ContentName.
package s3store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/netx"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// DefaultPresignExpiry is how long presigned URLs stay valid.
const DefaultPresignExpiry = 15 * time.Minute

type Config struct {
	Region        string
	BaseEndpoint  string
	AccessKey     string
	SecretKey     string
	PresignExpiry time.Duration
}

// Store presigns object URLs. It implements upstream.Refresher; Bucket
// returns an upstream.Uploader for one bucket.
type Store struct {
	presign *s3.PresignClient
	expiry  time.Duration
	client  *http.Client
	now     func() time.Time
}

func New(ctx context.Context, cfg Config, client *http.Client) (*Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	s3Client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Store{
		presign: newS3PresignClient(s3Client),
		expiry:  expiry,
		client:  client,
		now:     time.Now,
	}, nil
}

func objectKey(l descriptor.Locator) string {
	return l.MessageID + "/" + l.ContentName
}

// Refresh presigns a GET for every locator.
func (s *Store) Refresh(ctx context.Context, locators []descriptor.Locator) ([]string, error) {
	urls := make([]string, len(locators))
	for i, l := range locators {
		if !l.Complete() {
			return nil, fmt.Errorf("%w: incomplete locator %q", common.ErrMalformedDescriptor, l.String())
		}
		bucket, key := l.ChannelID, objectKey(l)
		req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
			Bucket: &bucket,
			Key:    &key,
		}, s3.WithPresignExpires(s.expiry))
		if err != nil {
			return nil, fmt.Errorf("presign get %s/%s: %w", bucket, key, err)
		}
		urls[i] = req.URL
	}
	return urls, nil
}

// Bucket returns an uploader writing into bucket.
func (s *Store) Bucket(bucket string) *BucketUploader {
	return &BucketUploader{store: s, bucket: bucket}
}

type BucketUploader struct {
	store  *Store
	bucket string
}

// randomPrefix spreads objects over dated prefixes with a unique tail.
func (s *Store) randomPrefix() string {
	d := s.now().UTC()
	return fmt.Sprintf("blobs/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_")

// Upload presigns a PUT under a fresh prefix and sends the data there.
func (b *BucketUploader) Upload(ctx context.Context, f upstream.File) (descriptor.Locator, error) {
	name := nameReplacer.Replace(f.Name)
	if name == "" {
		name = "blob"
	}
	loc := descriptor.Locator{ChannelID: b.bucket, MessageID: b.store.randomPrefix(), ContentName: name}

	bucket, key := loc.ChannelID, objectKey(loc)
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req, err := presignPutObject(b.store.presign, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &ct,
	}, s3.WithPresignExpires(b.store.expiry))
	if err != nil {
		return descriptor.Locator{}, fmt.Errorf("presign put %s/%s: %w", bucket, key, err)
	}

	if err := netx.UploadToPresignedURL(ctx, b.store.client, req.URL, f.Data, ct); err != nil {
		return descriptor.Locator{}, err
	}
	return loc, nil
}
