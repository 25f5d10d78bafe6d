package connector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yairfalse/vahti/types"
)

// objectSampleLimit bounds how many objects Inspect lists
const objectSampleLimit = 100

// blobConnector inspects an S3 object-storage bucket. The connection
// string has the form s3://<bucket>?region=<region>; the bucket falls
// back to the connection's database name.
type blobConnector struct {
	conn   types.Connection
	bucket string
	region string
	client *s3.Client
}

func newBlobConnector(conn types.Connection) *blobConnector {
	c := &blobConnector{conn: conn, bucket: conn.DatabaseName}

	if u, err := url.Parse(conn.ConnectionString); err == nil && u.Scheme == "s3" {
		if u.Host != "" {
			c.bucket = u.Host
		}
		c.region = u.Query().Get("region")
	}
	return c
}

func (b *blobConnector) Connect(ctx context.Context) error {
	if b.bucket == "" {
		return unavailable(b.conn, fmt.Errorf("no bucket configured"))
	}

	var opts []func(*awsconfig.LoadOptions) error
	if b.region != "" {
		opts = append(opts, awsconfig.WithRegion(b.region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return unavailable(b.conn, err)
	}

	client := s3.NewFromConfig(cfg)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return unavailable(b.conn, err)
	}
	b.client = client
	return nil
}

func (b *blobConnector) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if b.client == nil {
		return HealthStatus{}, unavailable(b.conn, errNotConnected)
	}

	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err != nil {
		return HealthStatus{Healthy: false, ResponseTime: time.Since(start), Message: err.Error()},
			unavailable(b.conn, err)
	}
	return HealthStatus{Healthy: true, ResponseTime: time.Since(start)}, nil
}

func (b *blobConnector) Inspect(ctx context.Context) (*Snapshot, error) {
	if b.client == nil {
		return nil, unavailable(b.conn, errNotConnected)
	}

	store := &ObjectStoreSnapshot{Bucket: b.bucket}

	versioning, err := b.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return nil, unavailable(b.conn, err)
	}
	store.VersioningEnabled = versioning.Status == s3types.BucketVersioningStatusEnabled

	objects, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		MaxKeys: aws.Int32(objectSampleLimit),
	})
	if err != nil {
		return nil, unavailable(b.conn, err)
	}

	for _, obj := range objects.Contents {
		store.SampledObjects++
		if aws.ToInt64(obj.Size) == 0 {
			store.EmptyObjects++
		}
		if obj.LastModified != nil && obj.LastModified.After(store.NewestModification) {
			store.NewestModification = *obj.LastModified
		}
	}

	return &Snapshot{
		Connection:  b.conn.Name,
		DBType:      types.DBTypeBlobStorage,
		TakenAt:     time.Now(),
		ObjectStore: store,
	}, nil
}

func (b *blobConnector) Close() error {
	b.client = nil
	return nil
}
