package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// DefaultPresignTTL is how long presigned asset URLs stay valid.
const DefaultPresignTTL = 15 * time.Minute

// S3Catalog lists assets stored under Prefix/<folder>/ in a bucket.
type S3Catalog struct {
	Client s3iface.S3API
	Bucket string
	Prefix string
	// PublicBaseURL, when set, is used to build item sources instead of
	// presigning (for public buckets or a CDN in front of the bucket).
	PublicBaseURL string
	PresignTTL    time.Duration
	// ReadDimensions issues a HEAD per object to read width/height user
	// metadata. Off by default; listing stays a single paged call.
	ReadDimensions bool
}

// S3Config holds the connection settings, normally read from the
// environment.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string
}

// S3ConfigFromEnv reads AWS_REGION, AWS_BUCKET_NAME, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY, plus optional TRYON_S3_PREFIX, TRYON_S3_ENDPOINT
// and TRYON_ASSET_BASE_URL.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Region:          os.Getenv("AWS_REGION"),
		Bucket:          os.Getenv("AWS_BUCKET_NAME"),
		Prefix:          os.Getenv("TRYON_S3_PREFIX"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Endpoint:        os.Getenv("TRYON_S3_ENDPOINT"),
		PublicBaseURL:   os.Getenv("TRYON_ASSET_BASE_URL"),
	}
}

// NewS3Catalog opens an AWS session and returns a catalog over cfg.Bucket.
func NewS3Catalog(cfg S3Config) (*S3Catalog, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 catalog: bucket not configured")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 catalog: failed to create session: %w", err)
	}
	return &S3Catalog{
		Client:        s3.New(sess),
		Bucket:        cfg.Bucket,
		Prefix:        cfg.Prefix,
		PublicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		PresignTTL:    DefaultPresignTTL,
	}, nil
}

func (c *S3Catalog) List(ctx context.Context, folder string) ([]Item, error) {
	if err := ValidateFolder(folder); err != nil {
		return nil, err
	}
	prefix := c.keyPrefix() + folder + "/"

	var keys []string
	err := c.Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			// Only direct children of the folder.
			if strings.Contains(strings.TrimPrefix(key, prefix), "/") || formatOf(key) == "" {
				continue
			}
			keys = append(keys, key)
			if len(keys) == MaxItems {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3://%s/%s: %w", c.Bucket, prefix, err)
	}

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		src, err := c.src(key)
		if err != nil {
			return nil, err
		}
		item := Item{
			PublicID: publicID(strings.TrimPrefix(key, c.keyPrefix())),
			Src:      src,
			Format:   formatOf(key),
		}
		if c.ReadDimensions {
			item.Width, item.Height = c.dimensions(ctx, key)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PublicID < items[j].PublicID })
	return items, nil
}

func (c *S3Catalog) keyPrefix() string {
	p := strings.Trim(c.Prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func (c *S3Catalog) src(key string) (string, error) {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL + "/" + key, nil
	}
	req, _ := c.Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	ttl := c.PresignTTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	u, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u, nil
}

// dimensions reads x-amz-meta-width / x-amz-meta-height. Missing or bad
// metadata yields zeros.
func (c *S3Catalog) dimensions(ctx context.Context, key string) (int, int) {
	out, err := c.Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, 0
	}
	return metaInt(out.Metadata, "Width"), metaInt(out.Metadata, "Height")
}

func metaInt(md map[string]*string, name string) int {
	for k, v := range md {
		if strings.EqualFold(k, name) {
			n, err := strconv.Atoi(aws.StringValue(v))
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}
