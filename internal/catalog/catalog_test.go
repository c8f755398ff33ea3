package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gold_earrings", FolderKey("gold", "earrings"))
	assert.Equal(t, "diamond_necklace", FolderKey("Diamond", "Necklace"))
}

func TestValidateFolder(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"gold_earrings", "trymygold/diamond_earrings", "v2.assets"} {
		assert.NoError(t, ValidateFolder(ok), ok)
	}
	for _, bad := range []string{"", "..", "../etc", "/abs", "a//b", "a/../b", "gold earrings", "a/", ".hidden"} {
		assert.ErrorIs(t, ValidateFolder(bad), ErrInvalidFolder, bad)
	}
}

func writePNG(t *testing.T, file string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o644))
}

func TestDirCatalog_List(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "gold_earrings")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writePNG(t, filepath.Join(dir, "jhumka.png"), 120, 240)
	writePNG(t, filepath.Join(dir, "hoop.PNG"), 80, 80)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644))

	c := NewDirCatalog(root, "http://localhost:8080/assets/")
	items, err := c.List(context.Background(), "gold_earrings")
	require.NoError(t, err)

	want := []Item{
		{PublicID: "gold_earrings/broken", Src: "http://localhost:8080/assets/gold_earrings/broken.jpg", Format: "jpg"},
		{PublicID: "gold_earrings/hoop", Src: "http://localhost:8080/assets/gold_earrings/hoop.PNG", Format: "png", Width: 80, Height: 80},
		{PublicID: "gold_earrings/jhumka", Src: "http://localhost:8080/assets/gold_earrings/jhumka.png", Format: "png", Width: 120, Height: 240},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestDirCatalog_FilePathSources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "silver_necklace"), 0o755))
	file := filepath.Join(root, "silver_necklace", "choker.png")
	writePNG(t, file, 10, 5)

	items, err := NewDirCatalog(root, "").List(context.Background(), "silver_necklace")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, file, items[0].Src)
}

func TestDirCatalog_UnknownFolderIsEmpty(t *testing.T) {
	t.Parallel()

	items, err := NewDirCatalog(t.TempDir(), "").List(context.Background(), "platinum_earrings")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = NewDirCatalog(t.TempDir(), "").List(context.Background(), "../secrets")
	assert.ErrorIs(t, err, ErrInvalidFolder)
}

// mockS3 implements the calls S3Catalog makes. Unimplemented methods panic
// through the embedded nil interface.
type mockS3 struct {
	s3iface.S3API

	pages    [][]string
	metadata map[string]map[string]*string
	listErr  error
	inputs   []*s3.ListObjectsV2Input
	presign  *s3.S3
}

func (m *mockS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	m.inputs = append(m.inputs, in)
	if m.listErr != nil {
		return m.listErr
	}
	for i, keys := range m.pages {
		out := &s3.ListObjectsV2Output{}
		for _, k := range keys {
			if !strings.HasPrefix(k, aws.StringValue(in.Prefix)) {
				continue
			}
			out.Contents = append(out.Contents, &s3.Object{Key: aws.String(k)})
		}
		if !fn(out, i == len(m.pages)-1) {
			break
		}
	}
	return nil
}

func (m *mockS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	md, ok := m.metadata[aws.StringValue(in.Key)]
	if !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{Metadata: md}, nil
}

func (m *mockS3) GetObjectRequest(in *s3.GetObjectInput) (*request.Request, *s3.GetObjectOutput) {
	return m.presign.GetObjectRequest(in)
}

func offlineS3(t *testing.T) *s3.S3 {
	t.Helper()
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String("ap-south-1"),
		Credentials: credentials.NewStaticCredentials("AKIDTEST", "secret", ""),
	})
	require.NoError(t, err)
	return s3.New(sess)
}

func TestS3Catalog_ListPublicURLs(t *testing.T) {
	t.Parallel()

	mock := &mockS3{
		pages: [][]string{
			{"trymygold/gold_earrings/a.png", "trymygold/gold_earrings/readme.md"},
			{"trymygold/gold_earrings/deeper/b.png", "trymygold/gold_earrings/c.webp"},
		},
		metadata: map[string]map[string]*string{
			"trymygold/gold_earrings/a.png": {"Width": aws.String("300"), "Height": aws.String("600")},
		},
	}
	c := &S3Catalog{
		Client:         mock,
		Bucket:         "assets",
		Prefix:         "/trymygold/",
		PublicBaseURL:  "https://cdn.example",
		ReadDimensions: true,
	}

	items, err := c.List(context.Background(), "gold_earrings")
	require.NoError(t, err)

	want := []Item{
		{PublicID: "gold_earrings/a", Src: "https://cdn.example/trymygold/gold_earrings/a.png", Format: "png", Width: 300, Height: 600},
		{PublicID: "gold_earrings/c", Src: "https://cdn.example/trymygold/gold_earrings/c.webp", Format: "webp"},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, mock.inputs, 1)
	assert.Equal(t, "trymygold/gold_earrings/", aws.StringValue(mock.inputs[0].Prefix))
	assert.Equal(t, "assets", aws.StringValue(mock.inputs[0].Bucket))
}

func TestS3Catalog_Presigns(t *testing.T) {
	t.Parallel()

	mock := &mockS3{
		pages:   [][]string{{"gold_necklace/choker.png"}},
		presign: offlineS3(t),
	}
	c := &S3Catalog{Client: mock, Bucket: "assets"}

	items, err := c.List(context.Background(), "gold_necklace")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Src, "choker.png")
	assert.Contains(t, items[0].Src, "X-Amz-Signature=")
	assert.Contains(t, items[0].Src, "X-Amz-Expires=900")
}

func TestS3Catalog_CapsListing(t *testing.T) {
	t.Parallel()

	var keys []string
	for i := 0; i < MaxItems+20; i++ {
		keys = append(keys, fmt.Sprintf("f/item%04d.png", i))
	}
	mock := &mockS3{pages: [][]string{keys[:300], keys[300:]}}
	c := &S3Catalog{Client: mock, Bucket: "b", PublicBaseURL: "https://cdn"}

	items, err := c.List(context.Background(), "f")
	require.NoError(t, err)
	assert.Len(t, items, MaxItems)
}

func TestS3Catalog_Errors(t *testing.T) {
	t.Parallel()

	mock := &mockS3{listErr: errors.New("AccessDenied")}
	c := &S3Catalog{Client: mock, Bucket: "b"}

	_, err := c.List(context.Background(), "gold_earrings")
	assert.ErrorContains(t, err, "AccessDenied")

	_, err = c.List(context.Background(), "../x")
	assert.ErrorIs(t, err, ErrInvalidFolder)
}

func TestNewS3Catalog_RequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewS3Catalog(S3Config{Region: "ap-south-1"})
	assert.Error(t, err)

	c, err := NewS3Catalog(S3Config{Region: "ap-south-1", Bucket: "assets", AccessKeyID: "a", SecretAccessKey: "b", Endpoint: "http://localhost:9000"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPresignTTL, c.PresignTTL)
}
