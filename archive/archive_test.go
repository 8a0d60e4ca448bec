package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2022, 3, 17, 10, 0, 0, 0, time.UTC)

func TestObjectKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2022/03/RUN1-export.csv", objectKey(fixed, "RUN1", "/tmp/x/export.csv"))
}

func TestDirArchive(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := NewDir(root)
	d.now = func() time.Time { return fixed }

	loc, err := d.Archive(context.Background(), "RUN1", "export.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2022", "03", "RUN1-export.csv"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

type fakeUploader struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.body, _ = io.ReadAll(in.Body)
	return &manager.UploadOutput{}, nil
}

func TestS3Archive(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{}
	a := &S3{up: up, bucket: "exports", prefix: "optrack", now: func() time.Time { return fixed }}

	loc, err := a.Archive(context.Background(), "RUN1", "export.csv", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/optrack/2022/03/RUN1-export.csv", loc)
	assert.Equal(t, "exports", up.bucket)
	assert.Equal(t, "optrack/2022/03/RUN1-export.csv", up.key)
	assert.Equal(t, "data", string(up.body))

	up.err = errors.New("denied")
	_, err = a.Archive(context.Background(), "RUN2", "export.csv", nil)
	assert.ErrorContains(t, err, "denied")
}

func TestNewS3Validates(t *testing.T) {
	t.Parallel()

	_, err := NewS3(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = NewS3(context.Background(), S3Config{Bucket: "b"})
	assert.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://minio.local:9000", normaliseEndpoint("https://minio.local:9000", false))
	assert.Equal(t, "http://127.0.0.1:9000", normaliseEndpoint("127.0.0.1:9000", false))
	assert.Equal(t, "https://minio.local", normaliseEndpoint("minio.local", true))
}

func TestXZRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := NewDir(root)
	d.now = func() time.Time { return fixed }

	raw := []byte("Date,Action\n03/17/2022,Sell to Open\n")
	loc, err := XZ{Inner: d}.Archive(context.Background(), "RUN1", "export.csv", raw)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2022", "03", "RUN1-export.csv.xz"), loc)

	f, err := os.Open(loc)
	require.NoError(t, err)
	defer f.Close()

	r, err := OpenExport(loc, f)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestOpenExportPlain(t *testing.T) {
	t.Parallel()

	src := strings.NewReader("a,b\n")
	r, err := OpenExport("export.csv", src)
	require.NoError(t, err)
	assert.Same(t, src, r)
}
