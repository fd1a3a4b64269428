package output

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipescrape/recipescrape/internal/config"
	"github.com/recipescrape/recipescrape/pkg/errors"
)

func TestLocalSink_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	sink := NewLocalSink(dir, nil)

	require.NoError(t, sink.Write(context.Background(), "easy-dinner.txt", []byte("a\nb")))

	data, err := os.ReadFile(filepath.Join(dir, "easy-dinner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(data))

	// Overwrites
	require.NoError(t, sink.Write(context.Background(), "easy-dinner.txt", []byte("c")))
	data, _ = os.ReadFile(filepath.Join(dir, "easy-dinner.txt"))
	assert.Equal(t, "c", string(data))
}

func TestLocalSink_RejectsUnsafeNames(t *testing.T) {
	dir := t.TempDir()
	sink := NewLocalSink(dir, nil)

	for _, name := range []string{"", "..", "../escape.txt", "a/b.txt", ".hidden"} {
		err := sink.Write(context.Background(), name, []byte("x"))
		assert.True(t, errors.HasCode(err, errors.ErrCodeOutputWrite), "name %q", name)
	}
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestLocalSink_DirectoryIsAFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	sink := NewLocalSink(filepath.Join(parent, "outputs"), nil)
	err := sink.Write(context.Background(), "a.txt", []byte("x"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutputWrite))
}

func TestNamespaced(t *testing.T) {
	mem := NewMemorySink()
	sink := Namespaced(mem, "bbcgoodfood")

	require.NoError(t, sink.Write(context.Background(), "easy-dinner.txt", []byte("x")))

	got, ok := mem.Get("bbcgoodfood-easy-dinner.txt")
	assert.True(t, ok)
	assert.Equal(t, "x", got)
	assert.Equal(t, []string{"bbcgoodfood-easy-dinner.txt"}, mem.Names())
}

func TestMulti(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	require.NoError(t, Multi(a, b).Write(context.Background(), "f.txt", []byte("1")))

	_, okA := a.Get("f.txt")
	_, okB := b.Get("f.txt")
	assert.True(t, okA)
	assert.True(t, okB)

	err := Multi(a, b).Write(context.Background(), "", nil)
	assert.Error(t, err)
}

type fakePutter struct {
	mu    sync.Mutex
	input []*s3.PutObjectInput
	body  []string
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.input = append(f.input, in)
	f.body = append(f.body, string(data))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Write(t *testing.T) {
	fake := &fakePutter{}
	sink := NewS3SinkWithClient(fake, "recipes", "/runs/2024/", nil)

	require.NoError(t, sink.Write(context.Background(), "mealie-foods.txt", []byte("garlic")))

	require.Len(t, fake.input, 1)
	in := fake.input[0]
	assert.Equal(t, "recipes", aws.ToString(in.Bucket))
	assert.Equal(t, "runs/2024/mealie-foods.txt", aws.ToString(in.Key))
	assert.Equal(t, "text/plain; charset=utf-8", aws.ToString(in.ContentType))
	assert.Equal(t, int64(6), aws.ToInt64(in.ContentLength))
	assert.Equal(t, "garlic", fake.body[0])

	assert.Equal(t, "x.txt", NewS3SinkWithClient(fake, "b", "", nil).Key("x.txt"))
}

func TestS3Sink_WriteError(t *testing.T) {
	fake := &fakePutter{err: fmt.Errorf("access denied")}
	sink := NewS3SinkWithClient(fake, "recipes", "", nil)

	err := sink.Write(context.Background(), "a.txt", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutputWrite))
	assert.Contains(t, err.Error(), "failed to write output")
}

func TestNewS3Sink_Validation(t *testing.T) {
	_, err := NewS3Sink(context.Background(), config.S3Config{}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))

	_, err = NewS3Sink(context.Background(), config.S3Config{Bucket: "b", AccessKeyID: "only-id"}, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCredentialsMissing))
}

func TestNewS3Sink_CustomEndpoint(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink, err := NewS3Sink(context.Background(), config.S3Config{
		Bucket:          "recipes",
		Prefix:          "outputs",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		ForcePathStyle:  true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), "recipetineats-chicken.txt", []byte("url")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/recipes/outputs/recipetineats-chicken.txt", path)
	assert.True(t, strings.Contains(body, "url"))
}
