package offsite

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vault-backup/internal/vb"
)

// fakeS3 serves the handful of path-style object calls S3Store makes.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.objects[key] = nil
		f.metadata[key] = r.Header.Get("X-Amz-Meta-Version")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if key == "bucket" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("X-Amz-Meta-Version", f.metadata[key])
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Store(context.Background(), "s3", S3Options{
		Bucket:          "bucket",
		Prefix:          "/vault/",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Store() error = %v", err)
	}
	return s
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{
		objects:  map[string][]byte{"bucket/vault/runs.db": []byte("stored ledger")},
		metadata: map[string]string{"bucket/vault/runs.db": "9"},
	}
	s := newTestS3Store(t, fake)

	t.Run("key uses trimmed prefix", func(t *testing.T) {
		if got := s.key("runs.db"); got != "vault/runs.db" {
			t.Errorf("key() = %q, want %q", got, "vault/runs.db")
		}
	})

	t.Run("get existing", func(t *testing.T) {
		var buf bytes.Buffer
		if err := s.Get("runs.db", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "stored ledger" {
			t.Errorf("Get() = %q, want %q", buf.String(), "stored ledger")
		}
	})

	t.Run("get missing", func(t *testing.T) {
		var buf bytes.Buffer
		if err := s.Get("other.db", &buf); !errors.Is(err, vb.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("version", func(t *testing.T) {
		v, err := s.Version("runs.db")
		if err != nil || v != 9 {
			t.Errorf("Version() = %d, %v, want 9, nil", v, err)
		}
		v, err = s.Version("other.db")
		if err != nil || v != 0 {
			t.Errorf("Version(missing) = %d, %v, want 0, nil", v, err)
		}
	})

	t.Run("put sends version metadata", func(t *testing.T) {
		data := "new ledger"
		if err := s.Put("next.db", strings.NewReader(data), int64(len(data)), 21); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		fake.mu.Lock()
		got := fake.metadata["bucket/vault/next.db"]
		fake.mu.Unlock()
		if got != "21" {
			t.Errorf("uploaded version metadata = %q, want %q", got, "21")
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := s.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), "s3", S3Options{Region: "us-east-1"}); err == nil {
		t.Error("NewS3Store() expected error without bucket")
	}
}
