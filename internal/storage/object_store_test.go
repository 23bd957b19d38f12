package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 understands just enough of the S3 API for PutObject and
// ListObjectsV2 with path-style addressing.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	headers map[string]http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/reports"), "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = string(body)
		f.headers[key] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		prefix := r.URL.Query().Get("prefix")
		var contents strings.Builder
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				fmt.Fprintf(&contents, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-05-17T10:00:00.000Z</LastModified></Contents>", k, len(f.objects[k]))
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>reports</Name><Prefix>%s</Prefix><IsTruncated>false</IsTruncated>%s</ListBucketResult>`, prefix, contents.String())
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestNewObjectStoreValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing endpoint", Config{Bucket: "reports"}},
		{"missing bucket", Config{Endpoint: "http://localhost"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewObjectStore(context.Background(), tc.cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestObjectStoreSaveListAndSign(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, headers: map[string]http.Header{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	store, err := NewObjectStore(context.Background(), Config{
		Endpoint:        server.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "reports",
		KeyPrefix:       "/prod/",
		LinkTTL:         5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.SaveReport(ctx, "/counters/resets/2024-05-17/all-1.pdf", []byte("%PDF-1.3"), map[string]string{"actor": "ops"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveReport(ctx, "counters/resets/2024-05-16/all-2.pdf", []byte("%PDF-1.3"), nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	headers := fake.headers["prod/counters/resets/2024-05-17/all-1.pdf"]
	if headers == nil {
		t.Fatalf("expected object under prefixed key, got %v", fake.objects)
	}
	if headers.Get("Content-Type") != "application/pdf" || headers.Get("X-Amz-Meta-Actor") != "ops" {
		t.Fatalf("unexpected headers %v", headers)
	}

	objects, err := store.ListReports(ctx, "counters/resets/2024-05-17/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "counters/resets/2024-05-17/all-1.pdf" || objects[0].Size == 0 {
		t.Fatalf("unexpected objects %+v", objects)
	}

	link, err := store.DownloadURL(ctx, objects[0].Key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.Contains(link, "/reports/prod/counters/resets/2024-05-17/all-1.pdf") || !strings.Contains(link, "X-Amz-Expires=300") {
		t.Fatalf("unexpected link %s", link)
	}
}
