package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/basel-ax/leonardo-publisher/internal/config"
	"github.com/basel-ax/leonardo-publisher/internal/infrastructure/github"
	"github.com/basel-ax/leonardo-publisher/internal/infrastructure/objectstore"
)

// fakeLeonardo serves submissions, a pending-then-complete status per job
// and the image bytes.
func fakeLeonardo(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	polls := map[string]int{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/generations":
			var req struct {
				Width  int `json:"width"`
				Height int `json:"height"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Width == 1224 {
				w.Write([]byte(`{"sdGenerationJob":{"generationId":"wide"}}`))
				return
			}
			w.Write([]byte(`{"sdGenerationJob":{"generationId":"square"}}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/generations/"):
			id := strings.TrimPrefix(r.URL.Path, "/generations/")
			polls[id]++
			if polls[id] == 1 {
				w.Write([]byte(`{"generations_by_pk":{"status":"PENDING","generated_images":[]}}`))
				return
			}
			w.Write([]byte(`{"generations_by_pk":{"status":"COMPLETE","generated_images":[{"url":"` + srv.URL + `/img/` + id + `.jpg"}]}}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/img/"):
			w.Write([]byte("jpeg:" + r.URL.Path))
		default:
			t.Errorf("unexpected leonardo request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return srv
}

func TestNewImageGenerationService_EndToEnd(t *testing.T) {
	leo := fakeLeonardo(t)
	defer leo.Close()

	var mu sync.Mutex
	var uploaded []string
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		uploaded = append(uploaded, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer gh.Close()

	t.Setenv("LEONARDO_API_KEY", "key")
	t.Setenv("LEONARDO_MODEL_ID", "model")
	t.Setenv("LEONARDO_BASE_URL", leo.URL)
	t.Setenv("GITHUB_TOKEN", "token")
	t.Setenv("GITHUB_API_URL", gh.URL)
	t.Setenv("GITHUB_TARGET_REPOSITORY", "modelearth/requests")
	t.Setenv("GITHUB_UPLOAD_PATH", "images/leonardo")
	t.Setenv("POLL_INTERVAL", "1ms")

	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	svc, err := NewImageGenerationService(cfg, nil)
	if err != nil {
		t.Fatalf("NewImageGenerationService: %v", err)
	}

	report, err := svc.Run(context.Background(), "a red bicycle")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Jobs) != 2 || report.Jobs[0].ID != "square" || report.Jobs[1].ID != "wide" {
		t.Fatalf("jobs=%+v; want square then wide", report.Jobs)
	}

	want := []string{
		"/repos/modelearth/requests/contents/images/leonardo/image_0.jpeg",
		"/repos/modelearth/requests/contents/images/leonardo/image_1.jpeg",
	}
	if len(uploaded) != len(want) {
		t.Fatalf("uploaded=%v; want %v", uploaded, want)
	}
	for i := range want {
		if uploaded[i] != want[i] {
			t.Fatalf("uploaded[%d]=%s; want %s", i, uploaded[i], want[i])
		}
	}
}

func TestNewPublisher_SelectsTarget(t *testing.T) {
	cfg := &config.Config{PublishTarget: config.TargetGitHub}
	cfg.GitHub.Token = "t"
	cfg.GitHub.Repository = "o/r"

	pub, err := NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher(github): %v", err)
	}
	if _, ok := pub.(*github.Client); !ok {
		t.Fatalf("publisher=%T; want *github.Client", pub)
	}

	cfg = &config.Config{PublishTarget: config.TargetMinio}
	cfg.Minio.Endpoint = "localhost:9000"
	cfg.Minio.Bucket = "b"

	pub, err = NewPublisher(cfg)
	if err != nil {
		t.Fatalf("NewPublisher(minio): %v", err)
	}
	if _, ok := pub.(*objectstore.Store); !ok {
		t.Fatalf("publisher=%T; want *objectstore.Store", pub)
	}

	if _, err := NewPublisher(&config.Config{PublishTarget: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown target")
	}
}
