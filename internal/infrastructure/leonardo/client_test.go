package leonardo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

func TestCreateGeneration_SendsPayloadAndParsesJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generations" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization=%q; want Bearer key-1", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["prompt"] != "a red bicycle" || body["modelId"] != "model-1" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["width"] != float64(1224) || body["height"] != float64(512) {
			t.Errorf("unexpected dimensions: %v", body)
		}
		w.Write([]byte(`{"sdGenerationJob":{"generationId":"gen-1","apiCreditCost":8}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key-1", time.Second)
	job, err := c.CreateGeneration(context.Background(), domain.GenerationRequest{
		Width: 1224, Height: 512, ModelID: "model-1", Prompt: "a red bicycle",
	})
	if err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}
	if job.ID != "gen-1" {
		t.Fatalf("job.ID=%q; want gen-1", job.ID)
	}
	if job.Dimensions != (domain.Dimensions{Width: 1224, Height: 512}) {
		t.Fatalf("job.Dimensions=%v; want 1224x512", job.Dimensions)
	}
}

func TestCreateGeneration_NonOKReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid dimensions"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	_, err := c.CreateGeneration(context.Background(), domain.GenerationRequest{Width: 1, Height: 1})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v; want *domain.APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("StatusCode=%d; want 400", apiErr.StatusCode)
	}
	if apiErr.Body != `{"error":"invalid dimensions"}` {
		t.Fatalf("Body=%q; want raw body", apiErr.Body)
	}
}

func TestCreateGeneration_MissingJobIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	_, err := c.CreateGeneration(context.Background(), domain.GenerationRequest{})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("err=%v; want ErrMalformedResponse", err)
	}
}

func TestGetGeneration_ParsesStatusAndImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/generations/gen-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"generations_by_pk":{"id":"gen-1","status":"COMPLETE","generated_images":[{"id":"a","url":"https://cdn/a.jpg"},{"id":"b","url":"https://cdn/b.jpg"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	status, err := c.GetGeneration(context.Background(), "gen-1")
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if status.Pending() {
		t.Fatalf("status pending; want complete")
	}
	want := []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}
	if len(status.Images) != len(want) {
		t.Fatalf("images=%d; want %d", len(status.Images), len(want))
	}
	for i, img := range status.Images {
		if img.URL != want[i] || img.JobID != "gen-1" {
			t.Fatalf("images[%d]=%+v; want %s from gen-1", i, img, want[i])
		}
	}
}

func TestGetGeneration_PendingHasNoImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"generations_by_pk":{"status":"PENDING","generated_images":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	status, err := c.GetGeneration(context.Background(), "gen-2")
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if !status.Pending() || len(status.Images) != 0 {
		t.Fatalf("status=%+v; want pending without images", status)
	}
}

func TestDownloadImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer srv.Close()

	c := NewClient("", "key", time.Second)
	data, err := c.DownloadImage(context.Background(), srv.URL+"/a.jpg")
	if err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	if len(data) != 3 {
		t.Fatalf("len=%d; want 3", len(data))
	}

	_, err = c.DownloadImage(context.Background(), srv.URL+"/missing.jpg")
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err=%v; want 404 APIError", err)
	}
}

func TestGetGeneration_EscapesJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generations/gen?1#a" || r.URL.RawQuery != "" {
			t.Errorf("path=%q query=%q; want the whole id in the path", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"generations_by_pk":{"status":"PENDING","generated_images":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	if _, err := c.GetGeneration(context.Background(), "gen?1#a"); err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
}
