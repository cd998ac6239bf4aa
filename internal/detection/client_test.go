package detection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moodcam/internal/emotion"
)

func newTestService(t *testing.T, detectBody, classifyBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","device":"cpu","model_loaded":true}`))
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file part", http.StatusBadRequest)
			return
		}
		w.Write([]byte(detectBody))
	})
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(classifyBody))
	})
	return httptest.NewServer(mux)
}

func TestClientLocateFaces(t *testing.T) {
	srv := newTestService(t,
		`{"faces":[{"bbox":[10,20,30,40],"confidence":0.9},{"bbox":[5,5,80,80],"confidence":0.8}],"count":2,"inference_time_ms":4.2,"device":"cpu"}`,
		`{}`)
	defer srv.Close()

	c := NewClient(ClientConfig{Enabled: true, Endpoint: srv.URL, Timeout: 2 * time.Second})

	boxes, err := c.LocateFaces(context.Background(), []byte("jpegdata"))
	if err != nil {
		t.Fatalf("LocateFaces() error: %v", err)
	}
	if len(boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(boxes))
	}
	want := Box{X: 10, Y: 20, Width: 30, Height: 40}
	if boxes[0] != want {
		t.Errorf("boxes[0] = %+v, want %+v", boxes[0], want)
	}
}

func TestClientClassify(t *testing.T) {
	srv := newTestService(t, `{}`,
		`{"emotion":"happy","confidence":0.87,"predictions":{"happy":0.87,"neutral":0.1},"inference_time_ms":11.5,"device":"cpu"}`)
	defer srv.Close()

	c := NewClient(ClientConfig{Enabled: true, Endpoint: srv.URL})

	label, err := c.Classify(context.Background(), []byte("cropdata"))
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if label != emotion.LabelHappy {
		t.Errorf("Classify() = %s, want %s", label, emotion.LabelHappy)
	}
}

func TestClientClassifyRejectsUnknownLabel(t *testing.T) {
	srv := newTestService(t, `{}`, `{"emotion":"confused","confidence":0.5}`)
	defer srv.Close()

	c := NewClient(ClientConfig{Enabled: true, Endpoint: srv.URL})

	if _, err := c.Classify(context.Background(), []byte("cropdata")); err == nil {
		t.Error("Classify accepted a label outside the vocabulary")
	}
}

func TestClientDisabled(t *testing.T) {
	c := NewClient(ClientConfig{Enabled: false, Endpoint: "http://127.0.0.1:0"})

	if _, err := c.LocateFaces(context.Background(), nil); err != ErrServiceUnavailable {
		t.Errorf("LocateFaces() error = %v, want ErrServiceUnavailable", err)
	}
	if _, err := c.Classify(context.Background(), nil); err != ErrServiceUnavailable {
		t.Errorf("Classify() error = %v, want ErrServiceUnavailable", err)
	}
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Enabled: true, Endpoint: srv.URL})

	if _, err := c.LocateFaces(context.Background(), []byte("x")); err == nil {
		t.Error("LocateFaces() succeeded against a failing service")
	}
	if err := c.CheckHealth(); err == nil {
		t.Error("CheckHealth() succeeded against a failing service")
	}
}

func TestCheckHealthBoundedWhenServiceHangs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never answer; hold the request until the probe gives up.
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Enabled: true, Endpoint: srv.URL, Timeout: 30 * time.Second})

	start := time.Now()
	err := c.CheckHealth()
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("CheckHealth() succeeded against a hung service")
	}
	// The probe must be bounded well below the client's request timeout.
	if elapsed >= 10*time.Second {
		t.Errorf("CheckHealth() took %v against a hung service", elapsed)
	}
	if start2 := time.Now(); c.IsHealthy() {
		t.Error("IsHealthy() = true after a failed probe")
	} else if cached := time.Since(start2); cached >= time.Second {
		t.Errorf("IsHealthy() re-probed a fresh failure (took %v)", cached)
	}
}

func TestLargest(t *testing.T) {
	tests := []struct {
		name  string
		boxes []Box
		want  Box
		ok    bool
	}{
		{
			name: "empty",
			ok:   false,
		},
		{
			name:  "largest area wins regardless of order",
			boxes: []Box{{X: 0, Y: 0, Width: 20, Height: 20}, {X: 5, Y: 5, Width: 40, Height: 40}},
			want:  Box{X: 5, Y: 5, Width: 40, Height: 40},
			ok:    true,
		},
		{
			name:  "tie broken by first encountered",
			boxes: []Box{{X: 1, Y: 1, Width: 10, Height: 10}, {X: 2, Y: 2, Width: 10, Height: 10}},
			want:  Box{X: 1, Y: 1, Width: 10, Height: 10},
			ok:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Largest(tt.boxes)
			if ok != tt.ok {
				t.Fatalf("Largest() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Largest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
