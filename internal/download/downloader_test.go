package download

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func contentServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.bin", time.Now(), bytes.NewReader(content))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadDo(t *testing.T) {
	content := []byte(strings.Repeat("0123456789", 1000))
	srv := contentServer(t, content)

	dest := filepath.Join(t.TempDir(), "out", "file.bin")

	d := NewDownload("", false, false)
	d.URL = srv.URL
	d.DestName = dest

	if err := d.Do(); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded %d bytes, want %d and identical content", len(got), len(content))
	}
}

func TestDownloadResume(t *testing.T) {
	content := []byte(strings.Repeat("0123456789", 1000))
	var ranges []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			ranges = append(ranges, r.Header.Get("Range"))
		}
		http.ServeContent(w, r, "file.bin", time.Now(), bytes.NewReader(content))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(dest, content[:4000], 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDownload("", false, false)
	d.URL = srv.URL
	d.DestName = dest

	if err := d.Do(); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if len(ranges) != 1 || ranges[0] != "bytes=4000-" {
		t.Errorf("Range headers = %v, want [bytes=4000-]", ranges)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("resumed file is %d bytes, want %d and identical content", len(got), len(content))
	}
}

func TestDownloadRangeIgnoredRestartsFromScratch(t *testing.T) {
	content := []byte(strings.Repeat("abcdef", 500))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ignore any Range header and send the whole file with a 200
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		if r.Method != "HEAD" {
			w.Write(content)
		}
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(dest, []byte("stale partial data"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDownload("", false, false)
	d.URL = srv.URL
	d.DestName = dest

	if err := d.Do(); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("file is %d bytes, want full restart with %d", len(got), len(content))
	}
}

func TestDownloadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownload("", false, false)
	d.URL = srv.URL
	d.DestName = filepath.Join(t.TempDir(), "file.bin")

	if err := d.Do(); err == nil {
		t.Fatal("Do() error = nil, want failure on 404")
	}
}
