package appstore

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-plist"
)

type zipEntry struct {
	name string
	data []byte
}

func writeTestPackage(t *testing.T, entries []zipEntry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.ipa")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	return path
}

func readTestPackage(t *testing.T, path string) map[string][]byte {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	out := make(map[string][]byte)
	for _, file := range zr.File {
		r, err := file.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[file.Name] = data
	}
	return out
}

func manifestPlist(t *testing.T, paths ...string) []byte {
	t.Helper()
	return plistBody(t, &packageManifest{SinfPaths: paths})
}

func infoPlist(t *testing.T, executable string) []byte {
	t.Helper()
	return plistBody(t, &packageInfo{BundleExecutable: executable})
}

func TestReplicateSinfFromManifest(t *testing.T) {
	as := newTestAppStore(t)

	pkg := writeTestPackage(t, []zipEntry{
		{"Payload/Demo.app/Info.plist", infoPlist(t, "Demo")},
		{"Payload/Demo.app/SC_Info/Manifest.plist", manifestPlist(t, "SC_Info/Demo.sinf", "PlugIns/Ext.appex/SC_Info/Ext.sinf")},
		{"Payload/Demo.app/Demo", []byte("binary")},
	})

	sinfs := []Sinf{
		{ID: 0, Data: []byte("main-sinf")},
		{ID: 1, Data: []byte("ext-sinf")},
	}
	if err := as.ReplicateSinf(pkg, sinfs); err != nil {
		t.Fatalf("ReplicateSinf() error = %v", err)
	}

	entries := readTestPackage(t, pkg)
	if got := entries["Payload/Demo.app/SC_Info/Demo.sinf"]; !bytes.Equal(got, []byte("main-sinf")) {
		t.Errorf("main sinf = %q, want %q", got, "main-sinf")
	}
	if got := entries["Payload/Demo.app/PlugIns/Ext.appex/SC_Info/Ext.sinf"]; !bytes.Equal(got, []byte("ext-sinf")) {
		t.Errorf("extension sinf = %q, want %q", got, "ext-sinf")
	}
	// original entries survive untouched
	if got := entries["Payload/Demo.app/Demo"]; !bytes.Equal(got, []byte("binary")) {
		t.Errorf("binary entry = %q, want preserved", got)
	}
	// no stray temp file left behind
	if _, err := os.Stat(pkg + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file still present after replication")
	}
}

func TestReplicateSinfManifestTruncates(t *testing.T) {
	as := newTestAppStore(t)

	pkg := writeTestPackage(t, []zipEntry{
		{"Payload/Demo.app/Info.plist", infoPlist(t, "Demo")},
		{"Payload/Demo.app/SC_Info/Manifest.plist", manifestPlist(t, "SC_Info/Demo.sinf", "SC_Info/Second.sinf")},
	})

	if err := as.ReplicateSinf(pkg, []Sinf{{Data: []byte("only")}}); err != nil {
		t.Fatalf("ReplicateSinf() error = %v", err)
	}

	entries := readTestPackage(t, pkg)
	if _, ok := entries["Payload/Demo.app/SC_Info/Demo.sinf"]; !ok {
		t.Errorf("first sinf not written")
	}
	if _, ok := entries["Payload/Demo.app/SC_Info/Second.sinf"]; ok {
		t.Errorf("sinf written without matching signature")
	}
}

func TestReplicateSinfFallbackToInfoPlist(t *testing.T) {
	as := newTestAppStore(t)

	pkg := writeTestPackage(t, []zipEntry{
		{"Payload/Demo.app/Info.plist", infoPlist(t, "Demo")},
		{"Payload/Demo.app/Demo", []byte("binary")},
	})

	if err := as.ReplicateSinf(pkg, []Sinf{{Data: []byte("main-sinf")}}); err != nil {
		t.Fatalf("ReplicateSinf() error = %v", err)
	}

	entries := readTestPackage(t, pkg)
	if got := entries["Payload/Demo.app/SC_Info/Demo.sinf"]; !bytes.Equal(got, []byte("main-sinf")) {
		t.Errorf("fallback sinf = %q, want %q", got, "main-sinf")
	}
}

func TestReplicateSinfWatchInfoPlistIgnored(t *testing.T) {
	as := newTestAppStore(t)

	pkg := writeTestPackage(t, []zipEntry{
		{"Payload/Demo.app/Watch/Companion.app/Info.plist", infoPlist(t, "Companion")},
		{"Payload/Demo.app/Info.plist", infoPlist(t, "Demo")},
	})

	if err := as.ReplicateSinf(pkg, []Sinf{{Data: []byte("main-sinf")}}); err != nil {
		t.Fatalf("ReplicateSinf() error = %v", err)
	}

	entries := readTestPackage(t, pkg)
	if _, ok := entries["Payload/Demo.app/SC_Info/Demo.sinf"]; !ok {
		t.Errorf("sinf not derived from the outer bundle")
	}
	if _, ok := entries["Payload/Companion.app/SC_Info/Companion.sinf"]; ok {
		t.Errorf("sinf derived from the companion bundle")
	}
}

func TestReplicateSinfFailuresLeaveArchiveUntouched(t *testing.T) {
	tests := []struct {
		name     string
		entries  []zipEntry
		sinfs    []Sinf
		wantKind ErrorKind
	}{
		{
			name:     "no manifest or info plist",
			entries:  []zipEntry{{"Payload/Demo.app/Demo", []byte("binary")}},
			sinfs:    []Sinf{{Data: []byte("x")}},
			wantKind: ErrNoManifestOrInfoPlist,
		},
		{
			name:     "no sinfs for fallback",
			entries:  []zipEntry{{"Payload/Demo.app/Info.plist", infoPlist(t, "Demo")}},
			sinfs:    nil,
			wantKind: ErrMissingSignature,
		},
		{
			name:     "info plist without executable",
			entries:  []zipEntry{{"Payload/Demo.app/Info.plist", infoPlist(t, "")}},
			sinfs:    []Sinf{{Data: []byte("x")}},
			wantKind: ErrMissingExecutableName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := newTestAppStore(t)
			pkg := writeTestPackage(t, tt.entries)

			before, err := os.ReadFile(pkg)
			if err != nil {
				t.Fatal(err)
			}

			if err := as.ReplicateSinf(pkg, tt.sinfs); !IsKind(err, tt.wantKind) {
				t.Fatalf("ReplicateSinf() error = %v, want kind %v", err, tt.wantKind)
			}

			after, err := os.ReadFile(pkg)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(before, after) {
				t.Errorf("archive was modified on failure")
			}
			if _, err := os.Stat(pkg + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temp file left behind on failure")
			}
		})
	}
}

func TestApplyAccountMetadata(t *testing.T) {
	source := writeTestPackage(t, []zipEntry{
		{"Payload/Demo.app/Info.plist", infoPlist(t, "Demo")},
		{"Payload/Demo.app/Demo", []byte("binary")},
	})
	destination := filepath.Join(t.TempDir(), "out", "demo.ipa")

	metadata := map[string]any{"bundleShortVersionString": "1.0"}
	if err := applyAccountMetadata(source, destination, metadata, testAccount()); err != nil {
		t.Fatalf("applyAccountMetadata() error = %v", err)
	}

	entries := readTestPackage(t, destination)
	if got := entries["Payload/Demo.app/Demo"]; !bytes.Equal(got, []byte("binary")) {
		t.Errorf("binary entry = %q, want preserved", got)
	}

	raw, ok := entries["iTunesMetadata.plist"]
	if !ok {
		t.Fatal("iTunesMetadata.plist missing from repackaged archive")
	}
	var meta map[string]any
	if _, err := plist.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("failed to unmarshal iTunesMetadata.plist: %v", err)
	}
	if meta["apple-id"] != "user@example.com" || meta["userName"] != "user@example.com" {
		t.Errorf("account binding = %v/%v", meta["apple-id"], meta["userName"])
	}
	if meta["bundleShortVersionString"] != "1.0" {
		t.Errorf("server metadata not carried over: %v", meta)
	}

	// source package must not gain the metadata entry
	if _, ok := readTestPackage(t, source)["iTunesMetadata.plist"]; ok {
		t.Errorf("source archive was modified")
	}
}
