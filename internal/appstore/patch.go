package appstore

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/blacktop/go-plist"
)

type packageManifest struct {
	SinfPaths []string `plist:"SinfPaths,omitempty"`
}

type packageInfo struct {
	BundleExecutable string `plist:"CFBundleExecutable,omitempty"`
}

// replicateRaw copies every entry of src into dst byte-for-byte, preserving
// compression mode, external attributes and timestamps. While walking it
// captures the signature manifest, the app bundle's Info.plist and the bundle
// name for the sinf patching that follows.
//
// A package may carry a companion-device sub-app with its own Info.plist
// under a /Watch/ path; those never name the outer bundle.
func replicateRaw(src *zip.ReadCloser, dst *zip.Writer) (bundleName string, manifestData, infoData []byte, err error) {
	for _, file := range src.File {
		if strings.HasSuffix(file.Name, ".app/SC_Info/Manifest.plist") && manifestData == nil {
			manifestData, err = readZipEntry(file)
			if err != nil {
				return "", nil, nil, err
			}
		}

		if strings.HasSuffix(file.Name, ".app/Info.plist") && !strings.Contains(file.Name, "/Watch/") && infoData == nil {
			infoData, err = readZipEntry(file)
			if err != nil {
				return "", nil, nil, err
			}
			bundleName = filepath.Base(strings.TrimSuffix(file.Name, ".app/Info.plist"))
		}

		srcFile, err := file.OpenRaw()
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to open source entry %s: %v", file.Name, err)
		}

		header := file.FileHeader
		dstFile, err := dst.CreateRaw(&header)
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to create destination entry %s: %v", file.Name, err)
		}

		if _, err := io.Copy(dstFile, srcFile); err != nil {
			return "", nil, nil, fmt.Errorf("failed to copy entry %s: %v", file.Name, err)
		}
	}

	return bundleName, manifestData, infoData, nil
}

func readZipEntry(file *zip.File) ([]byte, error) {
	r, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %v", file.Name, err)
	}
	defer r.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %v", file.Name, err)
	}
	return buf.Bytes(), nil
}

// applyAccountMetadata rewrites the downloaded archive into destination,
// appending an iTunesMetadata.plist that binds the package to the account.
func applyAccountMetadata(source, destination string, metadata map[string]any, account *Account) error {
	if dir := filepath.Dir(destination); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create destination directory: %v", err)
		}
	}

	srcZip, err := zip.OpenReader(source)
	if err != nil {
		return fmt.Errorf("failed to open source package: %v", err)
	}
	defer srcZip.Close()

	dstFile, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create destination package: %v", err)
	}
	defer dstFile.Close()

	dstZip := zip.NewWriter(dstFile)

	if _, _, _, err := replicateRaw(srcZip, dstZip); err != nil {
		dstZip.Close()
		return err
	}

	if err := writeAccountMetadata(dstZip, metadata, account); err != nil {
		dstZip.Close()
		return err
	}

	if err := dstZip.Close(); err != nil {
		return fmt.Errorf("failed to finalize destination package: %v", err)
	}

	return dstFile.Sync()
}

func writeAccountMetadata(dst *zip.Writer, metadata map[string]any, account *Account) error {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["apple-id"] = account.Email
	meta["userName"] = account.Email

	data, err := plist.Marshal(meta, plist.BinaryFormat)
	if err != nil {
		return fmt.Errorf("failed to marshal iTunesMetadata.plist: %v", err)
	}

	w, err := dst.Create("iTunesMetadata.plist")
	if err != nil {
		return fmt.Errorf("failed to create iTunesMetadata.plist: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write iTunesMetadata.plist: %v", err)
	}

	return nil
}

// ReplicateSinf injects the per-device signature blobs into an already
// repackaged archive, in place. The rewrite goes to a temp file first and is
// swapped in with a rename only once fully flushed; on any failure the
// original package is left untouched.
func (as *AppStore) ReplicateSinf(packagePath string, sinfs []Sinf) error {
	temp := packagePath + ".tmp"

	if err := replicateSinf(packagePath, temp, sinfs); err != nil {
		os.Remove(temp)
		return err
	}

	return os.Rename(temp, packagePath)
}

func replicateSinf(packagePath, temp string, sinfs []Sinf) error {
	srcZip, err := zip.OpenReader(packagePath)
	if err != nil {
		return fmt.Errorf("failed to open package: %v", err)
	}
	defer srcZip.Close()

	dstFile, err := os.Create(temp)
	if err != nil {
		return fmt.Errorf("failed to create temp package: %v", err)
	}
	defer dstFile.Close()

	dstZip := zip.NewWriter(dstFile)
	defer dstZip.Close()

	bundleName, manifestData, infoData, err := replicateRaw(srcZip, dstZip)
	if err != nil {
		return err
	}

	if len(manifestData) == 0 && len(infoData) == 0 {
		return newError(ErrNoManifestOrInfoPlist, nil)
	}
	if bundleName == "" {
		return newError(ErrBundleNameNotFound, nil)
	}

	if len(manifestData) > 0 {
		if err := writeSinfsFromManifest(dstZip, manifestData, bundleName, sinfs); err != nil {
			return err
		}
	} else {
		if err := writeSinfFromInfo(dstZip, infoData, bundleName, sinfs); err != nil {
			return err
		}
	}

	if err := dstZip.Close(); err != nil {
		return fmt.Errorf("failed to finalize temp package: %v", err)
	}

	return dstFile.Sync()
}

// writeSinfsFromManifest pairs each manifest SinfPath positionally with a
// sinf; a shorter list on either side truncates, without error.
func writeSinfsFromManifest(dst *zip.Writer, manifestData []byte, bundleName string, sinfs []Sinf) error {
	var manifest packageManifest
	if _, err := plist.Unmarshal(manifestData, &manifest); err != nil {
		return fmt.Errorf("failed to unmarshal package manifest: %w", err)
	}

	for i, relPath := range manifest.SinfPaths {
		if i >= len(sinfs) {
			break
		}

		w, err := dst.Create(fmt.Sprintf("Payload/%s.app/%s", bundleName, relPath))
		if err != nil {
			return fmt.Errorf("failed to create sinf entry: %w", err)
		}
		if _, err := w.Write(sinfs[i].Data); err != nil {
			return fmt.Errorf("failed to write sinf data: %w", err)
		}
	}

	return nil
}

// writeSinfFromInfo is the legacy fallback for packages without a signature
// manifest: exactly one sinf, at a path derived from the bundle executable.
func writeSinfFromInfo(dst *zip.Writer, infoData []byte, bundleName string, sinfs []Sinf) error {
	if len(sinfs) == 0 {
		return newError(ErrMissingSignature, nil)
	}

	var info packageInfo
	if _, err := plist.Unmarshal(infoData, &info); err != nil {
		return fmt.Errorf("failed to unmarshal package info plist: %w", err)
	}
	if info.BundleExecutable == "" {
		return newError(ErrMissingExecutableName, nil)
	}

	w, err := dst.Create(fmt.Sprintf("Payload/%s.app/SC_Info/%s.sinf", bundleName, info.BundleExecutable))
	if err != nil {
		return fmt.Errorf("failed to create sinf entry: %w", err)
	}
	if _, err := w.Write(sinfs[0].Data); err != nil {
		return fmt.Errorf("failed to write sinf data: %w", err)
	}

	return nil
}
