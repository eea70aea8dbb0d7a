package appstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cast"

	"github.com/blacktop/ipafetch/internal/download"
	"github.com/blacktop/ipafetch/internal/httpclient"
)

type downloadRequest struct {
	CreditDisplay     string `plist:"creditDisplay"`
	GuID              string `plist:"guid,omitempty"`
	SalableAdamID     int64  `plist:"salableAdamId,omitempty"`
	ExternalVersionID string `plist:"externalVersionId,omitempty"`
}

// Sinf is a per-device signature blob. The server returns them in the order
// of the package manifest's SinfPaths; pairing is positional.
type Sinf struct {
	ID   int64  `plist:"id,omitempty"`
	Data []byte `plist:"sinf,omitempty"`
}

type downloadItem struct {
	URL       string         `plist:"URL,omitempty"`
	MD5       string         `plist:"md5,omitempty"`
	Sinfs     []Sinf         `plist:"sinfs,omitempty"`
	Metadata  map[string]any `plist:"metadata,omitempty"`
	AssetInfo map[string]any `plist:"asset-info,omitempty"`
}

type downloadResponse struct {
	FailureType     string         `plist:"failureType,omitempty"`
	CustomerMessage string         `plist:"customerMessage,omitempty"`
	Items           []downloadItem `plist:"songList,omitempty"`
}

// DownloadOutput is the result of a completed download: the final archive
// path and the sinfs that still need replicating into it.
type DownloadOutput struct {
	DestinationPath string
	Sinfs           []Sinf
}

func (as *AppStore) sendDownloadRequest(account *Account, appID int64, guid, externalVersionID string) (*downloadResponse, error) {
	var dl downloadResponse
	if _, err := as.sendRequest(&httpclient.Request{
		Method: "POST",
		URL:    fmt.Sprintf("%s?guid=%s", as.downloadURL, guid),
		Headers: map[string]string{
			"iCloud-DSID": account.DirectoryServicesID,
			"X-Dsid":      account.DirectoryServicesID,
		},
		Payload: &httpclient.PlistPayload{Content: &downloadRequest{
			CreditDisplay:     "",
			GuID:              guid,
			SalableAdamID:     appID,
			ExternalVersionID: externalVersionID,
		}},
		Format:          httpclient.ResponseFormatPlist,
		FollowRedirects: true,
		Out:             &dl,
	}); err != nil {
		return nil, err
	}
	return &dl, nil
}

func validateDownloadResponse(dl *downloadResponse) error {
	switch {
	case dl.FailureType == FailureTypePasswordTokenExpired:
		return newError(ErrPasswordTokenExpired, dl)
	case dl.FailureType == FailureTypeLicenseNotFound:
		return newError(ErrLicenseRequired, dl)
	case dl.FailureType != "" && dl.CustomerMessage != "":
		return newErrorf(ErrDownloadFailed, dl, dl.CustomerMessage)
	case dl.FailureType != "":
		return newErrorf(ErrDownloadFailed, dl, fmt.Sprintf("download failed (failureType %s)", dl.FailureType))
	}
	return nil
}

// Download requests the signed package descriptor, streams the archive and
// rewrites it with the account-bound iTunesMetadata.plist. The returned sinfs
// are NOT yet replicated into the package; see ReplicateSinf.
func (as *AppStore) Download(account *Account, app *App, outputPath, externalVersionID string) (*DownloadOutput, error) {
	if err := as.requireAccount(account); err != nil {
		return nil, err
	}

	guid, err := as.guid()
	if err != nil {
		return nil, fmt.Errorf("failed to get machine guid: %v", err)
	}

	dl, err := as.sendDownloadRequest(account, app.ID, guid, externalVersionID)
	if err != nil {
		return nil, err
	}
	if err := validateDownloadResponse(dl); err != nil {
		return nil, err
	}
	if len(dl.Items) == 0 {
		return nil, newErrorf(ErrInvalidResponse, dl, "no items found in download response")
	}

	item := dl.Items[0]
	version := cast.ToString(item.Metadata["bundleShortVersionString"])

	destination, err := as.resolveDestinationPath(app, version, outputPath)
	if err != nil {
		return nil, err
	}
	temp := destination + ".tmp"

	if err := as.streamPackage(item.URL, temp); err != nil {
		return nil, err
	}

	if err := applyAccountMetadata(temp, destination, item.Metadata, account); err != nil {
		return nil, fmt.Errorf("failed to apply package metadata: %v", err)
	}

	if err := os.Remove(temp); err != nil {
		log.WithError(err).Warnf("failed to remove temp download %s", temp)
	}

	return &DownloadOutput{
		DestinationPath: destination,
		Sinfs:           item.Sinfs,
	}, nil
}

func (as *AppStore) streamPackage(url, dest string) error {
	downloader := download.NewDownload(as.config.Proxy, as.config.Insecure, !as.config.Verbose)
	// reuse the authenticated session
	downloader.Client = as.Client.HTTPClient()
	downloader.URL = url
	downloader.DestName = dest

	log.WithField("file", dest).Info("Downloading")

	if err := downloader.Do(); err != nil {
		return newErrorf(ErrNetwork, nil, "failed to download package: "+err.Error())
	}
	// streaming bypasses the transport, so flush its cookies here
	as.Client.SaveCookies()

	return nil
}

// resolveDestinationPath synthesizes "{bundleId}_{appId}_{version}.ipa" from
// whichever parts are available, unless outputPath names the file verbatim.
func (as *AppStore) resolveDestinationPath(app *App, version, outputPath string) (string, error) {
	var parts []string
	if app.BundleID != "" {
		parts = append(parts, app.BundleID)
	}
	if app.ID != 0 {
		parts = append(parts, fmt.Sprintf("%d", app.ID))
	}
	if version != "" {
		parts = append(parts, version)
	}
	fileName := strings.Join(parts, "_") + ".ipa"

	if outputPath == "" {
		return fileName, nil
	}

	if info, err := os.Stat(outputPath); (err == nil && info.IsDir()) || strings.HasSuffix(outputPath, string(os.PathSeparator)) {
		return filepath.Join(outputPath, fileName), nil
	}

	return outputPath, nil
}

// DownloadWithRecovery composes login, purchase and download: an expired
// session token or a missing license is recovered transparently and the
// download retried, up to 3 attempts. The sinfs are always replicated into
// the final package before returning; without them the archive does not
// install.
func (as *AppStore) DownloadWithRecovery(account *Account, app *App, outputPath, externalVersionID string, purchaseIfNeeded bool) (*DownloadOutput, error) {
	for attempt := 1; attempt <= 3; attempt++ {
		out, err := as.Download(account, app, outputPath, externalVersionID)
		if err == nil {
			if err := as.ReplicateSinf(out.DestinationPath, out.Sinfs); err != nil {
				return nil, err
			}
			return out, nil
		}

		switch {
		case IsKind(err, ErrPasswordTokenExpired):
			if account.Password == "" {
				return nil, err
			}
			log.Warn("password token expired, logging in again")
			account, err = as.Login(account.Email, account.Password, "")
			if err != nil {
				return nil, err
			}
		case IsKind(err, ErrLicenseRequired):
			if !purchaseIfNeeded {
				return nil, err
			}
			log.Warn("no license found, purchasing app")
			if err := as.Purchase(account, app); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	return nil, newError(ErrDownloadFailed, nil)
}
