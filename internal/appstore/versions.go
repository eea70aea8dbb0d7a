package appstore

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// ListVersionsOutput enumerates the historical build identifiers the store
// still serves for an app.
type ListVersionsOutput struct {
	ExternalVersionIDs      []string
	LatestExternalVersionID string
}

// VersionMetadata describes one historical build.
type VersionMetadata struct {
	DisplayVersion     string
	BuildNumber        string
	ReleaseDate        time.Time
	FileSize           int64
	BundleID           string
	ArtistName         string
	ItemName           string
	Genre              string
	AgeRating          string
	RequiresRosetta    bool
	RunsOnAppleSilicon bool
	Copyright          string
}

// ListVersions reuses the download descriptor pipeline; only the identifier
// fields of the metadata are projected.
func (as *AppStore) ListVersions(account *Account, app *App) (*ListVersionsOutput, error) {
	item, err := as.fetchDownloadItem(account, app.ID, "")
	if err != nil {
		return nil, err
	}

	raw, ok := item.Metadata["softwareVersionExternalIdentifiers"].([]any)
	if !ok {
		return nil, newErrorf(ErrInvalidResponse, item.Metadata, "invalid version identifier list")
	}

	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, cast.ToString(id))
	}

	return &ListVersionsOutput{
		ExternalVersionIDs:      ids,
		LatestExternalVersionID: cast.ToString(item.Metadata["softwareVersionExternalIdentifier"]),
	}, nil
}

// GetVersionMetadata fetches the descriptor for a specific historical build
// and projects its metadata.
func (as *AppStore) GetVersionMetadata(account *Account, app *App, externalVersionID string) (*VersionMetadata, error) {
	item, err := as.fetchDownloadItem(account, app.ID, externalVersionID)
	if err != nil {
		return nil, err
	}

	release, err := parseReleaseDate(item.Metadata["releaseDate"])
	if err != nil {
		return nil, err
	}

	usRating := cast.ToStringMap(cast.ToStringMap(item.Metadata["appAgeRatings"])["US"])

	return &VersionMetadata{
		DisplayVersion:     orNA(cast.ToString(item.Metadata["bundleShortVersionString"])),
		BuildNumber:        orNA(cast.ToString(item.Metadata["bundleVersion"])),
		ReleaseDate:        release,
		FileSize:           cast.ToInt64(item.AssetInfo["file-size"]),
		BundleID:           orNA(cast.ToString(item.Metadata["softwareVersionBundleId"])),
		ArtistName:         orNA(cast.ToString(item.Metadata["artistName"])),
		ItemName:           orNA(cast.ToString(item.Metadata["itemName"])),
		Genre:              orNA(cast.ToString(item.Metadata["genre"])),
		AgeRating:          orNA(cast.ToString(usRating["label"])),
		RequiresRosetta:    cast.ToBool(item.Metadata["requiresRosetta"]),
		RunsOnAppleSilicon: cast.ToBool(item.Metadata["runsOnAppleSilicon"]),
		Copyright:          orNA(cast.ToString(item.Metadata["copyright"])),
	}, nil
}

func (as *AppStore) fetchDownloadItem(account *Account, appID int64, externalVersionID string) (*downloadItem, error) {
	if err := as.requireAccount(account); err != nil {
		return nil, err
	}

	guid, err := as.guid()
	if err != nil {
		return nil, fmt.Errorf("failed to get machine guid: %v", err)
	}

	dl, err := as.sendDownloadRequest(account, appID, guid, externalVersionID)
	if err != nil {
		return nil, err
	}
	if err := validateDownloadResponse(dl); err != nil {
		return nil, err
	}
	if len(dl.Items) == 0 {
		return nil, newErrorf(ErrInvalidResponse, dl, "no items found in download response")
	}

	return &dl.Items[0], nil
}

// parseReleaseDate accepts both the plist date type and its RFC 3339 string
// form (the endpoint has returned either over time).
func parseReleaseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, newErrorf(ErrMetadataParse, value, "failed to parse release date: "+v)
		}
		return t, nil
	default:
		return time.Time{}, newErrorf(ErrMetadataParse, value, fmt.Sprintf("unexpected release date type %T", value))
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
