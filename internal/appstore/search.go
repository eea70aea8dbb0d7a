package appstore

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/blacktop/ipafetch/internal/httpclient"
)

// App is one catalog entry from the public metadata endpoint. An App may also
// be constructed directly from a known numeric id when the lookup is skipped.
type App struct {
	ID       int64   `json:"trackId,omitempty"`
	BundleID string  `json:"bundleId,omitempty"`
	Name     string  `json:"trackName,omitempty"`
	Version  string  `json:"version,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// QueryResults is the public catalog endpoint's JSON envelope.
type QueryResults struct {
	ResultCount int   `json:"resultCount"`
	Results     []App `json:"results"`
}

// Search queries the catalog for term in the account's store front country.
func (as *AppStore) Search(account *Account, term string, limit int, includeTvos bool) (*QueryResults, error) {
	if err := as.requireAccount(account); err != nil {
		return nil, err
	}

	country, err := CountryCodeFromStoreFront(account.StoreFront)
	if err != nil {
		return nil, err
	}

	entity := "software,iPadSoftware"
	if includeTvos {
		entity += ",tvSoftware"
	}

	q := url.Values{}
	q.Add("entity", entity)
	q.Add("limit", strconv.Itoa(limit))
	q.Add("media", "software")
	q.Add("term", term)
	q.Add("country", country)

	var result QueryResults
	if _, err := as.sendRequest(&httpclient.Request{
		Method:          "GET",
		URL:             fmt.Sprintf("%s?%s", as.searchURL, q.Encode()),
		Format:          httpclient.ResponseFormatJSON,
		FollowRedirects: true,
		Out:             &result,
	}); err != nil {
		return nil, err
	}

	return &result, nil
}

// Lookup resolves a bundle ID to its catalog entry.
func (as *AppStore) Lookup(account *Account, bundleID string) (*App, error) {
	if err := as.requireAccount(account); err != nil {
		return nil, err
	}

	country, err := CountryCodeFromStoreFront(account.StoreFront)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Add("entity", "software,iPadSoftware")
	q.Add("limit", "1")
	q.Add("media", "software")
	q.Add("bundleId", bundleID)
	q.Add("country", country)

	var result QueryResults
	if _, err := as.sendRequest(&httpclient.Request{
		Method:          "GET",
		URL:             fmt.Sprintf("%s?%s", as.lookupURL, q.Encode()),
		Format:          httpclient.ResponseFormatJSON,
		FollowRedirects: true,
		Out:             &result,
	}); err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, newErrorf(ErrAppNotFound, result, "no results found for bundleID "+bundleID)
	}

	return &result.Results[0], nil
}
