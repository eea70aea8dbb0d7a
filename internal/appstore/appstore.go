// Package appstore implements the private App Store protocol: account login,
// catalog search/lookup, free-app purchase, signed package download and the
// repackaging that makes the result installable outside the original device
// context.
package appstore

// CREDIT - https://github.com/majd/ipatool

import (
	"path/filepath"

	"github.com/blacktop/ipafetch/internal/cookiejar"
	"github.com/blacktop/ipafetch/internal/httpclient"
	"github.com/blacktop/ipafetch/internal/keychain"
	"github.com/blacktop/ipafetch/internal/machine"
)

const (
	urlPrefix           = "https://p25-"
	appStoreAuthURL     = urlPrefix + "buy.itunes.apple.com/WebObjects/MZFinance.woa/wa/authenticate"
	appStoreDownloadURL = urlPrefix + "buy.itunes.apple.com/WebObjects/MZFinance.woa/wa/volumeStoreDownloadProduct"
	appStorePurchaseURL = "https://buy.itunes.apple.com/WebObjects/MZBuy.woa/wa/buyProduct"
	appStoreSearchURL   = "https://itunes.apple.com/search"
	appStoreLookupURL   = "https://itunes.apple.com/lookup"

	// AppStoreSearchLimit is the maximum number of results returned by the App Store search API
	AppStoreSearchLimit = 200

	// HTTPHeaderStoreFront carries the account's store front on the login
	// response (case-insensitive).
	HTTPHeaderStoreFront = "X-Apple-Store-Front"

	FailureTypeInvalidCredentials     = "-5000"
	FailureTypeUnknownError           = "5002"
	FailureTypePasswordTokenExpired   = "2034"
	FailureTypeLicenseNotFound        = "9610"
	FailureTypeTemporarilyUnavailable = "2059"

	CustomerMessageBadLogin             = "MZFinance.BadLogin.Configurator_message"
	CustomerMessageAccountDisabled      = "MZFinance.DisabledAccount.Configurator_message"
	CustomerMessageSubscriptionRequired = "Subscription Required"

	PricingParameterAppStore    = "STDQ"
	PricingParameterAppleArcade = "GAME"
)

const (
	// VaultName is the file vault the account record lives in
	VaultName = "ipafetch-vault"
	// AppName labels vault items
	AppName = "io.blacktop.ipafetch"
	// KeychainServiceName is the macOS keychain service name
	KeychainServiceName = "ipafetch-auth.service"

	accountKey     = "account"
	cookieFileName = "cookies.json"
)

// Config configures an AppStore client.
type Config struct {
	// download config
	Proxy    string
	Insecure bool
	// extra config
	ConfigDir     string
	VaultPassword string
	Verbose       bool
}

// Vault persists the account record between runs.
type Vault interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Remove(key string) error
}

// AppStore is the App Store client object
type AppStore struct {
	Client *httpclient.Client

	Vault Vault

	jar    *cookiejar.Jar
	config *Config
	guidFn func() (string, error)

	// endpoints are fields so package tests can point the client at a
	// scripted server
	authURL     string
	purchaseURL string
	downloadURL string
	searchURL   string
	lookupURL   string
}

// NewAppStore returns an AppStore instance
func NewAppStore(config *Config) *AppStore {
	jar := cookiejar.New(filepath.Join(config.ConfigDir, cookieFileName))

	return &AppStore{
		Client: httpclient.New(&httpclient.Config{
			Proxy:    config.Proxy,
			Insecure: config.Insecure,
			Jar:      jar,
		}),
		jar:         jar,
		config:      config,
		guidFn:      machine.Guid,
		authURL:     appStoreAuthURL,
		purchaseURL: appStorePurchaseURL,
		downloadURL: appStoreDownloadURL,
		searchURL:   appStoreSearchURL,
		lookupURL:   appStoreLookupURL,
	}
}

// Init opens the credential vault (creating it if needed).
func (as *AppStore) Init() error {
	vault, err := keychain.Open(&keychain.Config{
		ServiceName:   KeychainServiceName,
		VaultName:     VaultName,
		AppName:       AppName,
		ConfigDir:     as.config.ConfigDir,
		VaultPassword: as.config.VaultPassword,
	})
	if err != nil {
		return err
	}
	as.Vault = vault
	return nil
}

// sendRequest funnels every exchange through the transport and normalizes its
// failures into the package error taxonomy.
func (as *AppStore) sendRequest(req *httpclient.Request) (*httpclient.Result, error) {
	result, err := as.Client.Do(req)
	if err != nil {
		if respErr, ok := err.(*httpclient.ResponseError); ok {
			return nil, newError(ErrProtocol, map[string]any{
				"status":  respErr.StatusCode,
				"headers": respErr.Headers,
				"body":    string(respErr.Body),
			})
		}
		return nil, newErrorf(ErrNetwork, nil, "network request failed: "+err.Error())
	}
	return result, nil
}

func (as *AppStore) guid() (string, error) {
	return as.guidFn()
}
