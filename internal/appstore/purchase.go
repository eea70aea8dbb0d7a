package appstore

import (
	"fmt"

	"github.com/blacktop/ipafetch/internal/httpclient"
)

type purchaseRequest struct {
	AppExtVrsID               string `plist:"appExtVrsId,omitempty"`
	HasAskedToFulfillPreorder string `plist:"hasAskedToFulfillPreorder,omitempty"`
	BuyWithoutAuthorization   string `plist:"buyWithoutAuthorization,omitempty"`
	HasDoneAgeCheck           string `plist:"hasDoneAgeCheck,omitempty"`
	GuID                      string `plist:"guid,omitempty"`
	NeedDiv                   string `plist:"needDiv,omitempty"`
	OrigPage                  string `plist:"origPage,omitempty"`
	OrigPageLocation          string `plist:"origPageLocation,omitempty"`
	Price                     string `plist:"price,omitempty"`
	PricingParameters         string `plist:"pricingParameters,omitempty"`
	ProductType               string `plist:"productType,omitempty"`
	SalableAdamID             int64  `plist:"salableAdamId,omitempty"`
}

type purchaseResponse struct {
	FailureType     string `plist:"failureType,omitempty"`
	CustomerMessage string `plist:"customerMessage,omitempty"`
	JingleDocType   string `plist:"jingleDocType,omitempty"`
	Status          int    `plist:"status,omitempty"`
}

// Purchase acquires a license for a free app. Apple Arcade titles reject the
// regular pricing parameter as temporarily unavailable, so that failure gets
// one retry with the arcade parameter.
func (as *AppStore) Purchase(account *Account, app *App) error {
	if err := as.requireAccount(account); err != nil {
		return err
	}

	if app.Price > 0 {
		return newError(ErrPurchaseNotSupported, nil)
	}

	guid, err := as.guid()
	if err != nil {
		return fmt.Errorf("failed to get machine guid: %v", err)
	}

	if err := as.purchaseWithParams(account, app, guid, PricingParameterAppStore); err != nil {
		if IsKind(err, ErrTemporarilyUnavailable) {
			return as.purchaseWithParams(account, app, guid, PricingParameterAppleArcade)
		}
		return err
	}

	return nil
}

func (as *AppStore) purchaseWithParams(account *Account, app *App, guid, pricing string) error {
	var purc purchaseResponse
	res, err := as.sendRequest(&httpclient.Request{
		Method: "POST",
		URL:    fmt.Sprintf("%s?guid=%s", as.purchaseURL, guid),
		Headers: map[string]string{
			"iCloud-DSID":         account.DirectoryServicesID,
			"X-Dsid":              account.DirectoryServicesID,
			"X-Apple-Store-Front": account.StoreFront,
			"X-Token":             account.PasswordToken,
		},
		Payload: &httpclient.PlistPayload{Content: &purchaseRequest{
			AppExtVrsID:               "0",
			HasAskedToFulfillPreorder: "true",
			BuyWithoutAuthorization:   "true",
			HasDoneAgeCheck:           "true",
			GuID:                      guid,
			NeedDiv:                   "0",
			OrigPage:                  fmt.Sprintf("Software-%d", app.ID),
			OrigPageLocation:          "Buy",
			Price:                     "0",
			PricingParameters:         pricing,
			ProductType:               "C",
			SalableAdamID:             app.ID,
		}},
		Format:          httpclient.ResponseFormatPlist,
		FollowRedirects: true,
		Out:             &purc,
	})
	if err != nil {
		return err
	}

	switch {
	case purc.FailureType == FailureTypeTemporarilyUnavailable:
		return newError(ErrTemporarilyUnavailable, purc)
	case purc.CustomerMessage == CustomerMessageSubscriptionRequired:
		return newError(ErrSubscriptionRequired, purc)
	case purc.FailureType == FailureTypePasswordTokenExpired:
		return newError(ErrPasswordTokenExpired, purc)
	case purc.FailureType != "":
		if purc.CustomerMessage != "" {
			return newErrorf(ErrPurchaseFailed, purc, purc.CustomerMessage)
		}
		return newError(ErrPurchaseFailed, purc)
	}

	if res.StatusCode == 500 {
		return newError(ErrAlreadyLicensed, purc)
	}

	if purc.JingleDocType != "purchaseSuccess" || purc.Status != 0 {
		return newError(ErrPurchaseFailed, purc)
	}

	return nil
}
