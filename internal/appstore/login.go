package appstore

import (
	"fmt"
	"strings"

	"github.com/apex/log"

	"github.com/blacktop/ipafetch/internal/httpclient"
)

type loginRequest struct {
	AppleID  string `plist:"appleId,omitempty"`
	Attempt  string `plist:"attempt,omitempty"`
	GuID     string `plist:"guid,omitempty"`
	Password string `plist:"password,omitempty"`
	Rmp      string `plist:"rmp,omitempty"`
	Why      string `plist:"why,omitempty"`
}

type loginResponse struct {
	FailureType     string `plist:"failureType,omitempty"`
	CustomerMessage string `plist:"customerMessage,omitempty"`
	AccountInfo     struct {
		AppleID string `plist:"appleId,omitempty"`
		Address struct {
			FirstName string `plist:"firstName,omitempty"`
			LastName  string `plist:"lastName,omitempty"`
		} `plist:"address,omitempty"`
	} `plist:"accountInfo,omitempty"`
	PasswordToken string `plist:"passwordToken,omitempty"`
	DsPersonID    string `plist:"dsPersonId,omitempty"`
}

// Login drives the MZFinance authenticate flow: up to 4 attempts, following
// redirects by hand (the endpoint bounces new sessions between hosts before
// accepting credentials). On success the account is persisted to the vault.
//
// authCode is the 2FA verification code; pass "" on the first call and retry
// with a code when Login fails with ErrAuthCodeRequired.
func (as *AppStore) Login(email, password, authCode string) (*Account, error) {
	guid, err := as.guid()
	if err != nil {
		return nil, fmt.Errorf("failed to get machine guid: %v", err)
	}

	redirectURL := ""

	for attempt := 1; attempt <= 4; attempt++ {
		addr := fmt.Sprintf("%s?guid=%s", as.authURL, guid)
		if redirectURL != "" {
			addr = redirectURL
		}

		var login loginResponse
		res, err := as.sendRequest(&httpclient.Request{
			Method: "POST",
			URL:    addr,
			// the endpoint wants a plist body labeled as form data; sending
			// the payload's own content type gets the request rejected
			Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			Payload: &httpclient.PlistPayload{Content: &loginRequest{
				AppleID:  email,
				Attempt:  fmt.Sprintf("%d", attempt),
				GuID:     guid,
				Password: password + strings.ReplaceAll(authCode, " ", ""),
				Rmp:      "0",
				Why:      "signIn",
			}},
			Format:          httpclient.ResponseFormatPlist,
			FollowRedirects: false,
			Out:             &login,
		})
		if err != nil {
			return nil, err
		}

		if res.StatusCode >= 300 && res.StatusCode < 400 {
			// an absent/empty Location reuses the previous URL on the retry
			if loc := res.GetHeader("Location"); loc != "" {
				redirectURL = loc
			}
			log.WithFields(log.Fields{
				"attempt":  attempt,
				"location": redirectURL,
			}).Debug("login redirected")
			continue
		}

		// the server rejects the very first attempt of a fresh session with
		// invalid-credentials even when they are correct; retrying the same
		// request primes it. Upstream server quirk, keep as-is.
		if attempt == 1 && login.FailureType == FailureTypeInvalidCredentials {
			continue
		}

		if login.FailureType == "" && authCode == "" && login.CustomerMessage == CustomerMessageBadLogin {
			return nil, newError(ErrAuthCodeRequired, login)
		}

		if login.FailureType == "" && login.CustomerMessage == CustomerMessageAccountDisabled {
			return nil, newError(ErrAccountDisabled, login)
		}

		if login.FailureType != "" {
			if login.CustomerMessage != "" {
				return nil, newErrorf(ErrAuthenticationFailed, login, login.CustomerMessage)
			}
			return nil, newError(ErrAuthenticationFailed, login)
		}

		if res.StatusCode != 200 || login.PasswordToken == "" || login.DsPersonID == "" {
			return nil, newError(ErrInvalidResponse, login)
		}

		storeFront := res.GetHeader(HTTPHeaderStoreFront)
		if storeFront == "" {
			return nil, newErrorf(ErrInvalidResponse, res.Headers, "login response is missing store front header")
		}

		acctEmail := login.AccountInfo.AppleID
		if acctEmail == "" {
			acctEmail = email
		}

		account := &Account{
			Email:               acctEmail,
			Name:                strings.TrimSpace(login.AccountInfo.Address.FirstName + " " + login.AccountInfo.Address.LastName),
			PasswordToken:       login.PasswordToken,
			DirectoryServicesID: login.DsPersonID,
			StoreFront:          storeFront,
			Password:            password,
		}

		if err := as.saveAccount(account); err != nil {
			return nil, err
		}

		return account, nil
	}

	return nil, newError(ErrTooManyAttempts, nil)
}
