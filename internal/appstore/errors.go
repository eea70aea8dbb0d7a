package appstore

import "errors"

// ErrorKind discriminates the failures of the App Store protocol so callers
// can branch on them (retry, re-login, purchase) without string matching.
type ErrorKind int

const (
	ErrNetwork ErrorKind = iota
	ErrProtocol
	ErrAuthenticationRequired
	ErrAuthCodeRequired
	ErrAccountDisabled
	ErrAuthenticationFailed
	ErrTooManyAttempts
	ErrInvalidResponse
	ErrUnknownStoreFront
	ErrAppNotFound
	ErrPurchaseNotSupported
	ErrTemporarilyUnavailable
	ErrSubscriptionRequired
	ErrPasswordTokenExpired
	ErrAlreadyLicensed
	ErrPurchaseFailed
	ErrLicenseRequired
	ErrDownloadFailed
	ErrMetadataParse
	ErrBundleNameNotFound
	ErrNoManifestOrInfoPlist
	ErrMissingExecutableName
	ErrMissingSignature
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network request failed"
	case ErrProtocol:
		return "unexpected store response"
	case ErrAuthenticationRequired:
		return "authentication required"
	case ErrAuthCodeRequired:
		return "two-factor authentication code required"
	case ErrAccountDisabled:
		return "account is disabled"
	case ErrAuthenticationFailed:
		return "authentication failed"
	case ErrTooManyAttempts:
		return "too many login attempts"
	case ErrInvalidResponse:
		return "invalid store response"
	case ErrUnknownStoreFront:
		return "unknown store front"
	case ErrAppNotFound:
		return "app not found"
	case ErrPurchaseNotSupported:
		return "purchasing paid apps is not supported"
	case ErrTemporarilyUnavailable:
		return "item is temporarily unavailable"
	case ErrSubscriptionRequired:
		return "item requires a subscription"
	case ErrPasswordTokenExpired:
		return "password token is expired"
	case ErrAlreadyLicensed:
		return "account already has a license"
	case ErrPurchaseFailed:
		return "purchase failed"
	case ErrLicenseRequired:
		return "account has no license for this app"
	case ErrDownloadFailed:
		return "download failed"
	case ErrMetadataParse:
		return "failed to parse package metadata"
	case ErrBundleNameNotFound:
		return "bundle name not found in package"
	case ErrNoManifestOrInfoPlist:
		return "package has no manifest or info plist"
	case ErrMissingExecutableName:
		return "package info plist has no executable name"
	case ErrMissingSignature:
		return "no signature to replicate"
	default:
		return "unknown error"
	}
}

// Error is the package's failure type. Metadata carries the response (or raw
// value) that triggered the failure, for diagnostics only.
type Error struct {
	Kind     ErrorKind
	Message  string
	Metadata any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func newError(kind ErrorKind, metadata any) *Error {
	return &Error{Kind: kind, Metadata: metadata}
}

func newErrorf(kind ErrorKind, metadata any, message string) *Error {
	return &Error{Kind: kind, Message: message, Metadata: metadata}
}

// IsKind reports whether err (or anything it wraps) is an App Store error of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
