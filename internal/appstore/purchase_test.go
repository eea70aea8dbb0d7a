package appstore

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blacktop/go-plist"
)

func decodePurchaseRequest(t *testing.T, r *http.Request) *purchaseRequest {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("failed to read purchase request body: %v", err)
	}
	var req purchaseRequest
	if _, err := plist.Unmarshal(data, &req); err != nil {
		t.Fatalf("failed to unmarshal purchase request body: %v", err)
	}
	return &req
}

func purchaseSuccessBody(t *testing.T) []byte {
	t.Helper()
	return plistBody(t, &purchaseResponse{JingleDocType: "purchaseSuccess", Status: 0})
}

func TestPurchasePaidAppRejected(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	as := newTestAppStore(t)
	as.purchaseURL = srv.URL

	err := as.Purchase(testAccount(), &App{ID: 42, Price: 0.99})
	if !IsKind(err, ErrPurchaseNotSupported) {
		t.Fatalf("Purchase() error = %v, want ErrPurchaseNotSupported", err)
	}
	if requests != 0 {
		t.Errorf("Purchase() issued %d requests for a paid app, want 0", requests)
	}
}

func TestPurchaseSuccess(t *testing.T) {
	var gotHeaders http.Header
	var gotReq *purchaseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotReq = decodePurchaseRequest(t, r)
		w.Write(purchaseSuccessBody(t))
	}))
	defer srv.Close()

	as := newTestAppStore(t)
	as.purchaseURL = srv.URL

	account := testAccount()
	if err := as.Purchase(account, &App{ID: 42}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	if gotHeaders.Get("X-Dsid") != account.DirectoryServicesID {
		t.Errorf("X-Dsid = %q", gotHeaders.Get("X-Dsid"))
	}
	if gotHeaders.Get("iCloud-DSID") != account.DirectoryServicesID {
		t.Errorf("iCloud-DSID = %q", gotHeaders.Get("iCloud-DSID"))
	}
	if gotHeaders.Get("X-Token") != account.PasswordToken {
		t.Errorf("X-Token = %q", gotHeaders.Get("X-Token"))
	}
	if gotHeaders.Get("X-Apple-Store-Front") != account.StoreFront {
		t.Errorf("X-Apple-Store-Front = %q", gotHeaders.Get("X-Apple-Store-Front"))
	}

	if gotReq.SalableAdamID != 42 {
		t.Errorf("salableAdamId = %d, want 42", gotReq.SalableAdamID)
	}
	if gotReq.PricingParameters != PricingParameterAppStore {
		t.Errorf("pricingParameters = %q, want %q", gotReq.PricingParameters, PricingParameterAppStore)
	}
	if gotReq.ProductType != "C" || gotReq.Price != "0" {
		t.Errorf("purchase request = %+v", gotReq)
	}
}

func TestPurchaseArcadeRetry(t *testing.T) {
	var pricing []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pricing = append(pricing, decodePurchaseRequest(t, r).PricingParameters)
		if len(pricing) == 1 {
			w.Write(plistBody(t, &purchaseResponse{FailureType: FailureTypeTemporarilyUnavailable}))
			return
		}
		w.Write(purchaseSuccessBody(t))
	}))
	defer srv.Close()

	as := newTestAppStore(t)
	as.purchaseURL = srv.URL

	if err := as.Purchase(testAccount(), &App{ID: 42}); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if len(pricing) != 2 || pricing[0] != PricingParameterAppStore || pricing[1] != PricingParameterAppleArcade {
		t.Errorf("pricing parameters = %v, want [STDQ GAME]", pricing)
	}
}

func TestPurchaseErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response *purchaseResponse
		wantKind ErrorKind
	}{
		{
			name:     "subscription required",
			status:   http.StatusOK,
			response: &purchaseResponse{CustomerMessage: CustomerMessageSubscriptionRequired},
			wantKind: ErrSubscriptionRequired,
		},
		{
			name:     "password token expired",
			status:   http.StatusOK,
			response: &purchaseResponse{FailureType: FailureTypePasswordTokenExpired},
			wantKind: ErrPasswordTokenExpired,
		},
		{
			name:     "generic failure with message",
			status:   http.StatusOK,
			response: &purchaseResponse{FailureType: "3000", CustomerMessage: "nope"},
			wantKind: ErrPurchaseFailed,
		},
		{
			name:     "already licensed",
			status:   http.StatusInternalServerError,
			response: &purchaseResponse{},
			wantKind: ErrAlreadyLicensed,
		},
		{
			name:     "wrong doc type",
			status:   http.StatusOK,
			response: &purchaseResponse{JingleDocType: "failure"},
			wantKind: ErrPurchaseFailed,
		},
		{
			name:     "nonzero status",
			status:   http.StatusOK,
			response: &purchaseResponse{JingleDocType: "purchaseSuccess", Status: 1},
			wantKind: ErrPurchaseFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write(plistBody(t, tt.response))
			}))
			defer srv.Close()

			as := newTestAppStore(t)
			as.purchaseURL = srv.URL

			err := as.Purchase(testAccount(), &App{ID: 42})
			if !IsKind(err, tt.wantKind) {
				t.Errorf("Purchase() error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}
