package appstore

import (
	"testing"

	"github.com/blacktop/go-plist"

	"github.com/blacktop/ipafetch/internal/keychain"
)

type memVault struct {
	m map[string][]byte
}

func newMemVault() *memVault {
	return &memVault{m: make(map[string][]byte)}
}

func (v *memVault) Get(key string) ([]byte, error) {
	data, ok := v.m[key]
	if !ok {
		return nil, keychain.ErrNotFound
	}
	return data, nil
}

func (v *memVault) Set(key string, data []byte) error {
	v.m[key] = data
	return nil
}

func (v *memVault) Remove(key string) error {
	delete(v.m, key)
	return nil
}

// newTestAppStore returns a client with an in-memory vault and a fixed
// machine guid; tests point its endpoint fields at scripted servers.
func newTestAppStore(t *testing.T) *AppStore {
	t.Helper()

	as := NewAppStore(&Config{
		ConfigDir: t.TempDir(),
		Verbose:   true, // no progress bars in test output
	})
	as.Vault = newMemVault()
	as.guidFn = func() (string, error) { return "A1B2C3D4E5F6", nil }

	return as
}

func testAccount() *Account {
	return &Account{
		Email:               "user@example.com",
		Name:                "John Appleseed",
		PasswordToken:       "token",
		DirectoryServicesID: "12345",
		StoreFront:          "143441-1,29",
		Password:            "secret",
	}
}

func plistBody(t *testing.T, v any) []byte {
	t.Helper()
	data, err := plist.Marshal(v, plist.XMLFormat)
	if err != nil {
		t.Fatalf("failed to marshal test plist: %v", err)
	}
	return data
}
