package httpclient

import (
	"fmt"
	"net/url"

	"github.com/blacktop/go-plist"
)

// Payload serializes a request body and reports its default content type
// (applied only when the request did not set one itself).
type Payload interface {
	Serialize() (data []byte, contentType string, err error)
}

// PlistPayload encodes Content as an XML property list, the envelope every
// private MZFinance/MZBuy endpoint expects.
type PlistPayload struct {
	Content any
}

func (p *PlistPayload) Serialize() ([]byte, string, error) {
	data, err := plist.Marshal(p.Content, plist.XMLFormat)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal plist payload: %v", err)
	}
	return data, "application/x-apple-plist", nil
}

// FormPayload encodes Content as application/x-www-form-urlencoded;
// list-valued fields repeat the key.
type FormPayload struct {
	Content url.Values
}

func (p *FormPayload) Serialize() ([]byte, string, error) {
	return []byte(p.Content.Encode()), "application/x-www-form-urlencoded", nil
}
