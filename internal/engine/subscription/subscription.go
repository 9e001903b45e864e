package subscription

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// URI builds the single-line vless connection descriptor for a client.
// Encryption is disabled in the URI because TLS terminates in front of the
// relay on 443; tunnelPath must match the route the relay serves, or the
// descriptor points clients at a dead endpoint.
func URI(clientUUID, path, host, tunnelPath string) string {
	return fmt.Sprintf(
		"vless://%s@%s:443?encryption=none&security=tls&type=ws&host=%s&path=%s#Nefrit-%s",
		clientUUID, host, host, url.QueryEscape(tunnelPath), path,
	)
}

// Encode wraps the URI in the base64 single-line body that subscription
// clients poll for.
func Encode(uri string) string {
	return base64.StdEncoding.EncodeToString([]byte(uri))
}

// QRCode renders the raw URI as a PNG for clients that import by camera.
func QRCode(uri string, size int) ([]byte, error) {
	if size == 0 {
		size = 512
	}
	if size < 128 || size > 2048 {
		return nil, errors.New("invalid size: must be between 128 and 2048")
	}

	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	return qr.PNG(size)
}
