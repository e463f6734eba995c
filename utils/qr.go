package utils

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// NewOpaqueToken returns a random token for QR sessions, guest credentials
// and payment transaction ids.
func NewOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// PaidMarker rewrites a guest credential after settlement. The result never
// matches a lookup by the original key.
func PaidMarker() string {
	return "paid:" + NewOpaqueToken()
}

// EncodeQRImage renders the join URL as a PNG and returns it as a base64
// data URI for direct embedding by clients.
func EncodeQRImage(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
