package whatsapp

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	qrDataURIPrefix = "data:image/png;base64,"
	qrImageSize     = 256
)

// RenderQR encodes a pairing string as a PNG data URI.
func RenderQR(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty qr payload")
	}
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return qrDataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// QRBase64 strips the data URI prefix.
func QRBase64(dataURI string) string {
	return strings.TrimPrefix(dataURI, qrDataURIPrefix)
}

// QRPNG decodes a data URI produced by RenderQR back into PNG bytes.
func QRPNG(dataURI string) ([]byte, error) {
	if !strings.HasPrefix(dataURI, qrDataURIPrefix) {
		return nil, fmt.Errorf("not a png data uri")
	}
	return base64.StdEncoding.DecodeString(QRBase64(dataURI))
}
