package flow

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
)

const quietZone = 2

// PaymentURI is the payment request shown as a QR code on the payment step.
func PaymentURI(e catalog.Entry, key string) string {
	q := url.Values{}
	q.Set("template", strconv.FormatInt(e.ID, 10))
	q.Set("amount", strconv.FormatInt(e.Price, 10))
	q.Set("currency", "RUB")
	if key != "" {
		q.Set("ref", key)
	}
	return "storefront://pay?" + q.Encode()
}

// QRCode encodes payload as a QR matrix.
func QRCode(payload string) (barcode.Barcode, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment code: %w", err)
	}
	return code, nil
}

// RenderQR draws payload as terminal text, two modules per character row.
func RenderQR(payload string) (string, error) {
	code, err := QRCode(payload)
	if err != nil {
		return "", err
	}

	b := code.Bounds()
	size := b.Dx()
	dark := func(x, y int) bool {
		x -= quietZone
		y -= quietZone
		if x < 0 || y < 0 || x >= size || y >= size {
			return false
		}
		r, _, _, _ := code.At(b.Min.X+x, b.Min.Y+y).RGBA()
		return r == 0
	}

	total := size + 2*quietZone
	var sb strings.Builder
	for y := 0; y < total; y += 2 {
		for x := 0; x < total; x++ {
			top, bottom := dark(x, y), dark(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
