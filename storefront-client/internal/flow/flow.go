// Package flow is the purchase modal as a state machine. Flow values are
// immutable: every transition returns a new Flow, and a failed transition
// returns the receiver unchanged together with the error.
package flow

import (
	"fmt"

	"github.com/fjod/template_store/storefront-client/internal/auth"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
)

type State int

const (
	Browsing State = iota
	Form
	Payment
	DownloadReady
	Closed
)

func (s State) String() string {
	switch s {
	case Browsing:
		return "browsing"
	case Form:
		return "form"
	case Payment:
		return "payment"
	case DownloadReady:
		return "download_ready"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sections says which parts of the purchase modal are shown.
type Sections struct {
	Form     bool
	Payment  bool
	Download bool
}

type CustomerInfo struct {
	Name  string
	Email string
}

type PurchaseResult struct {
	Success       bool
	Message       string
	TemplateName  string
	TransactionID string
}

type DownloadResult struct {
	Success      bool
	Message      string
	TemplateName string
	DownloadURL  string
}

type Flow struct {
	state    State
	entry    catalog.Entry
	key      string
	customer CustomerInfo

	purchased      PurchaseResult
	download       DownloadResult
	notice         string
	loginRequested bool
}

// New returns a flow with the modal hidden.
func New() Flow {
	return Flow{state: Browsing}
}

func (f Flow) State() State           { return f.state }
func (f Flow) Entry() catalog.Entry   { return f.entry }
func (f Flow) Customer() CustomerInfo { return f.customer }

// IdempotencyKey is the key every purchase attempt of this modal session
// is sent with.
func (f Flow) IdempotencyKey() string { return f.key }

// Visible reports whether the purchase modal is open.
func (f Flow) Visible() bool {
	return f.state == Form || f.state == Payment || f.state == DownloadReady
}

func (f Flow) Sections() Sections {
	return Sections{
		Form:     f.state == Form,
		Payment:  f.state == Payment,
		Download: f.state == DownloadReady,
	}
}

func (f Flow) Title() string {
	if f.state == Browsing {
		return ""
	}
	return "Покупка: " + f.entry.Name
}

// DownloadLabel is the caption of the download button.
func (f Flow) DownloadLabel() string {
	if f.state != DownloadReady {
		return ""
	}
	return "Скачать " + f.purchased.TemplateName
}

func (f Flow) Purchase() PurchaseResult { return f.purchased }
func (f Flow) Download() DownloadResult { return f.download }

// Notice is the message left by a finished download.
func (f Flow) Notice() string { return f.notice }

// LoginRequested is set when the flow closed because the user has to log
// in first.
func (f Flow) LoginRequested() bool { return f.loginRequested }

// PaymentCode is the payload the payment QR code encodes.
func (f Flow) PaymentCode() string {
	if f.state != Payment && f.state != DownloadReady {
		return ""
	}
	return PaymentURI(f.entry, f.key)
}

// Open starts a purchase of e from any state. Everything from an earlier
// purchase session is dropped.
func (f Flow) Open(e catalog.Entry, key string) Flow {
	return Flow{state: Form, entry: e, key: key}
}

// Validate checks that both customer fields are filled in. It only checks
// presence.
func (f Flow) Validate(info CustomerInfo) (Flow, error) {
	if f.state != Form {
		return f, f.invalid("validate")
	}
	if info.Name == "" || info.Email == "" {
		return f, &Error{Kind: KindValidation, Op: "validate", Message: MsgFillAllFields}
	}
	f.customer = info
	return f, nil
}

// Authorized moves to payment for a logged-in user. Anonymous users get the
// modal closed with a login request instead.
func (f Flow) Authorized(s auth.Session) (Flow, error) {
	if f.state != Form {
		return f, f.invalid("authorize")
	}
	if !s.Authenticated {
		f.state = Closed
		f.loginRequested = true
		return f, nil
	}
	f.state = Payment
	return f, nil
}

func (f Flow) Purchased(r PurchaseResult) (Flow, error) {
	if f.state != Payment {
		return f, f.invalid("purchase")
	}
	if !r.Success {
		return f, &Error{Kind: KindBusiness, Op: "purchase", Message: msgPaymentPrefix + r.Message}
	}
	f.state = DownloadReady
	f.purchased = r
	return f, nil
}

func (f Flow) Downloaded(r DownloadResult) (Flow, error) {
	if f.state != DownloadReady {
		return f, f.invalid("download")
	}
	if !r.Success {
		return f, &Error{Kind: KindBusiness, Op: "download", Message: msgDownloadPrefix + r.Message}
	}
	f.state = Closed
	f.download = r
	f.notice = r.Message
	return f, nil
}

// Close hides the modal, dropping whatever step it was on.
func (f Flow) Close() Flow {
	f.state = Closed
	return f
}

func (f Flow) invalid(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, f.state)
}
