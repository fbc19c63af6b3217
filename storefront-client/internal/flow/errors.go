package flow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownTemplate   = errors.New("unknown template")
	// ErrBusy is returned while a purchase or download call is in flight.
	ErrBusy = errors.New("request already in progress")
)

type Kind int

const (
	// KindValidation: the form is incomplete; nothing was sent.
	KindValidation Kind = iota + 1
	// KindTransport: the request failed or its answer was unreadable.
	KindTransport
	// KindBusiness: the backend answered with success:false.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindBusiness:
		return "business"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

const (
	MsgFillAllFields   = "Пожалуйста, заполните все поля"
	MsgAuthCheckFailed = "Ошибка проверки авторизации"
	MsgPurchaseFailed  = "Ошибка при обработке покупки"
	MsgDownloadFailed  = "Ошибка при скачивании шаблона"
	msgPaymentPrefix   = "Ошибка оплаты: "
	msgDownloadPrefix  = "Ошибка скачивания: "
)

// Error is what a failed step reports. Message is ready to show to the user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a flow Error of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
