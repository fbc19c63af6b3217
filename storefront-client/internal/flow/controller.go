package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/template_store/storefront-client/internal/api"
	"github.com/fjod/template_store/storefront-client/internal/auth"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is the part of the storefront API a purchase needs.
type Backend interface {
	Purchase(ctx context.Context, templateID int64, idempotencyKey string) (*api.PurchaseResponse, error)
	Download(ctx context.Context, templateID int64) (*api.DownloadResponse, error)
}

// SessionSource answers whether the user is logged in right now.
type SessionSource interface {
	Refresh(ctx context.Context) (auth.Session, error)
}

// Controller owns the selected template and runs the flow against the
// backend. Only one network step runs at a time; a second one gets ErrBusy.
// Transitions are applied only on a definitive backend answer, so transport
// failures leave the flow where it was.
type Controller struct {
	catalog  *catalog.Catalog
	backend  Backend
	sessions SessionSource
	logger   *zap.Logger
	newKey   func() string

	mu   sync.Mutex
	flow Flow
	busy bool
	// gen changes whenever the modal is opened, closed or reset, so a
	// late answer for an abandoned session is dropped.
	gen uint64
}

func NewController(cat *catalog.Catalog, backend Backend, sessions SessionSource, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		catalog:  cat,
		backend:  backend,
		sessions: sessions,
		logger:   logger,
		newKey:   uuid.NewString,
		flow:     New(),
	}
}

// Flow returns the current state.
func (c *Controller) Flow() Flow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flow
}

// Open selects template id and shows the customer form.
func (c *Controller) Open(id int64) (Flow, error) {
	entry, ok := c.catalog.Find(id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		return c.flow, fmt.Errorf("%w: %d", ErrUnknownTemplate, id)
	}
	c.flow = c.flow.Open(entry, c.newKey())
	c.gen++
	return c.flow, nil
}

func (c *Controller) Close() Flow {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flow = c.flow.Close()
	c.gen++
	return c.flow
}

// Reset returns to browsing with nothing selected.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flow = New()
	c.gen++
}

// Proceed validates the form and checks the login. An incomplete form never
// reaches the network.
func (c *Controller) Proceed(ctx context.Context, info CustomerInfo) (Flow, error) {
	gen, err := c.begin()
	if err != nil {
		return c.Flow(), err
	}

	if _, err := c.Flow().Validate(info); err != nil {
		return c.finish(gen, nil, err)
	}

	session, err := c.sessions.Refresh(ctx)
	if err != nil {
		c.logger.Error("auth check failed", zap.Error(err))
		return c.finish(gen, nil, &Error{Kind: KindTransport, Op: "authorize", Message: MsgAuthCheckFailed, Err: err})
	}

	return c.finish(gen, func(cur Flow) (Flow, error) {
		validated, err := cur.Validate(info)
		if err != nil {
			return cur, err
		}
		return validated.Authorized(session)
	}, nil)
}

// Confirm pays for the selected template.
func (c *Controller) Confirm(ctx context.Context) (Flow, error) {
	gen, err := c.begin()
	if err != nil {
		return c.Flow(), err
	}

	f := c.Flow()
	if f.State() != Payment {
		_, err := f.Purchased(PurchaseResult{})
		return c.finish(gen, nil, err)
	}

	resp, err := c.backend.Purchase(ctx, f.Entry().ID, f.IdempotencyKey())
	if err != nil {
		c.logger.Error("purchase error", zap.Int64("template_id", f.Entry().ID), zap.Error(err))
		return c.finish(gen, nil, &Error{Kind: KindTransport, Op: "purchase", Message: MsgPurchaseFailed, Err: err})
	}

	return c.finish(gen, func(cur Flow) (Flow, error) {
		return cur.Purchased(PurchaseResult{
			Success:       resp.Success,
			Message:       resp.Message,
			TemplateName:  resp.TemplateName,
			TransactionID: resp.TransactionID,
		})
	}, nil)
}

// Download fetches the purchased template's download link and closes the
// modal on success.
func (c *Controller) Download(ctx context.Context) (Flow, error) {
	gen, err := c.begin()
	if err != nil {
		return c.Flow(), err
	}

	f := c.Flow()
	if f.State() != DownloadReady {
		_, err := f.Downloaded(DownloadResult{})
		return c.finish(gen, nil, err)
	}

	resp, err := c.backend.Download(ctx, f.Entry().ID)
	if err != nil {
		c.logger.Error("download error", zap.Int64("template_id", f.Entry().ID), zap.Error(err))
		return c.finish(gen, nil, &Error{Kind: KindTransport, Op: "download", Message: MsgDownloadFailed, Err: err})
	}

	return c.finish(gen, func(cur Flow) (Flow, error) {
		return cur.Downloaded(DownloadResult{
			Success:      resp.Success,
			Message:      resp.Message,
			TemplateName: resp.TemplateName,
			DownloadURL:  resp.DownloadURL,
		})
	}, nil)
}

func (c *Controller) begin() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return 0, ErrBusy
	}
	c.busy = true
	return c.gen, nil
}

// finish clears the in-flight flag and, when the modal session is still the
// one the call started in, applies step to the current flow.
func (c *Controller) finish(gen uint64, step func(Flow) (Flow, error), stepErr error) (Flow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if stepErr != nil {
		return c.flow, stepErr
	}
	if gen != c.gen {
		return c.flow, fmt.Errorf("%w: purchase session changed during the request", ErrInvalidTransition)
	}

	next, err := step(c.flow)
	if err != nil {
		return c.flow, err
	}
	c.flow = next
	return c.flow, nil
}
