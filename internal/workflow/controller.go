// Package workflow drives one document at a time through upload, extraction,
// review and commit.
//
// All state lives on the goroutine started by Controller.Run. Public methods,
// upload and commit completions, and push-stream notifications are queued as
// events and applied in arrival order by a single transition function.
package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/draft"
	"scanorder/internal/port"
	"scanorder/internal/stream"
)

// View is a read-only picture of the workflow for a presentation layer.
type View struct {
	Stage domain.Stage
	// StatusLabel is the last progress label the backend reported.
	StatusLabel string
	DocumentID  domain.DocumentID
	// Draft is a private copy, nil until an extraction is installed.
	Draft *domain.DraftInvoice
	Error string
	// Cause is the typed error behind Error: *domain.SubmissionError,
	// *domain.StreamError or *domain.CommitError.
	Cause   error
	OrderID domain.OrderID
}

// Options configures a Controller.
type Options struct {
	// OnChange is called on the controller goroutine after every transition.
	// It must not block and must not call back into the Controller.
	OnChange func(View)
	Logger   *zap.Logger
}

// Controller is the review workflow state machine.
type Controller struct {
	submitter port.DocumentSubmitter
	committer port.OrderCommitter
	channel   *stream.Channel
	onChange  func(View)
	logger    *zap.Logger

	inbox   chan event
	done    chan struct{}
	started atomic.Bool

	viewMu sync.RWMutex
	view   View

	// Owned by the Run goroutine.
	st state
}

type state struct {
	stage   domain.Stage
	label   string
	docID   domain.DocumentID
	model   *draft.Model
	err     string
	cause   error
	orderID domain.OrderID

	// gen identifies the current document. Completions and notifications
	// tagged with an older generation are stale.
	gen      uint64
	cancelOp context.CancelFunc
}

// NewController wires a Controller to its collaborators. Call Run before using it.
func NewController(submitter port.DocumentSubmitter, committer port.OrderCommitter, source port.EventSource, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		submitter: submitter,
		committer: committer,
		channel:   stream.NewChannel(source, log.Named("stream")),
		onChange:  opts.OnChange,
		logger:    log,
		inbox:     make(chan event),
		done:      make(chan struct{}),
		st: state{
			stage: domain.StageIdle,
			model: draft.NewModel(),
		},
	}
	c.view = View{Stage: domain.StageIdle}
	return c
}

// Run services the event queue until ctx ends. It releases any open channel
// before returning. Run may be called only once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("workflow controller already running")
	}
	defer close(c.done)
	defer c.channel.Release()

	c.logger.Debug("workflow controller started")
	for {
		select {
		case <-ctx.Done():
			c.cancelOp()
			c.logger.Debug("workflow controller stopped")
			return ctx.Err()
		case ev := <-c.inbox:
			c.dispatch(ctx, ev)
		}
	}
}

// Submit starts uploading file. It returns once the workflow is uploading;
// progress is reported through the View. file.Body is read on another
// goroutine and must stay readable until the stage leaves uploading.
func (c *Controller) Submit(ctx context.Context, file port.UploadFile) error {
	return c.call(ctx, submitCmd{file: file})
}

// EditHeader sets one header field of the draft by its wire name.
func (c *Controller) EditHeader(ctx context.Context, field, value string) error {
	return c.call(ctx, editHeaderCmd{field: field, value: value})
}

// EditItem sets one field of the line item at index.
func (c *Controller) EditItem(ctx context.Context, index int, field, value string) error {
	return c.call(ctx, editItemCmd{index: index, field: field, value: value})
}

// Save starts committing the draft. It returns once the workflow is saving.
func (c *Controller) Save(ctx context.Context) error {
	return c.call(ctx, saveCmd{})
}

// Reset discards the current document and returns to idle.
func (c *Controller) Reset(ctx context.Context) error {
	return c.call(ctx, resetCmd{})
}

// Snapshot returns the state after the most recent transition.
func (c *Controller) Snapshot() View {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()

	v := c.view
	v.Draft = v.Draft.Clone()
	return v
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) call(ctx context.Context, cmd command) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- commandEvent{cmd: cmd, reply: reply}:
	case <-c.done:
		return domain.ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return domain.ErrControllerStopped
	}
}

// post delivers an async completion unless ctx ends first.
func (c *Controller) post(ctx context.Context, ev event) {
	select {
	case c.inbox <- ev:
	case <-ctx.Done():
	case <-c.done:
	}
}

func (c *Controller) sink(gen uint64) stream.Sink {
	return func(ctx context.Context, n domain.Notification) {
		if ctx.Err() != nil {
			return
		}
		c.post(ctx, notified{gen: gen, n: n})
	}
}

func (c *Controller) cancelOp() {
	if c.st.cancelOp != nil {
		c.st.cancelOp()
		c.st.cancelOp = nil
	}
}

func (c *Controller) publish() View {
	v := View{
		Stage:       c.st.stage,
		StatusLabel: c.st.label,
		DocumentID:  c.st.docID,
		Draft:       c.st.model.Draft(),
		Error:       c.st.err,
		Cause:       c.st.cause,
		OrderID:     c.st.orderID,
	}
	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()

	out := v
	out.Draft = v.Draft.Clone()
	return out
}
