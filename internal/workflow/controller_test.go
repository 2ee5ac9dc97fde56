package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scanorder/internal/domain"
	"scanorder/internal/port"
	"scanorder/internal/stream"
	"scanorder/internal/workflow"
	"scanorder/mocks"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	ctrl      *workflow.Controller
	submitter *mocks.MockDocumentSubmitter
	committer *mocks.MockOrderCommitter
	source    *mocks.FakeEventSource
	cancel    context.CancelFunc

	mu    sync.Mutex
	views []workflow.View
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		submitter: new(mocks.MockDocumentSubmitter),
		committer: new(mocks.MockOrderCommitter),
		source:    mocks.NewFakeEventSource(),
	}
	h.ctrl = workflow.NewController(h.submitter, h.committer, h.source, workflow.Options{
		OnChange: func(v workflow.View) {
			h.mu.Lock()
			h.views = append(h.views, v)
			h.mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.ctrl.Done()
	})
	return h
}

func (h *harness) stages() []domain.Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.Stage
	for _, v := range h.views {
		if len(out) == 0 || out[len(out)-1] != v.Stage {
			out = append(out, v.Stage)
		}
	}
	return out
}

func (h *harness) waitStage(t *testing.T, stage domain.Stage) workflow.View {
	t.Helper()
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().Stage == stage }, waitFor, tick,
		"stage never reached %s (last %s)", stage, h.ctrl.Snapshot().Stage)
	return h.ctrl.Snapshot()
}

func (h *harness) stream(t *testing.T, id domain.DocumentID) *mocks.FakeEventStream {
	t.Helper()
	require.Eventually(t, func() bool { return h.source.Latest(id) != nil }, waitFor, tick)
	return h.source.Latest(id)
}

func scanFile() port.UploadFile {
	return port.UploadFile{Name: "invoice.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4")}
}

func f64(v float64) *float64 { return &v }

func widgetPayload() *domain.InvoicePayload {
	return &domain.InvoicePayload{
		InvoiceNumber: "INV-42",
		Items: []domain.PayloadLineItem{
			{Description: "Widget", Qty: 2, UnitPrice: 5, LineTotal: 10},
		},
		Freight: f64(3),
		TaxRate: f64(8),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// reviewable drives the controller through scenario 1 and returns the harness.
func reviewable(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID("42"), nil).Once()

	require.NoError(t, h.ctrl.Submit(context.Background(), scanFile()))
	h.waitStage(t, domain.StageProcessing)

	es := h.stream(t, "42")
	es.Emit(domain.StreamEvent{Type: domain.EventStatus, Status: domain.StatusConnected})
	es.Emit(domain.StreamEvent{Type: domain.EventStatus, Status: "processing"})
	es.Emit(domain.StreamEvent{Type: domain.EventStatus, Status: "extracting"})
	es.Emit(domain.StreamEvent{Type: domain.EventExtracted, Data: widgetPayload()})
	es.Emit(domain.StreamEvent{Type: domain.EventStatus, Status: "extracted"})

	h.waitStage(t, domain.StageReviewable)
	return h
}

func TestController_ExtractionBecomesReviewable(t *testing.T) {
	h := reviewable(t)

	v := h.ctrl.Snapshot()
	assert.Equal(t, domain.DocumentID("42"), v.DocumentID)
	assert.Empty(t, v.Error)
	require.NotNil(t, v.Draft)
	assert.Equal(t, "INV-42", v.Draft.InvoiceNumber)
	assertDecimal(t, "10.00", v.Draft.Subtotal)
	assertDecimal(t, "0.80", v.Draft.TaxAmt)
	assertDecimal(t, "13.80", v.Draft.TotalDue)

	assert.Equal(t, []domain.Stage{
		domain.StageUploading,
		domain.StageProcessing,
		domain.StageExtracting,
		domain.StageReviewable,
	}, h.stages())
	assert.Eventually(t, h.source.Latest("42").IsClosed, waitFor, tick)
}

func TestController_EditQuantity(t *testing.T) {
	h := reviewable(t)

	require.NoError(t, h.ctrl.EditItem(context.Background(), 0, "qty", "3"))

	v := h.ctrl.Snapshot()
	assert.Equal(t, domain.StageReviewable, v.Stage)
	assertDecimal(t, "15.00", v.Draft.Items[0].LineTotal)
	assertDecimal(t, "15.00", v.Draft.Subtotal)
	assertDecimal(t, "1.20", v.Draft.TaxAmt)
	assertDecimal(t, "19.20", v.Draft.TotalDue)
}

func TestController_TaxOverride(t *testing.T) {
	h := reviewable(t)
	ctx := context.Background()

	require.NoError(t, h.ctrl.EditHeader(ctx, "tax_amt", "2.00"))
	require.NoError(t, h.ctrl.EditItem(ctx, 0, "qty", "3"))

	v := h.ctrl.Snapshot()
	assert.True(t, v.Draft.TaxOverridden)
	assertDecimal(t, "2.00", v.Draft.TaxAmt)
	assertDecimal(t, "20.00", v.Draft.TotalDue)
}

func TestController_StreamFailure(t *testing.T) {
	h := newHarness(t)
	h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID("7"), nil).Once()

	require.NoError(t, h.ctrl.Submit(context.Background(), scanFile()))
	h.waitStage(t, domain.StageProcessing)
	es := h.stream(t, "7")
	es.Emit(domain.StreamEvent{Type: domain.EventStatus, Status: "processing"})
	es.Emit(domain.StreamEvent{Type: domain.EventError, Message: "unreadable scan"})

	v := h.waitStage(t, domain.StageFailed)
	assert.Equal(t, "unreadable scan", v.Error)
	assert.Nil(t, v.Draft)
	var streamErr *domain.StreamError
	assert.True(t, errors.As(v.Cause, &streamErr))
	assert.Eventually(t, es.IsClosed, waitFor, tick)

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), scanFile()), domain.ErrSubmitNotAllowed)
}

func TestController_StreamEndsWithoutResult(t *testing.T) {
	h := newHarness(t)
	h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID("7"), nil).Once()

	require.NoError(t, h.ctrl.Submit(context.Background(), scanFile()))
	h.stream(t, "7").End()

	v := h.waitStage(t, domain.StageFailed)
	assert.Equal(t, stream.MsgStreamClosed, v.Error)
}

func TestController_SaveRejectedWhileExtracting(t *testing.T) {
	h := newHarness(t)
	h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID("9"), nil).Once()

	require.NoError(t, h.ctrl.Submit(context.Background(), scanFile()))
	h.waitStage(t, domain.StageProcessing)
	h.stream(t, "9").Emit(domain.StreamEvent{Type: domain.EventStatus, Status: "calling_llm"})
	v := h.waitStage(t, domain.StageExtracting)
	assert.Equal(t, "calling_llm", v.StatusLabel)

	err := h.ctrl.Save(context.Background())

	assert.ErrorIs(t, err, domain.ErrSaveNotAllowed)
	assert.Equal(t, domain.StageExtracting, h.ctrl.Snapshot().Stage)
	h.committer.AssertNotCalled(t, "CommitDraft", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_CommitRejectedStaysReviewable(t *testing.T) {
	h := reviewable(t)
	before := h.ctrl.Snapshot().Draft

	h.committer.On("CommitDraft", mock.Anything, domain.DocumentID("42"), mock.Anything).
		Return(domain.OrderID(""), &domain.ResponseError{StatusCode: 400, Message: "duplicate order"}).Once()

	require.NoError(t, h.ctrl.Save(context.Background()))
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().Error == "duplicate order" }, waitFor, tick)

	v := h.ctrl.Snapshot()
	assert.Equal(t, domain.StageReviewable, v.Stage)
	assert.Equal(t, before, v.Draft)
	assert.Empty(t, v.OrderID)
	var commitErr *domain.CommitError
	assert.True(t, errors.As(v.Cause, &commitErr))
	h.committer.AssertExpectations(t)
}

func TestController_CommitErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"status without message", &domain.ResponseError{StatusCode: 500}, domain.MsgSaveFailed},
		{
			"reply without order id",
			&domain.MalformedResponseError{StatusCode: 200, Reason: "response carried no sales_order_id"},
			"Save failed: response carried no sales_order_id",
		},
		{"unreachable", errors.New("connection refused"), domain.MsgSaveUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := reviewable(t)
			h.committer.On("CommitDraft", mock.Anything, mock.Anything, mock.Anything).
				Return(domain.OrderID(""), tt.err).Once()

			require.NoError(t, h.ctrl.Save(context.Background()))
			require.Eventually(t, func() bool { return h.ctrl.Snapshot().Error != "" }, waitFor, tick)

			v := h.ctrl.Snapshot()
			assert.Equal(t, domain.StageReviewable, v.Stage)
			assert.Equal(t, tt.wantMsg, v.Error)
		})
	}
}

func TestController_SaveCommitsEditedDraft(t *testing.T) {
	h := reviewable(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.EditItem(ctx, 0, "qty", "3"))
	require.NoError(t, h.ctrl.EditHeader(ctx, "purchase_order_number", "PO-9"))

	h.committer.On("CommitDraft", mock.Anything, domain.DocumentID("42"), mock.MatchedBy(func(p *domain.InvoicePayload) bool {
		return p.PurchaseOrderNumber == "PO-9" &&
			len(p.Items) == 1 && p.Items[0].Qty == 3 && p.Items[0].LineTotal == 15 &&
			p.TotalDue != nil && *p.TotalDue == 19.2
	})).Return(domain.OrderID("75124"), nil).Once()

	require.NoError(t, h.ctrl.Save(ctx))
	v := h.waitStage(t, domain.StageSaved)

	assert.Equal(t, domain.OrderID("75124"), v.OrderID)
	assert.Empty(t, v.Error)
	h.committer.AssertExpectations(t)

	assert.ErrorIs(t, h.ctrl.Save(ctx), domain.ErrSaveNotAllowed)
	assert.ErrorIs(t, h.ctrl.EditItem(ctx, 0, "qty", "1"), domain.ErrEditNotAllowed)
}

func TestController_UploadFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"submission error", &domain.SubmissionError{Message: "Unsupported file type: text/plain"}, "Unsupported file type: text/plain"},
		{"untyped error", errors.New("boom"), domain.MsgConnectFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID(""), tt.err).Once()

			require.NoError(t, h.ctrl.Submit(context.Background(), scanFile()))
			v := h.waitStage(t, domain.StageFailed)

			assert.Equal(t, tt.wantMsg, v.Error)
			assert.Empty(t, v.DocumentID)
			var subErr *domain.SubmissionError
			assert.True(t, errors.As(v.Cause, &subErr))
		})
	}
}

func TestController_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.Save(ctx), domain.ErrSaveNotAllowed)
	assert.ErrorIs(t, h.ctrl.EditHeader(ctx, "terms", "Net 30"), domain.ErrEditNotAllowed)
	assert.ErrorIs(t, h.ctrl.EditItem(ctx, 0, "qty", "1"), domain.ErrEditNotAllowed)
	assert.Equal(t, domain.StageIdle, h.ctrl.Snapshot().Stage)

	release := make(chan struct{})
	h.submitter.On("Submit", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(domain.DocumentID("5"), nil).Once()

	require.NoError(t, h.ctrl.Submit(ctx, scanFile()))
	assert.Equal(t, domain.StageUploading, h.ctrl.Snapshot().Stage)
	assert.ErrorIs(t, h.ctrl.Submit(ctx, scanFile()), domain.ErrSubmitNotAllowed)
	close(release)
	h.waitStage(t, domain.StageProcessing)
}

func TestController_EditErrors(t *testing.T) {
	h := reviewable(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.ctrl.EditItem(ctx, 1, "qty", "1"), domain.ErrItemOutOfRange)
	assert.ErrorIs(t, h.ctrl.EditItem(ctx, -1, "qty", "1"), domain.ErrItemOutOfRange)
	assert.ErrorIs(t, h.ctrl.EditItem(ctx, 0, "line_total", "1"), domain.ErrReadOnlyField)
	assert.ErrorIs(t, h.ctrl.EditHeader(ctx, "subtotal", "1"), domain.ErrReadOnlyField)
	assert.ErrorIs(t, h.ctrl.EditHeader(ctx, "colour", "red"), domain.ErrUnknownField)
	assert.ErrorIs(t, h.ctrl.EditHeader(ctx, "freight", "abc"), domain.ErrInvalidFieldValue)

	assertDecimal(t, "13.80", h.ctrl.Snapshot().Draft.TotalDue)
}

func TestController_ResetIsolatesSupersededDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID("1"), nil).Once()
	h.submitter.On("Submit", mock.Anything, mock.Anything).Return(domain.DocumentID("2"), nil).Once()

	require.NoError(t, h.ctrl.Submit(ctx, scanFile()))
	h.waitStage(t, domain.StageProcessing)
	first := h.stream(t, "1")

	require.NoError(t, h.ctrl.Reset(ctx))
	v := h.ctrl.Snapshot()
	assert.Equal(t, domain.StageIdle, v.Stage)
	assert.Empty(t, v.DocumentID)
	assert.True(t, first.IsClosed())

	require.NoError(t, h.ctrl.Submit(ctx, scanFile()))
	h.waitStage(t, domain.StageProcessing)
	second := h.stream(t, "2")

	stale := widgetPayload()
	stale.InvoiceNumber = "STALE"
	first.Emit(domain.StreamEvent{Type: domain.EventExtracted, Data: stale})
	second.Emit(domain.StreamEvent{Type: domain.EventExtracted, Data: &domain.InvoicePayload{
		InvoiceNumber: "FRESH",
		Items:         []domain.PayloadLineItem{{Description: "Bolt", Qty: 4, UnitPrice: 0.25}},
	}})

	v = h.waitStage(t, domain.StageReviewable)
	assert.Equal(t, domain.DocumentID("2"), v.DocumentID)
	assert.Equal(t, "FRESH", v.Draft.InvoiceNumber)
	assertDecimal(t, "1.00", v.Draft.TotalDue)
}

func TestController_ResetDuringUploadDropsResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	h.submitter.On("Submit", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(domain.DocumentID("3"), nil).Once()

	require.NoError(t, h.ctrl.Submit(ctx, scanFile()))
	<-started
	require.NoError(t, h.ctrl.Reset(ctx))
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, domain.StageIdle, h.ctrl.Snapshot().Stage)
	assert.Equal(t, 0, h.source.Subscriptions("3"))
}

func TestController_ResetFromReviewable(t *testing.T) {
	h := reviewable(t)

	require.NoError(t, h.ctrl.Reset(context.Background()))

	v := h.ctrl.Snapshot()
	assert.Equal(t, domain.StageIdle, v.Stage)
	assert.Nil(t, v.Draft)
	assert.Empty(t, v.Error)
	assert.Empty(t, v.StatusLabel)
}

func TestController_Stopped(t *testing.T) {
	h := newHarness(t)
	h.cancel()
	<-h.ctrl.Done()

	assert.ErrorIs(t, h.ctrl.Submit(context.Background(), scanFile()), domain.ErrControllerStopped)
	assert.ErrorIs(t, h.ctrl.Reset(context.Background()), domain.ErrControllerStopped)
	assert.Error(t, h.ctrl.Run(context.Background()))
}
