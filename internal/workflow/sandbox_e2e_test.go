package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanorder/internal/api"
	"scanorder/internal/domain"
	"scanorder/internal/port"
	"scanorder/internal/sandbox/sandboxtest"
	"scanorder/internal/upload"
	"scanorder/internal/workflow"
)

const e2eWait = 5 * time.Second

type e2e struct {
	srv    *sandboxtest.Server
	client *api.Client
	ctrl   *workflow.Controller
}

func newE2E(t *testing.T, opts sandboxtest.Options) *e2e {
	t.Helper()
	srv := sandboxtest.NewWithOptions(t, opts)
	client := api.NewClientWithHTTP(srv.URL, srv.Client())
	ctrl := workflow.NewController(upload.NewSubmitter(client, nil), client, client, workflow.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-ctrl.Done()
	})
	return &e2e{srv: srv, client: client, ctrl: ctrl}
}

func (e *e2e) waitStage(t *testing.T, stage domain.Stage) workflow.View {
	t.Helper()
	require.Eventually(t, func() bool { return e.ctrl.Snapshot().Stage == stage }, e2eWait, tick,
		"stage never reached %s (last %+v)", stage, e.ctrl.Snapshot())
	return e.ctrl.Snapshot()
}

func pdf(name string) port.UploadFile {
	return port.UploadFile{Name: name, ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4\n%scan\n")}
}

func TestSandbox_ReviewAndCommit(t *testing.T) {
	e := newE2E(t, sandboxtest.Options{StageDelay: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, e.ctrl.Submit(ctx, pdf("invoice.pdf")))
	v := e.waitStage(t, domain.StageReviewable)

	require.NotNil(t, v.Draft)
	assert.Equal(t, "SO-43659", v.Draft.InvoiceNumber)
	require.Len(t, v.Draft.Items, 2)
	assertDecimal(t, "14.5", v.Draft.Subtotal)
	assertDecimal(t, "1.16", v.Draft.TaxAmt)
	assertDecimal(t, "18.66", v.Draft.TotalDue)

	require.NoError(t, e.ctrl.EditItem(ctx, 1, "qty", "5"))
	v = e.ctrl.Snapshot()
	assertDecimal(t, "17.5", v.Draft.Subtotal)
	assertDecimal(t, "1.4", v.Draft.TaxAmt)
	assertDecimal(t, "21.9", v.Draft.TotalDue)

	require.NoError(t, e.ctrl.Save(ctx))
	v = e.waitStage(t, domain.StageSaved)
	assert.Empty(t, v.Error)

	order, err := e.client.GetOrder(ctx, v.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order.Header.TotalDue)
	assert.InDelta(t, 21.9, *order.Header.TotalDue, 1e-9)
	require.Len(t, order.Details, 2)
	assert.InDelta(t, 7.5, order.Details[1].LineTotal, 1e-9)

	status, err := e.client.GetDocument(ctx, v.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusSaved, status.Status)
	assert.Equal(t, v.OrderID, status.SalesOrderID)
}

func TestSandbox_ExtractionFailure(t *testing.T) {
	e := newE2E(t, sandboxtest.Options{})

	require.NoError(t, e.ctrl.Submit(context.Background(), pdf("unreadable.pdf")))
	v := e.waitStage(t, domain.StageFailed)

	assert.Equal(t, "unreadable scan", v.Error)
	var streamErr *domain.StreamError
	assert.True(t, errors.As(v.Cause, &streamErr))
}

func TestSandbox_UploadRejected(t *testing.T) {
	e := newE2E(t, sandboxtest.Options{})
	file := port.UploadFile{Name: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("plain text, not a scan")}

	require.NoError(t, e.ctrl.Submit(context.Background(), file))
	v := e.waitStage(t, domain.StageFailed)

	assert.Equal(t, "Unsupported file type: text/plain. Please upload a PDF or image file (PNG, JPEG, GIF, WEBP, TIFF, BMP).", v.Error)
	var subErr *domain.SubmissionError
	require.True(t, errors.As(v.Cause, &subErr))
	var respErr *api.ResponseError
	require.True(t, errors.As(subErr, &respErr))
	assert.Equal(t, http.StatusUnsupportedMediaType, respErr.StatusCode)
}

func TestSandbox_SecondSaveIsRejected(t *testing.T) {
	e := newE2E(t, sandboxtest.Options{})
	ctx := context.Background()

	require.NoError(t, e.ctrl.Submit(ctx, pdf("invoice.pdf")))
	e.waitStage(t, domain.StageReviewable)
	require.NoError(t, e.ctrl.Save(ctx))
	v := e.waitStage(t, domain.StageSaved)

	_, err := e.client.CommitDraft(ctx, v.DocumentID, &domain.InvoicePayload{InvoiceNumber: "again"})
	var respErr *api.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Equal(t, "Document already saved as order "+v.OrderID.String(), respErr.Message)
}

func TestSandbox_LateSubscriberGetsReplay(t *testing.T) {
	e := newE2E(t, sandboxtest.Options{})
	ctx := context.Background()

	id, err := e.client.UploadDocument(ctx, pdf("invoice.pdf"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		doc, err := e.client.GetDocument(ctx, id)
		return err == nil && doc.Status == domain.DocumentStatusExtracted
	}, e2eWait, tick)

	es, err := e.client.Subscribe(ctx, id)
	require.NoError(t, err)
	defer func() { _ = es.Close() }()

	var names []string
	for {
		ev, err := es.Next()
		if err != nil {
			break
		}
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"status", "extracted", "status"}, names)
}
