package workflow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// event is anything queued for the controller goroutine.
type event interface{ isEvent() }

// command is a caller request; its result is returned through commandEvent.reply.
type command interface{ isCommand() }

type commandEvent struct {
	cmd   command
	reply chan<- error
}

type (
	submitCmd     struct{ file port.UploadFile }
	editHeaderCmd struct{ field, value string }
	editItemCmd   struct {
		index        int
		field, value string
	}
	saveCmd  struct{}
	resetCmd struct{}
)

type uploadDone struct {
	gen uint64
	id  domain.DocumentID
	err error
}

type commitDone struct {
	gen     uint64
	orderID domain.OrderID
	err     error
}

type notified struct {
	gen uint64
	n   domain.Notification
}

func (commandEvent) isEvent() {}
func (uploadDone) isEvent()   {}
func (commitDone) isEvent()   {}
func (notified) isEvent()     {}

func (submitCmd) isCommand()     {}
func (editHeaderCmd) isCommand() {}
func (editItemCmd) isCommand()   {}
func (saveCmd) isCommand()       {}
func (resetCmd) isCommand()      {}

func (c *Controller) dispatch(ctx context.Context, ev event) {
	changed, err := c.apply(ctx, ev)
	var v View
	if changed {
		v = c.publish()
	}
	if ce, ok := ev.(commandEvent); ok {
		ce.reply <- err
	}
	if changed && c.onChange != nil {
		c.onChange(v)
	}
}

// apply is the transition function. It reports whether the visible state
// changed and, for commands, the result to return to the caller.
func (c *Controller) apply(ctx context.Context, ev event) (bool, error) {
	st := &c.st
	switch ev := ev.(type) {
	case commandEvent:
		return c.applyCommand(ctx, ev.cmd)

	case uploadDone:
		if ev.gen != st.gen || st.stage != domain.StageUploading {
			return false, nil
		}
		c.cancelOp()
		if ev.err != nil {
			st.stage = domain.StageFailed
			st.setErr(submissionError(ev.err))
			c.logger.Info("upload failed", zap.String("error", st.err))
			return true, nil
		}
		st.docID = ev.id
		st.stage = domain.StageProcessing
		c.channel.Open(ctx, ev.id, c.sink(st.gen))
		c.logger.Info("document uploaded", zap.String("document_id", ev.id.String()))
		return true, nil

	case notified:
		if ev.gen != st.gen {
			c.logger.Debug("dropping notification for superseded document")
			return false, nil
		}
		return c.applyNotification(ev.n), nil

	case commitDone:
		if ev.gen != st.gen || st.stage != domain.StageSaving {
			return false, nil
		}
		c.cancelOp()
		if ev.err != nil {
			ce := commitError(ev.err)
			st.stage = domain.StageReviewable
			st.setErr(ce)
			c.logger.Info("commit failed", zap.String("document_id", st.docID.String()), zap.Error(ev.err))
			return true, nil
		}
		st.stage = domain.StageSaved
		st.orderID = ev.orderID
		st.setErr(nil)
		c.channel.Release()
		c.logger.Info("draft committed",
			zap.String("document_id", st.docID.String()),
			zap.String("order_id", ev.orderID.String()),
		)
		return true, nil
	}
	return false, nil
}

func (c *Controller) applyCommand(ctx context.Context, cmd command) (bool, error) {
	st := &c.st
	switch cmd := cmd.(type) {
	case submitCmd:
		if st.stage != domain.StageIdle {
			return false, domain.ErrSubmitNotAllowed
		}
		c.newDocument()
		st.stage = domain.StageUploading

		opCtx, cancel := context.WithCancel(ctx)
		st.cancelOp = cancel
		gen := st.gen
		go func() {
			id, err := c.submitter.Submit(opCtx, cmd.file)
			c.post(opCtx, uploadDone{gen: gen, id: id, err: err})
		}()
		return true, nil

	case editHeaderCmd:
		if st.stage != domain.StageReviewable {
			return false, domain.ErrEditNotAllowed
		}
		if err := st.model.SetHeaderField(cmd.field, cmd.value); err != nil {
			return false, err
		}
		return true, nil

	case editItemCmd:
		if st.stage != domain.StageReviewable {
			return false, domain.ErrEditNotAllowed
		}
		if cmd.index < 0 || cmd.index >= st.model.ItemCount() {
			return false, domain.ErrItemOutOfRange
		}
		if err := st.model.SetItem(cmd.index, cmd.field, cmd.value); err != nil {
			return false, err
		}
		return true, nil

	case saveCmd:
		if st.stage != domain.StageReviewable || st.model.Empty() || st.docID == "" {
			return false, domain.ErrSaveNotAllowed
		}
		st.stage = domain.StageSaving
		st.setErr(nil)

		opCtx, cancel := context.WithCancel(ctx)
		st.cancelOp = cancel
		gen, id, payload := st.gen, st.docID, st.model.Payload()
		go func() {
			orderID, err := c.committer.CommitDraft(opCtx, id, payload)
			c.post(opCtx, commitDone{gen: gen, orderID: orderID, err: err})
		}()
		return true, nil

	case resetCmd:
		c.newDocument()
		return true, nil
	}
	return false, nil
}

// applyNotification handles a push-stream notification for the current document.
func (c *Controller) applyNotification(n domain.Notification) bool {
	st := &c.st
	switch n := n.(type) {
	case domain.StageChanged:
		if !st.stage.IsPending() {
			return false
		}
		st.label = n.Label
		if next, ok := domain.StageForLabel(n.Label); ok && st.stage.Before(next) {
			st.stage = next
		}
		return true

	case domain.ResultReady:
		if st.stage != domain.StageProcessing && st.stage != domain.StageExtracting {
			return false
		}
		st.model.Install(n.Payload)
		st.stage = domain.StageReviewable
		st.setErr(nil)
		c.logger.Info("extraction ready",
			zap.String("document_id", st.docID.String()),
			zap.Int("items", st.model.ItemCount()),
		)
		return true

	case domain.Failed:
		if !st.stage.IsPending() && st.stage != domain.StageSaving {
			return false
		}
		st.stage = domain.StageFailed
		st.setErr(&domain.StreamError{Message: n.Message})
		c.channel.Release()
		c.logger.Info("extraction failed", zap.String("document_id", st.docID.String()), zap.String("error", n.Message))
		return true
	}
	return false
}

// newDocument discards everything tied to the current document and moves to
// the next generation.
func (c *Controller) newDocument() {
	c.cancelOp()
	c.channel.Release()

	st := &c.st
	st.gen++
	st.stage = domain.StageIdle
	st.label = ""
	st.docID = ""
	st.setErr(nil)
	st.orderID = ""
	st.model.Clear()
}

func (st *state) setErr(err error) {
	st.cause = err
	st.err = ""
	if err != nil {
		st.err = err.Error()
	}
}

func submissionError(err error) *domain.SubmissionError {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) && subErr.Message != "" {
		return subErr
	}
	return &domain.SubmissionError{Message: domain.MsgConnectFailed, Err: err}
}

func commitError(err error) *domain.CommitError {
	var respErr *domain.ResponseError
	if errors.As(err, &respErr) {
		msg := respErr.Message
		if msg == "" {
			msg = domain.MsgSaveFailed
		}
		return &domain.CommitError{Message: msg, Err: err}
	}
	var badResp *domain.MalformedResponseError
	if errors.As(err, &badResp) {
		return &domain.CommitError{Message: domain.MsgSaveFailed + ": " + badResp.Reason, Err: err}
	}
	return &domain.CommitError{Message: domain.MsgSaveUnreachable, Err: err}
}
