package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/event"
	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// Outcome is the result of waiting for a transaction to be included.
type Outcome string

const (
	OutcomeIncluded    Outcome = "included"
	OutcomeConflicting Outcome = "conflicting"
	// OutcomeTimedOut is not a failure: the transaction stays submitted and
	// may be reissued in a fresh block.
	OutcomeTimedOut Outcome = "timedOut"
)

const inclusionTimedOut types.InclusionState = "timedOut"

// AwaitInclusion polls the node until the transaction is included or
// conflicting, or until timeout elapses. A zero timeout uses the
// configured default.
//
// No lock is held while polling. Cancelling ctx returns ctx.Err() and
// leaves the transaction submitted: the block has already been broadcast.
func (h *Handle) AwaitInclusion(ctx context.Context, id types.TransactionID, timeout time.Duration) (Outcome, error) {
	const op = "account.AwaitInclusion"
	if _, err := h.submittedTransaction(id); err != nil {
		return "", wrap(op, err)
	}
	if timeout <= 0 {
		timeout = h.deps.InclusionTimeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(h.deps.PollInterval), 1)

	for {
		if err := limiter.Wait(pollCtx); err != nil {
			// Wait also fails early when the next token would arrive after
			// the deadline.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			h.deps.Metrics.inclusionResult(inclusionTimedOut)
			h.logger.Info("transaction not included before deadline", "tx", id.String(), "timeout", timeout)
			return OutcomeTimedOut, nil
		}

		state, err := h.deps.Client.InclusionState(pollCtx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				h.logger.Warn("inclusion poll failed", "tx", id.String(), "error", err)
			}
			continue
		}
		if !state.Terminal() {
			continue
		}
		if err := h.settle(ctx, id, state); err != nil {
			return "", err
		}
		if state == types.InclusionIncluded {
			return OutcomeIncluded, nil
		}
		return OutcomeConflicting, nil
	}
}

func (h *Handle) submittedTransaction(id types.TransactionID) (*Transaction, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.st.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if t.State != tx.StateSubmitted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotSubmitted, id, t.State)
	}
	return t.clone(), nil
}

// settle records a terminal inclusion state and emits it.
func (h *Handle) settle(ctx context.Context, id types.TransactionID, state types.InclusionState) error {
	h.mu.Lock()
	changed, err := h.settleLocked(ctx, id, state)
	if err == nil && changed {
		err = h.persistLocked(context.WithoutCancel(ctx))
	}
	h.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		h.deps.Metrics.inclusionResult(state)
		h.emit(event.KindTransactionInclusion, event.TransactionInclusionData{TransactionID: id, State: state})
		h.logger.Info("transaction settled", "tx", id.String(), "state", string(state))
	}
	return nil
}

// settleLocked moves a submitted transaction to its terminal state. An
// included transaction releases its reservations. A conflicting one also
// returns its inputs to the spendable set and drops the outputs it would
// have created. It reports false when the transaction was already settled.
func (h *Handle) settleLocked(ctx context.Context, id types.TransactionID, state types.InclusionState) (bool, error) {
	const op = "account.settle"
	t, ok := h.st.transactions[id]
	if !ok {
		return false, errs.E(errs.KindValidation, op, fmt.Errorf("%w: %s", ErrTransactionNotFound, id))
	}
	if t.State.Terminal() {
		return false, nil
	}

	evt := tx.EventInclude
	if state == types.InclusionConflicting {
		evt = tx.EventConflict
	}
	lc := tx.NewLifecycle(t.State)
	if err := lc.Fire(ctx, evt); err != nil {
		return false, wrap(op, err)
	}
	t.State = lc.State()
	t.Inclusion = state
	delete(h.st.pending, id)

	for _, in := range t.Inputs {
		if h.st.locked[in.OutputID] == id {
			delete(h.st.locked, in.OutputID)
		}
		if state == types.InclusionConflicting {
			if out, ok := h.st.outputs[in.OutputID]; ok {
				out.Spent = false
			}
		}
	}
	if state == types.InclusionConflicting {
		for _, created := range t.Created {
			delete(h.st.outputs, created)
		}
	}
	return true, nil
}

// ReissueTransaction submits a submitted transaction again in a block on
// fresh tips. Use it after AwaitInclusion timed out.
func (h *Handle) ReissueTransaction(ctx context.Context, id types.TransactionID) (types.BlockID, error) {
	const op = "account.ReissueTransaction"
	t, err := h.submittedTransaction(id)
	if err != nil {
		return types.BlockID{}, wrap(op, err)
	}

	blockID, err := h.submitBlock(ctx, t.Payload)
	if err != nil {
		h.logger.Warn("reissue failed", "tx", id.String(), "error", err)
		return types.BlockID{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current, ok := h.st.transactions[id]
	if !ok {
		return types.BlockID{}, errs.E(errs.KindValidation, op, fmt.Errorf("%w: %s", ErrTransactionNotFound, id))
	}
	lc := tx.NewLifecycle(current.State)
	if err := lc.Fire(ctx, tx.EventReissue); err != nil {
		// Settled while the block was in flight.
		return blockID, wrap(op, err)
	}
	current.BlockID = blockID
	current.SubmittedAt = h.deps.Now()
	current.Reissues++
	if err := h.persistLocked(context.WithoutCancel(ctx)); err != nil {
		return blockID, err
	}
	h.deps.Metrics.submittedInc()
	h.logger.Info("transaction reissued", "tx", id.String(), "block", blockID.String(), "reissues", current.Reissues)
	return blockID, nil
}

// RetryUntilIncluded waits for inclusion, reissuing after every timed-out
// wait, up to maxAttempts waits. It returns OutcomeTimedOut when attempts
// run out.
func (h *Handle) RetryUntilIncluded(ctx context.Context, id types.TransactionID, interval time.Duration, maxAttempts int) (Outcome, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	for attempt := 1; ; attempt++ {
		outcome, err := h.AwaitInclusion(ctx, id, interval)
		if err != nil || outcome != OutcomeTimedOut {
			return outcome, err
		}
		if attempt >= maxAttempts {
			return OutcomeTimedOut, nil
		}
		if _, err := h.ReissueTransaction(ctx, id); err != nil {
			if errs.Retryable(err) {
				h.logger.Warn("reissue failed, waiting again", "tx", id.String(), "attempt", attempt, "error", err)
				continue
			}
			return "", err
		}
	}
}
