package coline

import (
	"github.com/fllo/go-coline/pkg/request"
)

// deliver returns the Outcome to the owner's execution context, it is called once per worker completion.
//
// The callback and the teardown are posted together, so the teardown follows the callback.
// If there is no callback, the owner is gone or it refuses the post,
// the callback is skipped and the teardown runs on the calling goroutine.
func (h *Handle) deliver(outcome request.Outcome) {
	h.once.Do(func() {
		h.lock.Lock()
		owner, cb := h.owner, h.callback
		h.lock.Unlock()

		logger := h.logger.WithField("status", outcome.Status())
		if _, failure := request.Split(outcome); failure != nil {
			logger.Debugf("request failed: %s", failure)
		} else {
			logger.Debug("request succeeded")
		}

		switch {
		case cb == nil:
			logger.Debug("no callback set")
		case !owner.Alive():
			logger.Info("owner is gone, callback is not invoked")
		default:
			posted := owner.Post(func() {
				// The owner may have gone while the callback was waiting
				if owner.Alive() {
					cb(outcome)
				} else {
					logger.Info("owner is gone, callback is not invoked")
				}
				h.teardown(outcome)
			})
			if posted {
				return
			}
			logger.Info("owner refused the callback, callback is not invoked")
		}
		h.teardown(outcome)
	})
}

// skip finishes an enqueued handle that will never be sent.
func (h *Handle) skip() {
	h.once.Do(func() {
		h.logger.Info("owner is gone, request is skipped")
		h.teardown(nil)
	})
}

// teardown finishes the handle, clears its references and notifies the Queue.
// The outcome is nil if the request has not been sent.
func (h *Handle) teardown(outcome request.Outcome) {
	h.state.Store(int32(StateFinished))
	h.cancel()

	h.lock.Lock()
	b := h.batch
	h.owner = nil
	h.callback = nil
	h.batch = nil
	h.lock.Unlock()

	if b != nil {
		h.line.queue.release(b, outcome)
	}
}
