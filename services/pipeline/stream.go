package pipeline

import (
	"context"
)

// Stream is one in-progress streaming run. Fragments arrive in backend
// order with single-fragment look-ahead only; the channel closes when the
// backend completes or the token fires. A Stream is finite and not
// restartable.
//
// Token cancellation is not reported as an error: after the fragment channel
// is exhausted, callers distinguish normal completion from cancellation by
// inspecting the request token, and backend failures via Err. Cancellation
// of the surrounding request context is not token-driven and does surface
// through Err, as the context error.
type Stream struct {
	fragments chan string
	token     *Token
	err       error
	done      chan struct{}
}

// Fragments returns the fragment channel. It is closed when the stream
// terminates.
func (s *Stream) Fragments() <-chan string {
	return s.fragments
}

// Err returns the backend error that terminated the stream, if any. Valid
// only after Fragments is closed. Cancellation never produces an error.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Cancelled reports whether the stream was ended by the request token
func (s *Stream) Cancelled() bool {
	return s.token.cancelledOrNil()
}

// RunStream executes the pipeline in streaming mode. Preparation (selection,
// retrieval, rendering) happens synchronously so configuration and retrieval
// errors surface before any fragment is produced; the backend call then runs
// in the background, delivering fragments through the returned Stream.
//
// A token cancelled before invocation yields an already-terminated empty
// stream with zero backend calls. A token fired mid-stream stops delivery
// after at most one in-flight fragment; the token is checked between
// consecutive fragments.
func (p *Pipeline) RunStream(ctx context.Context, req Request) (*Stream, error) {
	if p.selector != nil {
		sub, err := p.selector(ctx, req.Input)
		if err != nil {
			return nil, err
		}
		return sub.RunStream(ctx, req)
	}

	s := &Stream{
		fragments: make(chan string, 1),
		token:     req.Token,
		done:      make(chan struct{}),
	}

	if req.Token.cancelledOrNil() {
		close(s.fragments)
		close(s.done)
		return s, nil
	}

	rendered, _, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Token.cancelledOrNil() {
		close(s.fragments)
		close(s.done)
		return s, nil
	}

	sctx, cancel := bindToken(ctx, req.Token)

	go func() {
		defer cancel()
		defer close(s.done)
		defer close(s.fragments)

		err := p.backend.Stream(sctx, rendered, func(fctx context.Context, fragment string) error {
			if req.Token.cancelledOrNil() {
				return context.Canceled
			}
			select {
			case s.fragments <- fragment:
				return nil
			case <-tokenDone(req.Token):
				return context.Canceled
			case <-fctx.Done():
				return fctx.Err()
			}
		})
		// Token-driven termination is a clean end, not an error. Parent
		// context cancellation (e.g. client disconnect) is reported as
		// the context error so callers can tell it from completion.
		if err != nil && !req.Token.cancelledOrNil() {
			if cerr := sctx.Err(); cerr != nil {
				s.err = cerr
			} else {
				s.err = err
			}
		}
	}()

	return s, nil
}

// tokenDone returns the token's done channel, or a never-closed channel for
// a nil token so it can be used in a select.
func tokenDone(t *Token) <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}
