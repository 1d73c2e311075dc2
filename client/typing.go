package client

import "time"

const (
	// IndicatorExpiry clears a peer's typing indicator this long after the last
	// isTyping=true signal, covering a sender that disconnects mid-typing and
	// never sends false.
	IndicatorExpiry = 3 * time.Second

	// TypingIdle is how long the local user must be idle before an
	// isTyping=false signal is emitted. Debouncing on this side keeps a single
	// keystroke from producing an immediate true/false pair.
	TypingIdle = 2 * time.Second
)

// TypingTracker holds both directions of typing state: when the peer's
// indicator should be shown, and when the local user's typing signals should
// be emitted. Not safe for concurrent use; the owning Client serializes access.
type TypingTracker struct {
	peerTypingUntil time.Time
	lastKeystroke   time.Time
	announced       bool
}

// ObservePeer records an incoming typing signal.
func (t *TypingTracker) ObservePeer(isTyping bool, now time.Time) {
	if isTyping {
		t.peerTypingUntil = now.Add(IndicatorExpiry)
	} else {
		t.peerTypingUntil = time.Time{}
	}
}

// PeerTyping reports whether the peer's indicator should currently be shown.
func (t *TypingTracker) PeerTyping(now time.Time) bool {
	return now.Before(t.peerTypingUntil)
}

// Keystroke records local input and reports whether an isTyping=true signal
// should be emitted now. Only the first keystroke after an idle period emits.
func (t *TypingTracker) Keystroke(now time.Time) bool {
	t.lastKeystroke = now
	if t.announced {
		return false
	}
	t.announced = true
	return true
}

// ShouldStop reports whether an isTyping=false signal should be emitted now,
// i.e. typing was announced and the user has been idle for TypingIdle.
func (t *TypingTracker) ShouldStop(now time.Time) bool {
	if !t.announced || now.Sub(t.lastKeystroke) < TypingIdle {
		return false
	}
	t.announced = false
	return true
}
