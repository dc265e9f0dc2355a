package engine

// Resolution reports what happened to attached context.
type Resolution struct {
	Sent bool
}

type attachment struct {
	token      uint64
	metadata   map[string]any
	onResolved func(Resolution)
}

// composer holds at most one attachment. Every attachment is resolved
// exactly once: the holder hands the callback out by clearing the slot.
type composer struct {
	seq     uint64
	pending *attachment
}

// attach stores metadata and returns the callbacks that must now fire.
func (c *composer) attach(metadata map[string]any, onResolved func(Resolution)) []func() {
	if onResolved == nil {
		onResolved = func(Resolution) {}
	}
	fire := c.release(false)
	if len(metadata) == 0 {
		return append(fire, func() { onResolved(Resolution{Sent: false}) })
	}
	copied := make(map[string]any, len(metadata))
	for key, value := range metadata {
		copied[key] = value
	}
	c.seq++
	c.pending = &attachment{token: c.seq, metadata: copied, onResolved: onResolved}
	return fire
}

// release clears the slot and returns its callback bound to sent.
func (c *composer) release(sent bool) []func() {
	if c.pending == nil {
		return nil
	}
	cb := c.pending.onResolved
	c.pending = nil
	return []func(){func() { cb(Resolution{Sent: sent}) }}
}

// releaseIf resolves the attachment only when it is still the one with token.
func (c *composer) releaseIf(token uint64, sent bool) []func() {
	if c.pending == nil || c.pending.token != token {
		return nil
	}
	return c.release(sent)
}

func (c *composer) snapshot() (uint64, map[string]any) {
	if c.pending == nil {
		return 0, nil
	}
	return c.pending.token, c.pending.metadata
}
