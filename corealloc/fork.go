package corealloc

// Prefork acquires every lock in the shared core, in a fixed order
// (base, then the chunk pool, then the radix tree), so a forking process
// never duplicates a thread mid-critical-section into its child.
func (c *Core) Prefork() {
	c.Base.mu.Lock()
	c.Chunks.mu.Lock()
	c.Radix.mu.Lock()
}

// PostforkParent releases the locks Prefork took, in the parent.
func (c *Core) PostforkParent() {
	c.Radix.mu.Unlock()
	c.Chunks.mu.Unlock()
	c.Base.mu.Unlock()
}

// PostforkChild releases the locks Prefork took, in the freshly forked
// child.
func (c *Core) PostforkChild() {
	c.Radix.mu.Unlock()
	c.Chunks.mu.Unlock()
	c.Base.mu.Unlock()
}
