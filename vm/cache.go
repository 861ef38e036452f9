package vm

import lru "github.com/hashicorp/golang-lru/v2"

// CodeBlockCache memoizes compiled CodeBlocks — one CodeBlock per source
// function, compiled on first entry and reused thereafter. The Machine keys
// ordinary function bodies by their FunctionBody.Key (the AST literal node's
// identity, see resolveCodeBlock), so every closure minted over the same
// declaration shares one compiled block; the eval compiler keys whole eval
// programs by source string so a hot eval call site (or a REPL history
// replay) compiles once. Both live in the same bounded LRU: an evicted body
// is recompiled transparently on its next call.
type CodeBlockCache struct {
	lru *lru.Cache[interface{}, *CodeBlock]
}

func NewCodeBlockCache(size int) *CodeBlockCache {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[interface{}, *CodeBlock](size)
	return &CodeBlockCache{lru: c}
}

func (c *CodeBlockCache) Get(node interface{}) (*CodeBlock, bool) {
	return c.lru.Get(node)
}

func (c *CodeBlockCache) Put(node interface{}, cb *CodeBlock) {
	c.lru.Add(node, cb)
}
