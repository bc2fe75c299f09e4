package credentials

import (
	"context"
	"sync"

	"github.com/Skryldev/adimage-uploader/core"
)

// Cached resolves the wrapped provider once and serves the same result to
// every caller, so a run decrypts the token a single time.
type Cached struct {
	inner core.CredentialProvider
	once  sync.Once
	token string
	err   error
}

func NewCached(p core.CredentialProvider) *Cached { return &Cached{inner: p} }

func (c *Cached) Credential(ctx context.Context) (string, error) {
	c.once.Do(func() { c.token, c.err = c.inner.Credential(ctx) })
	return c.token, c.err
}

// Static is a fixed credential.
type Static string

func (s Static) Credential(context.Context) (string, error) { return string(s), nil }
