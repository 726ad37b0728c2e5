package server

import (
	"context"

	"google.golang.org/grpc/peer"

	"github.com/ajaxzhan/fileserver/pkg/types"
)

// IdentityExtractor derives the caller identity from a request context.
// The identity only has to be stable per connection and comparable.
type IdentityExtractor interface {
	ClientID(ctx context.Context) (types.ClientID, bool)
}

// IdentityFunc adapts a function to IdentityExtractor.
type IdentityFunc func(ctx context.Context) (types.ClientID, bool)

// ClientID calls f(ctx).
func (f IdentityFunc) ClientID(ctx context.Context) (types.ClientID, bool) {
	return f(ctx)
}

// PeerIdentity identifies callers by the remote address of their gRPC
// connection.
type PeerIdentity struct{}

// ClientID returns the peer address, or false if the transport has none.
func (PeerIdentity) ClientID(ctx context.Context) (types.ClientID, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "", false
	}
	addr := p.Addr.String()
	if addr == "" {
		return "", false
	}
	return types.ClientID(addr), true
}
