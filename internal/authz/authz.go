// Package authz identifies the caller of a request and decides which gateway
// operations they may perform.
package authz

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

// Engine extracts an authenticated actor from an HTTP request. An empty actor
// with a nil error means the request carried no valid credentials.
type Engine interface {
	AuthenticateRequest(ctx context.Context, r *http.Request) (string, error)
}

const basicAuthPrefix = "Basic "

// BasicEngine authenticates requests with HTTP Basic credentials against a
// static user table.
type BasicEngine struct {
	// Users maps username to password.
	Users map[string]string
}

func (e *BasicEngine) AuthenticateRequest(ctx context.Context, r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, basicAuthPrefix) {
		return "", nil
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(basicAuthPrefix):]))
	if err != nil {
		return "", nil
	}

	creds := strings.SplitN(string(payload), ":", 2)
	if len(creds) != 2 {
		return "", nil
	}

	if pw, ok := e.Users[creds[0]]; ok && pw == creds[1] {
		return creds[0], nil
	}
	return "", nil
}

// AnonymousEngine admits every request as a fixed actor. Used when the
// gateway runs without authentication.
type AnonymousEngine struct {
	Actor string
}

func (e *AnonymousEngine) AuthenticateRequest(context.Context, *http.Request) (string, error) {
	actor := e.Actor
	if actor == "" {
		actor = "anonymous"
	}
	return actor, nil
}

// Gate decides whether an actor may perform an operation class.
type Gate interface {
	ActorMayPerform(actor, op string) bool
}

// Operation classes understood by gates.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
)

// StaticGate grants each actor a fixed set of operation classes. Actors not
// listed fall back to the Default set.
type StaticGate struct {
	Grants  map[string][]string
	Default []string
}

func (g *StaticGate) ActorMayPerform(actor, op string) bool {
	ops, ok := g.Grants[actor]
	if !ok {
		ops = g.Default
	}
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// AllowAll grants every operation to every actor.
type AllowAll struct{}

func (AllowAll) ActorMayPerform(string, string) bool { return true }

type actorKey struct{}

// WithActor stamps the authenticated actor onto a context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the authenticated actor, or "anonymous" if none
// was set.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "anonymous"
}
