package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	_, ok = RequestID(WithRequestID(ctx, ""))
	assert.False(t, ok, "empty id is treated as absent")

	id, ok := RequestID(WithRequestID(ctx, "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestPrincipal(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{Subject: "alice", Roles: []string{"researcher"}})

	p, ok := PrincipalFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", p.Subject)
	assert.True(t, p.HasRole("researcher"))
	assert.False(t, p.HasRole("admin"))

	_, ok = PrincipalFrom(context.Background())
	assert.False(t, ok)
}
