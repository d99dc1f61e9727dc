package cache

import (
	"context"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyClient implements Cache using Valkey.
type ValkeyClient struct {
	c      valkey.Client
	prefix string
}

// NewValkey connects to addr. Keys are namespaced with prefix.
func NewValkey(addr, password, prefix string) (*ValkeyClient, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{addr},
	}
	if password != "" {
		opts.Username = "default"
		opts.Password = password
	}
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &ValkeyClient{c: client, prefix: prefix}, nil
}

func (v *ValkeyClient) Get(ctx context.Context, key string) (string, bool) {
	res := v.c.Do(ctx, v.c.B().Get().Key(v.prefix+key).Build())
	if err := res.Error(); err != nil {
		return "", false
	}
	str, err := res.ToString()
	if err != nil {
		return "", false
	}
	return str, true
}

func (v *ValkeyClient) Set(ctx context.Context, key string, val string, ttl time.Duration) error {
	if secs := int64(ttl / time.Second); secs > 0 {
		return v.c.Do(ctx, v.c.B().Set().Key(v.prefix+key).Value(val).ExSeconds(secs).Build()).Error()
	}
	return v.c.Do(ctx, v.c.B().Set().Key(v.prefix+key).Value(val).Build()).Error()
}

func (v *ValkeyClient) Delete(ctx context.Context, key string) error {
	return v.c.Do(ctx, v.c.B().Del().Key(v.prefix+key).Build()).Error()
}

// Close releases the underlying connections.
func (v *ValkeyClient) Close() {
	v.c.Close()
}
