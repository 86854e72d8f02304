package identity

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdResolver implements Resolver using etcd v3 as the durable
// authorization store, shared across every fixcore instance in a
// deployment so identity provisioning survives any single instance's
// restart.
type EtcdResolver struct {
	client *clientv3.Client
}

// NewEtcdResolver connects to the given etcd endpoints.
func NewEtcdResolver(endpoints []string) (*EtcdResolver, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdResolver{client: c}, nil
}

func (r *EtcdResolver) Resolve(ctx context.Context, sender, target string) (SessionConfig, bool, error) {
	resp, err := r.client.Get(ctx, pairKey(sender, target))
	if err != nil {
		return Denied, false, err
	}
	if len(resp.Kvs) == 0 {
		return Denied, false, nil
	}
	var cfg SessionConfig
	if err := json.Unmarshal(resp.Kvs[0].Value, &cfg); err != nil {
		return Denied, false, err
	}
	return cfg, true, nil
}

func (r *EtcdResolver) Provision(ctx context.Context, sender, target string, cfg SessionConfig) error {
	val, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = r.client.Put(ctx, pairKey(sender, target), string(val))
	return err
}

func (r *EtcdResolver) Revoke(ctx context.Context, sender, target string) error {
	_, err := r.client.Delete(ctx, pairKey(sender, target))
	return err
}

// Watch monitors the whole /fixcore/identity/ prefix and, on any change,
// re-fetches and emits the complete provisioned set — the same
// re-fetch-on-any-event shape as the teacher's EtcdRegistry.Watch, chosen
// there (and here) because diffing individual etcd watch events is more
// failure-prone than just asking etcd for the current truth.
func (r *EtcdResolver) Watch(ctx context.Context) <-chan []Pair {
	ch := make(chan []Pair, 1)
	const prefix = "/fixcore/identity/"

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
			if err != nil {
				continue
			}
			pairs := make([]Pair, 0, len(resp.Kvs))
			for _, kv := range resp.Kvs {
				sender, target, ok := splitPairKey(string(kv.Key))
				if !ok {
					continue
				}
				var cfg SessionConfig
				if err := json.Unmarshal(kv.Value, &cfg); err != nil {
					continue
				}
				pairs = append(pairs, Pair{Sender: sender, Target: target, Config: cfg})
			}
			select {
			case ch <- pairs:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func splitPairKey(key string) (sender, target string, ok bool) {
	const prefix = "/fixcore/identity/"
	if len(key) <= len(prefix) {
		return "", "", false
	}
	rest := key[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], true
		}
	}
	return "", "", false
}
