// Copyright 2026 Hexresearch
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package discovery registers a running indexer in etcd so that wallets' bootstrap
// services can find it
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyPrefix is the etcd prefix under which indexers are registered
const KeyPrefix = "/ergvein/indexers/"

const dialTimeout = 5 * time.Second

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
}

// Key returns the etcd key of the indexer with the given ID
func Key(id string) string {
	return KeyPrefix + id
}

// Registration is a lease-bound entry kept alive until Close is called
type Registration struct {
	client  *clientv3.Client
	leaseId clientv3.LeaseID
	key     string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Register puts addr under the indexer's key, bound to a lease with the given TTL in
// seconds. The lease is kept alive in the background.
func Register(
	ctx context.Context,
	cli *clientv3.Client,
	id string,
	addr string,
	ttl int64,
	logger *slog.Logger,
) (*Registration, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	key := Key(id)
	if _, err := cli.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	keepAliveCtx, cancel := context.WithCancel(context.Background())
	keepAliveChan, err := cli.KeepAlive(keepAliveCtx, lease.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("keep lease alive: %w", err)
	}
	r := &Registration{
		client:  cli,
		leaseId: lease.ID,
		key:     key,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		// The channel is closed when the lease expires or keepAliveCtx is cancelled
		for range keepAliveChan {
		}
		if keepAliveCtx.Err() == nil {
			logger.Warn("etcd lease lost", "component", "discovery", "key", key)
		}
	}()
	logger.Info("registered in etcd", "component", "discovery", "key", key, "address", addr)
	return r, nil
}

// Close stops the keep alive and revokes the lease, which removes the key
func (r *Registration) Close(ctx context.Context) error {
	r.cancel()
	<-r.done
	if _, err := r.client.Revoke(ctx, r.leaseId); err != nil {
		return fmt.Errorf("revoke lease for %s: %w", r.key, err)
	}
	return nil
}

// Indexers returns the registered indexers by ID
func Indexers(ctx context.Context, cli *clientv3.Client) (map[string]string, error) {
	resp, err := cli.Get(ctx, KeyPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	ret := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		ret[strings.TrimPrefix(string(kv.Key), KeyPrefix)] = string(kv.Value)
	}
	return ret, nil
}
