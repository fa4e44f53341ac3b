// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package messaging

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/chikuno/dchat/chain"
	sagecrypto "github.com/chikuno/dchat/crypto"
	"github.com/chikuno/dchat/crypto/session"
	"github.com/chikuno/dchat/errs"
	"github.com/chikuno/dchat/pkg/storage"
	"github.com/chikuno/dchat/pkg/storage/memory"
)

// fakeSessions hands out one shared Secure pair per (local, remote) so
// Send and Receive in a test can talk to each other, mirroring
// session_test.go's pairedSessions helper but keyed for engine reuse.
type fakeSessions struct {
	mu    sync.Mutex
	pairs map[string]*session.Secure
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{pairs: make(map[string]*session.Secure)}
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

func (f *fakeSessions) seed(local, remote string, isInitiator bool, sec *session.Secure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[local+">"+remote] = sec
}

func (f *fakeSessions) Acquire(ctx context.Context, local, remote string) (*session.Secure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec, ok := f.pairs[local+">"+remote]
	if !ok {
		return nil, fmt.Errorf("no session seeded for %s>%s", local, remote)
	}
	return sec, nil
}

func buildSessionPair(t *testing.T) (alice, bob *session.Secure) {
	t.Helper()
	shared := make([]byte, chacha20poly1305.KeySize)
	_, err := rand.Read(shared)
	require.NoError(t, err)
	aliceEph := make([]byte, 32)
	bobEph := make([]byte, 32)
	_, _ = rand.Read(aliceEph)
	_, _ = rand.Read(bobEph)

	params := session.Params{ContextID: "ctx", SelfEph: aliceEph, PeerEph: bobEph, Label: "dchat/session v1", Suite: sagecrypto.SuiteX25519ChaCha20}
	replay := session.NewNonceCache(time.Minute)
	t.Cleanup(replay.Close)

	alice, err = session.New("alice", "bob", shared, params, session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour}, true, replay)
	require.NoError(t, err)
	bobParams := params
	bobParams.SelfEph, bobParams.PeerEph = aliceEph, bobEph
	bob, err = session.New("bob", "alice", shared, bobParams, session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour}, false, replay)
	require.NoError(t, err)
	return alice, bob
}

type fakeRouter struct{ route Route }

func (f fakeRouter) SelectRoute(ctx context.Context, recipient string, sensitive bool) (Route, error) {
	return f.route, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failErr error
}

func (f *fakeSender) Send(ctx context.Context, route Route, recipient string, wire []byte) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, recipient)
	f.mu.Unlock()
	return nil
}

type fakeChainProvider struct {
	mu  sync.Mutex
	txs map[string]chain.Tx
}

func newFakeChainProvider() *fakeChainProvider {
	return &fakeChainProvider{txs: make(map[string]chain.Tx)}
}

func (f *fakeChainProvider) Role() chain.Role { return chain.ChainChat }

func (f *fakeChainProvider) Submit(ctx context.Context, tx chain.Tx) (string, error) {
	txID, err := chain.TxID(tx)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.txs[txID] = tx
	f.mu.Unlock()
	return txID, nil
}

func (f *fakeChainProvider) Status(ctx context.Context, txID string) (chain.TxStatus, error) {
	return chain.TxStatus{Kind: chain.StatusConfirmed, BlockHeight: 1, Confirmations: 6}, nil
}

func (f *fakeChainProvider) AwaitConfirmation(ctx context.Context, txID string, k uint64, deadline time.Duration) (chain.Receipt, error) {
	return chain.Receipt{TxID: txID, BlockHeight: 1, Confirmations: 6}, nil
}

func (f *fakeChainProvider) QueryByKey(ctx context.Context, key string) ([]chain.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chain.Tx
	for _, tx := range f.txs {
		for _, field := range tx.Fields {
			if field.Name == "message_id" && field.Value == key {
				out = append(out, tx)
			}
		}
	}
	return out, nil
}

func (f *fakeChainProvider) LatestFinalizedHeight(ctx context.Context) (uint64, error) {
	return 100, nil
}

func newTestEngine(t *testing.T, sender WireSender, route Route) (*Engine, *fakeSessions, *fakeChainProvider) {
	t.Helper()
	sessions := newFakeSessions()
	alice, bob := buildSessionPair(t)
	sessions.seed("alice", "bob", true, alice)
	sessions.seed("bob", "alice", false, bob)

	provider := newFakeChainProvider()
	gateway := chain.NewGateway()
	require.NoError(t, gateway.Register(provider))

	store := memory.NewStore()
	engine := NewEngine(Config{
		LocalUser: "alice",
		Sessions:  sessions,
		Router:    fakeRouter{route: route},
		Sender:    sender,
		Gateway:   gateway,
		Messages:  store.MessageStore(),
	})
	return engine, sessions, provider
}

func TestSendHappyPath(t *testing.T) {
	sender := &fakeSender{}
	engine, _, provider := newTestEngine(t, sender, RouteDirect)

	env, err := engine.Send(context.Background(), "bob", []byte("hello bob"), SendOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, env.MessageID)
	require.Equal(t, []string{"bob"}, sender.sent)

	txs, err := provider.QueryByKey(context.Background(), env.MessageID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	sender := &fakeSender{}
	engine, _, _ := newTestEngine(t, sender, RouteDirect)

	big := make([]byte, MaxPayloadSize+1)
	_, err := engine.Send(context.Background(), "bob", big, SendOptions{})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.PayloadTooLarge))
}

func TestSendEnqueuesOfflineOnBackpressure(t *testing.T) {
	sender := &fakeSender{failErr: errs.New(errs.Backpressure, "queue full")}
	sessions := newFakeSessions()
	alice, bob := buildSessionPair(t)
	sessions.seed("alice", "bob", true, alice)
	sessions.seed("bob", "alice", false, bob)

	provider := newFakeChainProvider()
	gateway := chain.NewGateway()
	require.NoError(t, gateway.Register(provider))
	store := memory.NewStore()

	engine := NewEngine(Config{
		LocalUser: "alice",
		Sessions:  sessions,
		Router:    fakeRouter{route: RouteDirect},
		Sender:    sender,
		Gateway:   gateway,
		Messages:  store.MessageStore(),
		Offline:   NewOfflineQueue(store.OfflineQueueStore()),
	})

	env, err := engine.Send(context.Background(), "bob", []byte("backpressured"), SendOptions{})
	require.NoError(t, err)
	require.NotNil(t, env)

	count, err := store.OfflineQueueStore().Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestReceiveDeliversOnceOrderingTransactionExists(t *testing.T) {
	sender := &fakeSender{}
	sendEngine, sessions, provider := newTestEngine(t, sender, RouteDirect)

	// bob's engine reuses the same sessions/provider/gateway so it can
	// decrypt what alice sent.
	recvGateway := chain.NewGateway()
	require.NoError(t, recvGateway.Register(provider))
	store := memory.NewStore()
	recvEngine := NewEngine(Config{
		LocalUser: "bob",
		Sessions:  sessions,
		Router:    fakeRouter{route: RouteDirect},
		Sender:    sender,
		Gateway:   recvGateway,
		Messages:  store.MessageStore(),
	})

	sentEnv, err := sendEngine.Send(context.Background(), "bob", []byte("ordered payload"), SendOptions{})
	require.NoError(t, err)

	inbound := Envelope{
		MessageID:     sentEnv.MessageID,
		SenderUserID:  "alice",
		Recipient:     "bob",
		ContentHash:   sentEnv.ContentHash,
		Ciphertext:    sentEnv.Ciphertext,
		ChainSequence: 0,
	}
	result, err := recvEngine.Receive(context.Background(), inbound)
	require.NoError(t, err)
	require.False(t, result.Held)
	require.Len(t, result.Delivered, 1)
}

func TestReceiveHoldsWhenNoOrderingTransactionYet(t *testing.T) {
	sender := &fakeSender{}
	_, sessions, provider := newTestEngine(t, sender, RouteDirect)

	recvGateway := chain.NewGateway()
	require.NoError(t, recvGateway.Register(provider))
	store := memory.NewStore()
	recvEngine := NewEngine(Config{
		LocalUser: "bob",
		Sessions:  sessions,
		Router:    fakeRouter{route: RouteDirect},
		Sender:    sender,
		Gateway:   recvGateway,
		Messages:  store.MessageStore(),
	})

	alice := sessions.pairs["alice>bob"]
	hash := ComputeContentHash([]byte("never submitted"))
	ciphertext, err := alice.Seal([]byte("never submitted"), hash[:])
	require.NoError(t, err)

	inbound := Envelope{
		MessageID:    "unsubmitted-message-id",
		SenderUserID: "alice",
		Recipient:    "bob",
		ContentHash:  hash,
		Ciphertext:   ciphertext,
	}
	result, err := recvEngine.Receive(context.Background(), inbound)
	require.NoError(t, err)
	require.True(t, result.Held)
}

func TestReceiveRejectsContentHashMismatch(t *testing.T) {
	sender := &fakeSender{}
	sendEngine, sessions, provider := newTestEngine(t, sender, RouteDirect)

	recvGateway := chain.NewGateway()
	require.NoError(t, recvGateway.Register(provider))
	store := memory.NewStore()
	recvEngine := NewEngine(Config{
		LocalUser: "bob",
		Sessions:  sessions,
		Router:    fakeRouter{route: RouteDirect},
		Sender:    sender,
		Gateway:   recvGateway,
		Messages:  store.MessageStore(),
	})

	sentEnv, err := sendEngine.Send(context.Background(), "bob", []byte("tamper me"), SendOptions{})
	require.NoError(t, err)

	var badHash [32]byte
	copy(badHash[:], []byte("not-the-real-hash-at-all-nope!!"))

	inbound := Envelope{
		MessageID:    sentEnv.MessageID,
		SenderUserID: "alice",
		Recipient:    "bob",
		ContentHash:  badHash,
		Ciphertext:   sentEnv.Ciphertext,
	}
	_, err = recvEngine.Receive(context.Background(), inbound)
	require.Error(t, err)
}

func TestOrderManagerHoldsGapAndDeliversOnFill(t *testing.T) {
	om := NewOrderManager()
	now := time.Now()

	env0 := Envelope{SenderUserID: "a", Recipient: "b", ChainSequence: 0}
	env2 := Envelope{SenderUserID: "a", Recipient: "b", ChainSequence: 2}
	env1 := Envelope{SenderUserID: "a", Recipient: "b", ChainSequence: 1}

	require.Equal(t, []Envelope{env0}, om.Accept(env0, now))
	require.Nil(t, om.Accept(env2, now))
	delivered := om.Accept(env1, now)
	require.Equal(t, []Envelope{env1, env2}, delivered)
}

func TestOrderManagerExpireHoldsAfterTimeout(t *testing.T) {
	om := NewOrderManager()
	start := time.Now()

	env0 := Envelope{SenderUserID: "a", Recipient: "b", ChainSequence: 0}
	env2 := Envelope{SenderUserID: "a", Recipient: "b", ChainSequence: 2}
	require.Equal(t, []Envelope{env0}, om.Accept(env0, start))
	om.Accept(env2, start)

	expired := om.ExpireHolds(start.Add(2*time.Minute), time.Minute)
	require.Len(t, expired, 1)
	require.Equal(t, uint64(2), expired[0].ChainSequence)
}

func TestOfflineQueueDrainRetriesOnFailureAndSucceedsLater(t *testing.T) {
	store := memory.NewStore()
	q := NewOfflineQueue(store.OfflineQueueStore())

	now := time.Now()
	require.NoError(t, q.Enqueue(context.Background(), "m1", []byte("payload"), time.Hour, now))

	calls := 0
	err := q.Drain(context.Background(), now, 10, func(ctx context.Context, entry *storage.OfflineEntry) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	})
	require.NoError(t, err)

	count, _ := store.OfflineQueueStore().Count(context.Background())
	require.Equal(t, int64(1), count)

	// Second drain attempt (simulating the backoff having elapsed, but
	// still well within the one-hour TTL) succeeds.
	later := now.Add(2 * time.Second)
	err = q.Drain(context.Background(), later, 10, func(ctx context.Context, entry *storage.OfflineEntry) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	count, _ = store.OfflineQueueStore().Count(context.Background())
	require.Equal(t, int64(0), count)
}

func TestOfflineQueueDrainReapsExpiredEntriesWithoutSending(t *testing.T) {
	store := memory.NewStore()
	q := NewOfflineQueue(store.OfflineQueueStore())

	now := time.Now()
	require.NoError(t, q.Enqueue(context.Background(), "m1", []byte("payload"), time.Hour, now))

	sent := false
	later := now.Add(2 * time.Hour)
	err := q.Drain(context.Background(), later, 10, func(ctx context.Context, entry *storage.OfflineEntry) error {
		sent = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, sent, "an expired entry must be reaped, not handed to the sender")

	count, _ := store.OfflineQueueStore().Count(context.Background())
	require.Equal(t, int64(0), count)
}
