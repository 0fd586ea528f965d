// Package host is the execution environment of the bridge core.
//
// Each Invoke runs one contract call to completion under a mutex, against a
// flushable buffer wrapped around the base store. A successful call flushes the
// buffer and publishes its events; a failed call drops both, so a rejected
// transaction leaves no trace. The only exception is an error marked with
// Retain: the call still fails, but the state transition it recorded (a
// tripped circuit breaker, an expired proposal or swap) is kept.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/flushable"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
)

// DefaultLogRetention is the number of committed events kept in memory.
const DefaultLogRetention = 4096

type (
	// CommitHook observes every committed event. Hooks run under the host
	// lock and must not call back into the host.
	CommitHook func(log *types.Log)
	// InvokeHook observes the outcome of every invocation.
	InvokeHook func(method string, err error)
)

// Host serialises invocations over one store.
type Host struct {
	mu sync.Mutex

	db       kvdb.Store
	clock    Clock
	contract common.Address

	seq     uint64
	lastNow inter.Timestamp

	logs      []*types.Log
	retention int

	onCommit []CommitHook
	onInvoke []InvokeHook

	log logrus.FieldLogger
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger, the logrus standard logger by default.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Host) { h.log = l }
}

// WithLogRetention bounds the number of committed events kept for Logs.
func WithLogRetention(n int) Option {
	return func(h *Host) { h.retention = n }
}

// New creates a host for the contract at address contract.
func New(db kvdb.Store, clock Clock, contract common.Address, opts ...Option) *Host {
	h := &Host{
		db:        db,
		clock:     clock,
		contract:  contract,
		retention: DefaultLogRetention,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Contract returns the contract address.
func (h *Host) Contract() common.Address { return h.contract }

// OnCommit registers a hook called for every committed event.
func (h *Host) OnCommit(fn CommitHook) {
	h.mu.Lock()
	h.onCommit = append(h.onCommit, fn)
	h.mu.Unlock()
}

// OnInvoke registers a hook called after every invocation.
func (h *Host) OnInvoke(fn InvokeHook) {
	h.mu.Lock()
	h.onInvoke = append(h.onInvoke, fn)
	h.mu.Unlock()
}

// now never goes backwards even if the clock does.
func (h *Host) now() inter.Timestamp {
	t := h.clock.Now()
	if t < h.lastNow {
		t = h.lastNow
	}
	h.lastNow = t
	return t
}

// Invoke runs fn as one atomic call authenticated as caller.
func (h *Host) Invoke(caller common.Address, method string, fn func(*Env) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	buf := flushable.Wrap(h.db)
	env := &Env{
		ledger:     ledger.New(buf),
		caller:     caller,
		contract:   h.contract,
		now:        h.now(),
		seq:        h.seq,
		invocation: uuid.New(),
	}
	logger := h.log.WithFields(logrus.Fields{
		"invocation": env.invocation.String(),
		"method":     method,
		"caller":     caller.Hex(),
		"seq":        env.seq,
	})

	err := fn(env)
	if err != nil && !IsRetained(err) {
		buf.DropNotFlushed()
		logger.WithError(err).Debug("Invocation rejected")
		h.notifyInvoke(method, err)
		return err
	}

	if ferr := buf.Flush(); ferr != nil {
		buf.DropNotFlushed()
		logger.WithError(ferr).Error("Failed to commit invocation")
		ferr = fmt.Errorf("host: commit %s: %w", method, ferr)
		h.notifyInvoke(method, ferr)
		return ferr
	}
	h.publish(env.events)

	if err != nil {
		logger.WithError(err).WithField("events", len(env.events)).Info("Invocation rejected, state transition kept")
	} else {
		logger.WithField("events", len(env.events)).Debug("Invocation committed")
	}
	h.notifyInvoke(method, err)
	return err
}

// View runs fn against a throwaway buffer. Nothing it does is persisted and
// no caller is authenticated.
func (h *Host) View(fn func(*Env) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf := flushable.Wrap(h.db)
	defer buf.DropNotFlushed()

	return fn(&Env{
		ledger:   ledger.New(buf),
		contract: h.contract,
		now:      h.now(),
		seq:      h.seq,
		readOnly: true,
	})
}

func (h *Host) publish(events []*types.Log) {
	for _, ev := range events {
		for _, hook := range h.onCommit {
			hook(ev)
		}
	}
	h.logs = append(h.logs, events...)
	if h.retention > 0 && len(h.logs) > h.retention {
		h.logs = append([]*types.Log(nil), h.logs[len(h.logs)-h.retention:]...)
	}
}

func (h *Host) notifyInvoke(method string, err error) {
	for _, hook := range h.onInvoke {
		hook(method, err)
	}
}

// Sequence returns the number of invocations run so far.
func (h *Host) Sequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Logs returns the retained committed events, oldest first.
func (h *Host) Logs() []*types.Log {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*types.Log(nil), h.logs...)
}

// FilterLogs returns the events of logs named name.
func FilterLogs(logs []*types.Log, name string) []*types.Log {
	topic := Topic(name)
	var out []*types.Log
	for _, l := range logs {
		if len(l.Topics) > 0 && l.Topics[0] == topic {
			out = append(out, l)
		}
	}
	return out
}

type retained struct {
	err error
}

func (r *retained) Error() string { return r.err.Error() }
func (r *retained) Unwrap() error { return r.err }

// Retain marks err so that the failing invocation still commits its writes
// and events. The operation must not have written anything it wants undone.
func Retain(err error) error {
	if err == nil {
		return nil
	}
	return &retained{err: err}
}

// IsRetained reports whether err was marked with Retain.
func IsRetained(err error) bool {
	var r *retained
	return errors.As(err, &r)
}
