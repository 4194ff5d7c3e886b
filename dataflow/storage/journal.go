// Package storage keeps an audit journal of flow runs in BadgerDB.
package storage

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/wbrown/janus-flow/dataflow"
	"github.com/wbrown/janus-flow/dataflow/flow"
)

const keySize = 8 + 4

// Entry is one journaled change. Run is the journal's run number and FlowRun
// the run counter of the flow that produced it.
type Entry struct {
	Run     uint64
	Seq     uint32
	FlowRun uint64
	Change  flow.Change
}

// Journal records the change log of every successful run. It implements
// flow.ChangeSink and is safe for concurrent use.
//
// Keys are run (8 bytes) then sequence (4 bytes), big-endian, so iteration
// order is journal order. The journal numbers runs itself in recording order,
// so several flows may share one journal and a reopened journal continues
// after the last run stored.
type Journal struct {
	db   *badger.DB
	mu   sync.Mutex
	last uint64
}

// OpenJournal opens or creates a journal at path. An empty path keeps the
// journal in memory.
func OpenJournal(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening journal %q", path)
	}
	j := &Journal{db: db}
	if j.last, err = j.lastRun(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record implements flow.ChangeSink. The changes are stored under the next
// journal run number; flowRun is kept alongside each change.
func (j *Journal) Record(flowRun uint64, changes []flow.Change) error {
	if len(changes) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	stored := j.last + 1
	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for i, c := range changes {
		if err := wb.Set(encodeKey(stored, uint32(i)), encodeChange(flowRun, c)); err != nil {
			return errors.Wrapf(err, "journaling change %d of run %d", i, stored)
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrapf(err, "flushing run %d", stored)
	}
	j.last = stored
	return nil
}

// Entries returns every journaled change in order.
func (j *Journal) Entries() ([]Entry, error) {
	return j.scan(nil)
}

// Run returns the changes of one journaled run.
func (j *Journal) Run(run uint64) ([]Entry, error) {
	return j.scan(binary.BigEndian.AppendUint64(nil, run))
}

// LastRun returns the number of the last journaled run, or 0 when empty.
func (j *Journal) LastRun() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

func (j *Journal) scan(prefix []byte) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			run, seq, err := decodeKey(item.Key())
			if err != nil {
				return err
			}
			e := Entry{Run: run, Seq: seq}
			err = item.Value(func(val []byte) error {
				e.FlowRun, e.Change, err = decodeChange(val)
				return err
			})
			if err != nil {
				return errors.Wrapf(err, "run %d change %d", run, seq)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func (j *Journal) lastRun() (uint64, error) {
	var last uint64
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		run, _, err := decodeKey(it.Item().Key())
		last = run
		return err
	})
	return last, err
}

func encodeKey(run uint64, seq uint32) []byte {
	key := make([]byte, 0, keySize)
	key = binary.BigEndian.AppendUint64(key, run)
	return binary.BigEndian.AppendUint32(key, seq)
}

func decodeKey(key []byte) (run uint64, seq uint32, err error) {
	if len(key) != keySize {
		return 0, 0, errors.Newf("journal key of %d bytes, expected %d", len(key), keySize)
	}
	return binary.BigEndian.Uint64(key), binary.BigEndian.Uint32(key[8:]), nil
}

// A change is stored as the encoded tuple (flow run, id, node, removed, added),
// where removed and added are tuples of tuples.
func encodeChange(flowRun uint64, c flow.Change) []byte {
	return dataflow.AppendTuple(nil, dataflow.Tuple{
		dataflow.Float(flowRun),
		dataflow.String(c.ID),
		dataflow.Float(c.Node),
		nest(c.Removed),
		nest(c.Added),
	})
}

func decodeChange(data []byte) (uint64, flow.Change, error) {
	t, rest, err := dataflow.DecodeTuple(data)
	if err != nil {
		return 0, flow.Change{}, err
	}
	if len(rest) != 0 {
		return 0, flow.Change{}, errors.Newf("%d trailing bytes after change", len(rest))
	}
	if len(t) != 5 {
		return 0, flow.Change{}, errors.Newf("change has %d fields, expected 5", len(t))
	}
	flowRun, err := dataflow.AsFloat(t[0])
	if err != nil {
		return 0, flow.Change{}, err
	}
	id, err := dataflow.AsString(t[1])
	if err != nil {
		return 0, flow.Change{}, err
	}
	node, err := dataflow.AsFloat(t[2])
	if err != nil {
		return 0, flow.Change{}, err
	}
	c := flow.Change{ID: id, Node: int(node)}
	if c.Removed, err = unnest(t[3]); err != nil {
		return 0, flow.Change{}, err
	}
	if c.Added, err = unnest(t[4]); err != nil {
		return 0, flow.Change{}, err
	}
	return uint64(flowRun), c, nil
}

func nest(tuples []dataflow.Tuple) dataflow.Tuple {
	out := make(dataflow.Tuple, len(tuples))
	for i, t := range tuples {
		out[i] = t
	}
	return out
}

func unnest(v dataflow.Value) ([]dataflow.Tuple, error) {
	outer, ok := v.(dataflow.Tuple)
	if !ok {
		return nil, errors.Newf("expected tuple list, got %s", v.Kind())
	}
	if len(outer) == 0 {
		return nil, nil
	}
	out := make([]dataflow.Tuple, len(outer))
	for i, e := range outer {
		t, ok := e.(dataflow.Tuple)
		if !ok {
			return nil, errors.Newf("expected tuple, got %s", e.Kind())
		}
		out[i] = t
	}
	return out, nil
}
