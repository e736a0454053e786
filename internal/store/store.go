package store

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/google/renameio"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Factory instantiates an empty object of the given type so its fields can
// be decoded into it (spec §4.8 retrieve() step 1: "instantiate an empty
// object of that type and insert it into the key↔object maps").
type Factory func(TypeID) (Persistable, error)

var snapshotName = regexp.MustCompile(`^buildstate_(\d+)\.bt$`)

// Store is the on-disk, type-tagged persistent build state (spec §4.8).
// One SQLite table per TypeID in the file buildstate_<N>.bt, N being the
// write version; each Commit runs in one transaction, so a failed commit
// leaves the last committed state intact (spec §6's "Persistent store
// layout").
type Store struct {
	mu      sync.Mutex
	dir     string
	db      *sqlx.DB
	version int

	factory Factory
	nextID  map[TypeID]uint64

	// objects and keyOf are the live identity maps: keyOf is consulted
	// before serializing an object to find whether it already has a Key,
	// implementing the "first encounter by identity assigns a fresh
	// index" rule from spec §4.8's shared-reference serialization.
	objects map[Key]Persistable
	keyOf   map[Persistable]Key
}

// Open scans dir for buildstate_<N>.bt snapshots, opens (or creates) the
// writable version, and retrieves its contents. If an older readable
// version is found it is copied forward to the current writable version
// and the copy is logged, per spec §4.8's "Storage versioning". If dir
// contains a snapshot from a version this build cannot read, Open returns
// an error instructing the caller to delete the build state.
func Open(dir string, writeVersion int, factory Factory) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating build state directory %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading build state directory %s: %w", dir, err)
	}

	var found []int
	for _, e := range entries {
		m := snapshotName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, n)
	}
	sort.Ints(found)

	writablePath := filepath.Join(dir, snapshotFileName(writeVersion))
	if _, err := os.Stat(writablePath); os.IsNotExist(err) && len(found) > 0 {
		newest := found[len(found)-1]
		if newest > writeVersion {
			return nil, fmt.Errorf("build state at %s was written by a newer, incompatible version (%d > %d); delete the build state directory and regenerate outputs", dir, newest, writeVersion)
		}
		if err := copySnapshot(filepath.Join(dir, snapshotFileName(newest)), writablePath); err != nil {
			return nil, fmt.Errorf("upgrading build state from version %d to %d: %w", newest, writeVersion, err)
		}
		log.Printf("[store] copied build state version %d to version %d in %s", newest, writeVersion, dir)
	}

	db, err := sqlx.Open("sqlite", writablePath)
	if err != nil {
		return nil, fmt.Errorf("opening build state %s: %w", writablePath, err)
	}
	s := &Store{
		dir:     dir,
		db:      db,
		version: writeVersion,
		factory: factory,
		nextID:  make(map[TypeID]uint64),
		objects: make(map[Key]Persistable),
		keyOf:   make(map[Persistable]Key),
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func snapshotFileName(version int) string {
	return fmt.Sprintf("buildstate_%d.bt", version)
}

func copySnapshot(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return renameio.WriteFile(dst, data, 0o644)
}

func (s *Store) createTables() error {
	for _, t := range AllTypes() {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, data BLOB NOT NULL)`, t.tableName())
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", t.tableName(), err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type row struct {
	ID   uint64 `db:"id"`
	Data []byte `db:"data"`
}

// Retrieve loads every persisted object, resolves shared references via
// the key↔object maps, and calls Restore on each (spec §4.8 retrieve()).
// It populates the Store's own live-object maps and also returns them so
// the caller can hand objects to the execution context.
func (s *Store) Retrieve() (map[Key]Persistable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retrieveLocked()
}

func (s *Store) retrieveLocked() (map[Key]Persistable, error) {
	type pending struct {
		key  Key
		data []byte
	}
	var all []pending

	for _, t := range AllTypes() {
		var rows []row
		if err := s.db.Select(&rows, fmt.Sprintf(`SELECT id, data FROM %s ORDER BY id`, t.tableName())); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.tableName(), err)
		}
		for _, r := range rows {
			k := NewKey(t, r.ID)
			obj, err := s.factory(t)
			if err != nil {
				return nil, fmt.Errorf("instantiating %s#%d: %w", t, r.ID, err)
			}
			s.objects[k] = obj
			s.keyOf[obj] = k
			if r.ID >= s.nextID[t] {
				s.nextID[t] = r.ID + 1
			}
			all = append(all, pending{key: k, data: r.Data})
		}
	}

	// Fields are decoded only after every object has a stub in s.objects,
	// so a field that references another object (encoded as a Key) can
	// already be resolved to a live stub even if that object's own fields
	// haven't been decoded yet — the pending-object table's cycle-safety
	// guarantee (spec §4.8).
	for _, p := range all {
		dec := newDecoder(p.data)
		if err := s.objects[p.key].Decode(dec); err != nil {
			return nil, fmt.Errorf("decoding %v: %w", p.key, err)
		}
	}
	for _, p := range all {
		s.objects[p.key].Restore(s.resolve)
	}

	out := make(map[Key]Persistable, len(s.objects))
	for k, v := range s.objects {
		out[k] = v
	}
	return out, nil
}

func (s *Store) resolve(k Key) (Persistable, bool) {
	obj, ok := s.objects[k]
	return obj, ok
}

// Commit diffs current against the Store's last-known object set into
// toInsert/toReplace/toRemove, allocates keys for new objects up front (so
// forward/cyclic references always have a Key to write), serializes, and
// commits each per-type table atomically in one transaction. On failure it
// calls Rollback and returns the failure (spec §4.8 store()).
func (s *Store) Commit(current map[Persistable]TypeID) (map[Persistable]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assigned := make(map[Persistable]Key, len(current))
	toInsert := make(map[Persistable]TypeID)
	for obj, t := range current {
		if k, ok := s.keyOf[obj]; ok {
			assigned[obj] = k
			continue
		}
		toInsert[obj] = t
	}
	// Allocate keys for every new object before serializing any of them.
	for obj, t := range toInsert {
		id := s.nextID[t]
		s.nextID[t]++
		k := NewKey(t, id)
		assigned[obj] = k
	}

	byKey := make(map[Key]Persistable, len(current))
	for obj, k := range assigned {
		byKey[k] = obj
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("beginning commit transaction: %w", err)
	}

	toRemove := make(map[Key]Persistable)
	for k, obj := range s.objects {
		if _, stillPresent := assigned[obj]; !stillPresent {
			toRemove[k] = obj
		}
	}

	commitErr := func() error {
		for k, obj := range byKey {
			data, err := encodeObject(obj)
			if err != nil {
				return fmt.Errorf("encoding %v: %w", k, err)
			}
			stmt := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`, k.Type().tableName())
			if _, err := tx.Exec(stmt, k.ID(), data); err != nil {
				return fmt.Errorf("writing %v: %w", k, err)
			}
		}
		for k := range toRemove {
			stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, k.Type().tableName())
			if _, err := tx.Exec(stmt, k.ID()); err != nil {
				return fmt.Errorf("removing %v: %w", k, err)
			}
		}
		return nil
	}()

	if commitErr != nil {
		tx.Rollback()
		if rbErr := s.rollbackLocked(); rbErr != nil {
			return nil, fmt.Errorf("commit failed (%v) and rollback also failed: %w", commitErr, rbErr)
		}
		return nil, fmt.Errorf("commit failed, in-memory state rolled back: %w", commitErr)
	}
	if err := tx.Commit(); err != nil {
		s.rollbackLocked()
		return nil, fmt.Errorf("committing build state: %w", err)
	}

	s.objects = byKey
	s.keyOf = make(map[Persistable]Key, len(byKey))
	for k, obj := range byKey {
		s.keyOf[obj] = k
	}
	return assigned, nil
}

// Rollback re-streams the Store's object set from the last committed
// snapshot, discarding any in-memory keys allocated since (spec §4.8
// rollback()).
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked()
}

func (s *Store) rollbackLocked() error {
	restored, err := s.retrieveLocked()
	if err != nil {
		return err
	}
	s.objects = restored
	s.keyOf = make(map[Persistable]Key, len(restored))
	for k, obj := range restored {
		s.keyOf[obj] = k
	}
	return nil
}
