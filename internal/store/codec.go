package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Persistable is anything the store can snapshot. Encode/Decode see only
// plain data and Keys — a field that refers to another persisted object
// encodes as that object's Key (spec §4.8: "a reference serializes as a
// key"), resolved back to the live object during Restore.
type Persistable interface {
	TypeID() TypeID
	Encode(enc *Encoder) error
	Decode(dec *Decoder) error
	// Restore re-binds fields that aren't serialized directly — observer
	// back-references, caches — once every object in the snapshot has been
	// allocated and its own fields decoded (spec §4.8 retrieve() step 3).
	Restore(resolve func(Key) (Persistable, bool))
}

// Encoder accumulates one object's serialized fields.
type Encoder struct {
	buf bytes.Buffer
	enc *gob.Encoder
}

func newEncoder() *Encoder {
	e := &Encoder{}
	e.enc = gob.NewEncoder(&e.buf)
	return e
}

// Put writes one named field's value.
func (e *Encoder) Put(v interface{}) error {
	return e.enc.Encode(v)
}

// Ref writes a reference to another persisted object as its Key. The
// referenced object must already have a Key — store.Commit allocates keys
// for every new object before encoding any of them, specifically so
// forward and cyclic references always have a Key to write (spec §4.8:
// "allocate keys for all new objects before serialization").
func (e *Encoder) Ref(k Key) error {
	return e.enc.Encode(k)
}

func (e *Encoder) bytes() []byte { return e.buf.Bytes() }

// Decoder replays one object's serialized fields in the order Encode wrote
// them.
type Decoder struct {
	dec *gob.Decoder
}

func newDecoder(data []byte) *Decoder {
	return &Decoder{dec: gob.NewDecoder(bytes.NewReader(data))}
}

func (d *Decoder) Get(v interface{}) error {
	return d.dec.Decode(v)
}

func (d *Decoder) GetRef() (Key, error) {
	var k Key
	if err := d.dec.Decode(&k); err != nil {
		return 0, fmt.Errorf("decoding ref: %w", err)
	}
	return k, nil
}

func encodeObject(p Persistable) ([]byte, error) {
	enc := newEncoder()
	if err := p.Encode(enc); err != nil {
		return nil, err
	}
	return enc.bytes(), nil
}
