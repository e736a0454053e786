package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeNode is a minimal Persistable used to exercise Store without any
// internal/graph dependency: a name, a value, and an optional reference to
// another fakeNode (to exercise the pending-object/Restore cycle-safety
// path, spec §4.8).
type fakeNode struct {
	Name   string
	Value  int
	refKey Key
	hasRef bool
	ref    *fakeNode
}

func (n *fakeNode) TypeID() TypeID { return TypeCommand }

func (n *fakeNode) Encode(enc *Encoder) error {
	if err := enc.Put(n.Name); err != nil {
		return err
	}
	if err := enc.Put(n.Value); err != nil {
		return err
	}
	if err := enc.Put(n.hasRef); err != nil {
		return err
	}
	if n.hasRef {
		return enc.Ref(n.refKey)
	}
	return nil
}

func (n *fakeNode) Decode(dec *Decoder) error {
	if err := dec.Get(&n.Name); err != nil {
		return err
	}
	if err := dec.Get(&n.Value); err != nil {
		return err
	}
	if err := dec.Get(&n.hasRef); err != nil {
		return err
	}
	if n.hasRef {
		k, err := dec.GetRef()
		if err != nil {
			return err
		}
		n.refKey = k
	}
	return nil
}

func (n *fakeNode) Restore(resolve func(Key) (Persistable, bool)) {
	if !n.hasRef {
		return
	}
	if obj, ok := resolve(n.refKey); ok {
		n.ref = obj.(*fakeNode)
	}
}

func newFakeFactory() Factory {
	return func(t TypeID) (Persistable, error) {
		return &fakeNode{}, nil
	}
}

func Test_Unit_Store_CommitRetrieve_RoundTrips_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir, 1, newFakeFactory())
	require.NoError(t, err)
	defer s.Close()

	a := &fakeNode{Name: "a", Value: 1}
	b := &fakeNode{Name: "b", Value: 2}

	assigned, err := s.Commit(map[Persistable]TypeID{a: TypeCommand, b: TypeCommand})
	require.NoError(t, err)
	require.Len(t, assigned, 2)

	s.Close()

	s2, err := Open(dir, 1, newFakeFactory())
	require.NoError(t, err)
	defer s2.Close()

	objs, err := s2.Retrieve()
	require.NoError(t, err)
	require.Len(t, objs, 2)

	names := map[string]int{}
	for _, o := range objs {
		fn := o.(*fakeNode)
		names[fn.Name] = fn.Value
	}
	require.Equal(t, 1, names["a"])
	require.Equal(t, 2, names["b"])
}

func Test_Unit_Store_Commit_ResolvesForwardReference_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir, 1, newFakeFactory())
	require.NoError(t, err)
	defer s.Close()

	a := &fakeNode{Name: "a"}
	b := &fakeNode{Name: "b"}

	// First commit allocates keys for both so b can reference a.
	assigned, err := s.Commit(map[Persistable]TypeID{a: TypeCommand, b: TypeCommand})
	require.NoError(t, err)

	b.hasRef = true
	b.refKey = assigned[a]
	_, err = s.Commit(map[Persistable]TypeID{a: TypeCommand, b: TypeCommand})
	require.NoError(t, err)

	s.Close()

	s2, err := Open(dir, 1, newFakeFactory())
	require.NoError(t, err)
	defer s2.Close()

	objs, err := s2.Retrieve()
	require.NoError(t, err)

	var gotB *fakeNode
	for _, o := range objs {
		fn := o.(*fakeNode)
		if fn.Name == "b" {
			gotB = fn
		}
	}
	require.NotNil(t, gotB)
	require.NotNil(t, gotB.ref)
	require.Equal(t, "a", gotB.ref.Name)
}

func Test_Unit_Store_Commit_RemovesDroppedObjects_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir, 1, newFakeFactory())
	require.NoError(t, err)
	defer s.Close()

	a := &fakeNode{Name: "a"}
	b := &fakeNode{Name: "b"}
	_, err = s.Commit(map[Persistable]TypeID{a: TypeCommand, b: TypeCommand})
	require.NoError(t, err)

	_, err = s.Commit(map[Persistable]TypeID{a: TypeCommand})
	require.NoError(t, err)

	objs, err := s.Retrieve()
	require.NoError(t, err)
	require.Len(t, objs, 1)
}

func Test_Unit_Store_Open_NewerSnapshotRejected_Fail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir, 5, newFakeFactory())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(dir, 2, newFakeFactory())
	require.Error(t, err)
	require.Contains(t, err.Error(), "newer, incompatible version")
}

func Test_Unit_Store_Open_UpgradesOlderSnapshot_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir, 1, newFakeFactory())
	require.NoError(t, err)
	a := &fakeNode{Name: "a"}
	_, err = s.Commit(map[Persistable]TypeID{a: TypeCommand})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(dir, 2, newFakeFactory())
	require.NoError(t, err)
	defer s2.Close()

	require.FileExists(t, filepath.Join(dir, "buildstate_2.bt"))

	objs, err := s2.Retrieve()
	require.NoError(t, err)
	require.Len(t, objs, 1)
}
