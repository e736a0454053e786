package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_EncodeDecode_Object_RoundTrips_Success(t *testing.T) {
	t.Parallel()

	n := &fakeNode{Name: "x", Value: 7}
	data, err := encodeObject(n)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got := &fakeNode{}
	dec := newDecoder(data)
	require.NoError(t, got.Decode(dec))
	require.Equal(t, "x", got.Name)
	require.Equal(t, 7, got.Value)
}

func Test_Unit_EncodeDecode_Ref_RoundTrips_Success(t *testing.T) {
	t.Parallel()

	n := &fakeNode{Name: "y", hasRef: true, refKey: NewKey(TypeCommand, 3)}
	data, err := encodeObject(n)
	require.NoError(t, err)

	got := &fakeNode{}
	require.NoError(t, got.Decode(newDecoder(data)))
	require.True(t, got.hasRef)
	require.Equal(t, NewKey(TypeCommand, 3), got.refKey)
}
