package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_PriorityDispatcher_Pop_HighestLevelFirst_Success(t *testing.T) {
	t.Parallel()

	d := NewPriorityDispatcher()
	var order []string
	d.Push(Low, func() { order = append(order, "low") })
	d.Push(VeryHigh, func() { order = append(order, "veryhigh") })
	d.Push(Medium, func() { order = append(order, "medium") })
	d.Push(VeryHigh, func() { order = append(order, "veryhigh2") })

	require.Equal(t, 4, d.Len())

	for {
		f, ok := d.Pop()
		if !ok {
			break
		}
		f()
	}

	require.Equal(t, []string{"veryhigh", "veryhigh2", "medium", "low"}, order)
	require.Equal(t, 0, d.Len())
}

func Test_Unit_PriorityDispatcher_Pop_EmptyReturnsFalse_Fail(t *testing.T) {
	t.Parallel()

	d := NewPriorityDispatcher()
	_, ok := d.Pop()
	require.False(t, ok)
}

func Test_Unit_Priority_String_Success(t *testing.T) {
	t.Parallel()

	require.Equal(t, "VeryHigh", VeryHigh.String())
	require.Equal(t, "Unknown", Priority(99).String())
}
