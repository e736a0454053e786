package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Unit_MainQueue_Post_RunsInOrder_Success(t *testing.T) {
	t.Parallel()

	q := NewMainQueue()
	go q.Run()
	defer q.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		q.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, order)
}

func Test_Unit_MainQueue_Suspend_BlocksDispatch_Success(t *testing.T) {
	t.Parallel()

	q := NewMainQueue()
	go q.Run()
	defer q.Stop()

	q.Suspend()

	ran := make(chan struct{})
	q.Post(func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("task ran while suspended")
	case <-time.After(50 * time.Millisecond):
	}

	q.Resume()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran after resume")
	}
}

func Test_Unit_MainQueue_Stop_DrainsNoFurtherTasks_Success(t *testing.T) {
	t.Parallel()

	q := NewMainQueue()
	go q.Run()

	q.Stop()

	ran := false
	q.Post(func() { ran = true })
	time.Sleep(20 * time.Millisecond)
	require.False(t, ran)
}

func Test_Unit_MainQueue_RunUntilIdle_DrainsBacklog_Success(t *testing.T) {
	t.Parallel()

	q := NewMainQueue()

	var n int
	for i := 0; i < 5; i++ {
		q.Post(func() { n++ })
	}
	q.RunUntilIdle()

	require.Equal(t, 5, n)
}
