package service

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Unit_GobConn_SendReceive_RoundTrips_Success(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cConn := NewGobConn(client)
	sConn := NewGobConn(server)

	req := BuildRequest{ID: uuid.New(), Targets: []string{"//a:b"}, KeepGoing: true, MaxWorkers: 4}

	errCh := make(chan error, 1)
	go func() { errCh <- cConn.Send(req) }()

	msg, err := sConn.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	got, ok := msg.(BuildRequest)
	require.True(t, ok)
	require.Equal(t, req.ID, got.ID)
	require.Equal(t, req.Targets, got.Targets)
	require.True(t, got.KeepGoing)
	require.Equal(t, 4, got.MaxWorkers)
}

func Test_Unit_GobConn_SendReceive_MultipleMessageTypes_Success(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cConn := NewGobConn(client)
	sConn := NewGobConn(server)

	go func() {
		cConn.Send(LogRecord{})
		cConn.Send(BuildResult{Success: true, Executed: 3})
	}()

	first, err := sConn.Receive()
	require.NoError(t, err)
	_, ok := first.(LogRecord)
	require.True(t, ok)

	second, err := sConn.Receive()
	require.NoError(t, err)
	result, ok := second.(BuildResult)
	require.True(t, ok)
	require.True(t, result.Success)
	require.Equal(t, 3, result.Executed)
}

func Test_Unit_GobConn_Close_ErrorsFurtherReceive_Fail(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer server.Close()

	cConn := NewGobConn(client)
	require.NoError(t, cConn.Close())

	_, err := cConn.Receive()
	require.Error(t, err)
}
