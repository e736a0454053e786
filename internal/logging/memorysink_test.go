package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Unit_MemorySink_Log_AppendsRecords_Success(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	sink.Log(Record{Time: time.Now(), Aspect: Info, Node: "//a", Message: "one"})
	sink.Log(Record{Time: time.Now(), Aspect: Error, Node: "//b", Message: "two"})

	records := sink.Records()
	require.Len(t, records, 2)
	require.Equal(t, "//a", records[0].Node)
	require.Equal(t, Error, records[1].Aspect)
}

func Test_Unit_MemorySink_Records_ReturnsCopy_Success(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	sink.Log(Record{Node: "//a"})

	records := sink.Records()
	records[0].Node = "mutated"

	require.Equal(t, "//a", sink.Records()[0].Node)
}

func Test_Unit_MemorySink_Reset_ClearsRecords_Success(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	sink.Log(Record{Node: "//a"})
	sink.Reset()

	require.Empty(t, sink.Records())
}
