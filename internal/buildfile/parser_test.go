package buildfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Unit_Parse_AssignmentAndRule_Success(t *testing.T) {
	t.Parallel()

	src := "CC = gcc\n: foo.c |> $(CC) -c %f -o %o |> foo.o\n"
	f, err := Parse(src)
	require.NoError(t, err)

	require.Len(t, f.Variables, 1)
	require.Equal(t, Assignment{Name: "CC", Value: "gcc"}, f.Variables[0])

	require.Len(t, f.Rules, 1)
	rule := f.Rules[0]
	require.False(t, rule.Foreach)
	require.Equal(t, []Pattern{{Kind: PatternGlob, Text: "foo.c"}}, rule.Inputs)
	require.Equal(t, []Pattern{{Kind: PatternGlob, Text: "foo.o"}}, rule.Outputs)
}

func Test_Unit_Parse_ForeachWithExcludedAndGroupInputs_Success(t *testing.T) {
	t.Parallel()

	src := ": foreach *.c ^skip.c <headers> |> cc %f |> %b.o\n"
	f, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, f.Rules, 1)

	rule := f.Rules[0]
	require.True(t, rule.Foreach)
	require.Equal(t, []Pattern{
		{Kind: PatternGlob, Text: "*.c"},
		{Kind: PatternGlob, Text: "skip.c", Excluded: true},
		{Kind: PatternGroup, Text: "headers"},
	}, rule.Inputs)
}

func Test_Unit_Parse_BinOutput_Success(t *testing.T) {
	t.Parallel()

	src := ": a.c |> cc %f |> {objs}\n"
	f, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, []Pattern{{Kind: PatternBin, Text: "objs"}}, f.Rules[0].Outputs)
}

func Test_Unit_Parse_MultipleRulesAndVariables_Success(t *testing.T) {
	t.Parallel()

	src := "A = 1\nB = 2\n: a |> s1 |> oa\n: b |> s2 |> ob\n"
	f, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, f.Variables, 2)
	require.Len(t, f.Rules, 2)
}

func Test_Unit_Parse_MissingScript_Fail(t *testing.T) {
	t.Parallel()

	_, err := Parse(": a.c |> out\n")
	require.Error(t, err)

	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func Test_Unit_Parse_UnexpectedTopLevelToken_Fail(t *testing.T) {
	t.Parallel()

	_, err := Parse("{ broken\n")
	require.Error(t, err)
}

func Test_Unit_Parse_EmptyFile_Success(t *testing.T) {
	t.Parallel()

	f, err := Parse("")
	require.NoError(t, err)
	require.Empty(t, f.Variables)
	require.Empty(t, f.Rules)
}
