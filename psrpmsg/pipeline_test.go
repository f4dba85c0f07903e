package psrpmsg

import (
	"testing"

	"github.com/oleiade/psrp/psrpval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePipelineRoundTrip(t *testing.T) {
	useLocalScope := true
	cp := CreatePipeline{
		NoInput:             true,
		ApartmentState:      ApartmentUnknown,
		RemoteStreamOptions: RemoteStreamNone,
		AddToHistory:        true,
		HostInfo:            HostInfoAllNull(),
		Pipeline: PowerShellPipeline{
			Cmds: []Command{
				{
					Cmd:           "Invoke-Expression",
					IsScript:      false,
					UseLocalScope: &useLocalScope,
					Args: []CommandParameter{
						{Value: psrpval.FromPrimitive(psrpval.String("Get-Process"))},
					},
					MergeMyResult:        ResultNone,
					MergeToResult:        ResultNone,
					MergePreviousResults: ResultNone,
					MergeError:           ResultOutput,
				},
				{
					Cmd:      "Out-String",
					IsScript: false,
				},
			},
			IsNested:                     false,
			RedirectShellErrorOutputPipe: false,
		},
		IsNested: false,
	}

	v := psrpval.FromObj(cp.ToObj())
	got := roundTripVal(t, v)
	out, err := CreatePipelineFromValue(got)
	require.NoError(t, err)

	assert.True(t, out.NoInput)
	assert.Equal(t, ApartmentUnknown, out.ApartmentState)
	assert.True(t, out.AddToHistory)
	assert.True(t, out.HostInfo.IsHostNull)
	require.Len(t, out.Pipeline.Cmds, 2)
	assert.Equal(t, "Invoke-Expression", out.Pipeline.Cmds[0].Cmd)
	require.NotNil(t, out.Pipeline.Cmds[0].UseLocalScope)
	assert.True(t, *out.Pipeline.Cmds[0].UseLocalScope)
	assert.Equal(t, ResultOutput, out.Pipeline.Cmds[0].MergeError)
	require.Len(t, out.Pipeline.Cmds[0].Args, 1)
	assert.Equal(t, "Get-Process", out.Pipeline.Cmds[0].Args[0].Value.Prim.Str)
	assert.Equal(t, "Out-String", out.Pipeline.Cmds[1].Cmd)
}

func TestGetCommandMetadataRoundTrip(t *testing.T) {
	gcm := GetCommandMetadata{
		Names:        []string{"Get-*", "Set-*"},
		CommandTypes: 15,
		Namespace:    []string{"Microsoft.PowerShell.Management"},
	}
	got := roundTripVal(t, psrpval.FromObj(gcm.ToObj()))
	out, err := GetCommandMetadataFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, []string{"Get-*", "Set-*"}, out.Names)
	assert.Equal(t, int32(15), out.CommandTypes)
	assert.Equal(t, []string{"Microsoft.PowerShell.Management"}, out.Namespace)
}

func TestPipelineInputOutputRoundTrip(t *testing.T) {
	in := PipelineInput{Data: psrpval.FromPrimitive(psrpval.String("line one"))}
	got := roundTripVal(t, in.ToValue())
	outIn, err := PipelineInputFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, "line one", outIn.Data.Prim.Str)

	out := PipelineOutput{Data: psrpval.FromPrimitive(psrpval.I32(42))}
	got2 := roundTripVal(t, out.ToValue())
	outOut, err := PipelineOutputFromValue(got2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), outOut.Data.Prim.Int)
}

func TestEndOfPipelineInputRoundTrip(t *testing.T) {
	got := roundTripVal(t, psrpval.FromObj(EndOfPipelineInput{}.ToObj()))
	_, err := EndOfPipelineInputFromValue(got)
	require.NoError(t, err)
}

func TestPipelineStateMessageRoundTrip(t *testing.T) {
	msg := PipelineStateMessage{State: PipelineCompleted}
	got := roundTripVal(t, psrpval.FromObj(msg.ToObj()))
	out, err := PipelineStateMessageFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, PipelineCompleted, out.State)
	assert.True(t, out.IsTerminal())
}

func TestPipelineStateMessageInvalidOrdinal(t *testing.T) {
	o := newMsgObj()
	setI32(o.Extended, "PipelineState", 999)
	_, err := PipelineStateMessageFromValue(psrpval.FromObj(o))
	require.Error(t, err)
	var invErr *InvalidEnumOrdinalError
	require.ErrorAs(t, err, &invErr)
}
