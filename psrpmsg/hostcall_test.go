package psrpmsg

import (
	"testing"

	"github.com/oleiade/psrp/psrpval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostCallRoundTrip(t *testing.T) {
	hc := HostCall{
		CallID:     7,
		MethodID:   HostMethodWriteProgress,
		MethodName: "WriteProgress",
		Parameters: []psrpval.Value{
			psrpval.FromPrimitive(psrpval.I64(0)),
			psrpval.FromObj(NewProgressRecord("A", 1).ToObj()),
		},
	}
	got := roundTripVal(t, psrpval.FromObj(hc.ToObj()))
	out, err := HostCallFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.CallID)
	assert.Equal(t, int32(HostMethodWriteProgress), out.MethodID)
	assert.Equal(t, "WriteProgress", out.MethodName)
	require.Len(t, out.Parameters, 2)
}

func TestVoidHostResponseRoundTrip(t *testing.T) {
	hr := NewVoidHostResponse(7, HostMethodWriteProgress, "WriteProgress")
	got := roundTripVal(t, psrpval.FromObj(hr.ToObj()))
	out, err := HostResponseFromValue(got)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.CallID)
	assert.False(t, out.HasResult)
	assert.False(t, out.HasError)
}

func TestHostResponseWithResultRoundTrip(t *testing.T) {
	hr := HostResponse{
		CallID:     3,
		MethodID:   HostMethodReadLine,
		MethodName: "ReadLine",
		Result:     psrpval.FromPrimitive(psrpval.String("user input")),
		HasResult:  true,
	}
	got := roundTripVal(t, psrpval.FromObj(hr.ToObj()))
	out, err := HostResponseFromValue(got)
	require.NoError(t, err)
	require.True(t, out.HasResult)
	assert.Equal(t, "user input", out.Result.Prim.Str)
	assert.False(t, out.HasError)
}

func TestHostResponseWithExceptionRoundTrip(t *testing.T) {
	errObj := ErrorRecord{Message: "host call failed"}.ToObj()
	hr := HostResponse{
		CallID:     4,
		MethodID:   HostMethodPromptForChoice,
		MethodName: "PromptForChoice",
		Exception:  psrpval.FromObj(errObj),
		HasError:   true,
	}
	got := roundTripVal(t, psrpval.FromObj(hr.ToObj()))
	out, err := HostResponseFromValue(got)
	require.NoError(t, err)
	require.True(t, out.HasError)
	assert.False(t, out.HasResult)
	require.NotNil(t, out.Exception.Obj)
}
