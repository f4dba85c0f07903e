package psrpmsg

import (
	"testing"

	"github.com/oleiade/psrp/psrpval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostInfoAllNullRoundTrip(t *testing.T) {
	hi := HostInfoAllNull()
	got := roundTripVal(t, psrpval.FromObj(hi.toObj()))
	out, err := hostInfoFromObj(got.Obj)
	require.NoError(t, err)
	assert.True(t, out.IsHostNull)
	assert.True(t, out.IsHostUINull)
	assert.True(t, out.IsHostRawUINull)
	assert.True(t, out.UseRunspaceHost)
	assert.Equal(t, hi.HostDefaultData, out.HostDefaultData)
}

func TestHostDefaultDataRoundTrip(t *testing.T) {
	d := DefaultHostDefaultData()
	d.CursorPosition = Coordinates{X: 1, Y: 2}
	d.WindowPosition = Coordinates{X: 3, Y: 4}
	d.WindowTitle = "Custom Title"

	hi := HostInfo{HostDefaultData: d}
	got := roundTripVal(t, psrpval.FromObj(hi.toObj()))
	out, err := hostInfoFromObj(got.Obj)
	require.NoError(t, err)
	assert.Equal(t, d, out.HostDefaultData)
}

func TestCoordinatesAndSizeRoundTrip(t *testing.T) {
	c := Coordinates{X: 5, Y: 9}
	got := roundTripVal(t, psrpval.FromObj(c.toObj()))
	outC, err := coordinatesFromObj(got.Obj)
	require.NoError(t, err)
	assert.Equal(t, c, outC)

	s := Size{Width: 120, Height: 30}
	got2 := roundTripVal(t, psrpval.FromObj(s.toObj()))
	outS, err := sizeFromObj(got2.Obj)
	require.NoError(t, err)
	assert.Equal(t, s, outS)
}
