package progress

import (
	"testing"

	"github.com/rpcpool/splicegen/extent"
	"github.com/stretchr/testify/require"
)

func TestEventKind_String(t *testing.T) {
	require.Equal(t, "extent_found", ExtentFound.String())
	require.Equal(t, "building_plan", BuildingPlan.String())
}

func TestNop_SatisfiesBothSinkInterfaces(t *testing.T) {
	var s Sink = Nop{}
	s.Notify(Event{Kind: Emitting})

	var es extent.Sink = Nop{}
	es.ExtentFound("f", 0, 0, 0)
}

func TestKlogSink_SatisfiesBothSinkInterfaces(t *testing.T) {
	var s Sink = NewKlogSink()
	var es extent.Sink = NewKlogSink()
	_ = s
	_ = es
}
