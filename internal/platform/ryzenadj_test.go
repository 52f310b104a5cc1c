package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ryzenAdjInfoOutput = `CPU Family: Rembrandt
SMU BIOS Interface Version: 18
Version: v0.14.0
PM Table Version: 450005
|        Name         |   Value   |     Parameter      |
|---------------------|-----------|--------------------|
| STAPM LIMIT         |    28.000 | stapm-limit        |
| STAPM VALUE         |     9.862 |                    |
| PPT LIMIT FAST      |    35.000 | fast-limit         |
| PPT VALUE FAST      |    11.401 |                    |
| PPT LIMIT SLOW      |    30.000 | slow-limit         |
| PPT VALUE SLOW      |    10.085 |                    |
| THM LIMIT CORE      |   100.000 | tctl-temp          |
| THM VALUE CORE      |    54.236 |                    |
`

func TestParseRyzenAdjInfo(t *testing.T) {
	// WHEN
	limits := ParseRyzenAdjInfo(ryzenAdjInfoOutput)

	// THEN
	require.NotNil(t, limits.TdpWatts)
	require.NotNil(t, limits.ThermalLimitC)
	assert.Equal(t, 28.0, *limits.TdpWatts)
	assert.Equal(t, 100.0, *limits.ThermalLimitC)
}

func TestParseRyzenAdjInfo_Empty(t *testing.T) {
	// WHEN
	limits := ParseRyzenAdjInfo("")

	// THEN
	assert.Nil(t, limits.TdpWatts)
	assert.Nil(t, limits.ThermalLimitC)
}

func TestRyzenAdj_Commands(t *testing.T) {
	// GIVEN
	runner := &recordingRunner{output: ryzenAdjInfoOutput}
	ryzenAdj := NewRyzenAdjWithRunner("ryzenadj", runner.run)
	ctx := context.Background()

	// WHEN
	_, err := ryzenAdj.ReadLimits(ctx)
	require.NoError(t, err)
	require.NoError(t, ryzenAdj.ApplyTdp(ctx, 15))
	require.NoError(t, ryzenAdj.ApplyThermalLimit(ctx, 85))

	// THEN
	assert.Equal(t, [][]string{
		{"ryzenadj", "--info", "--dump-table"},
		{"ryzenadj", "--stapm-limit", "15000", "--fast-limit", "15000", "--slow-limit", "15000", "--dump-table"},
		{"ryzenadj", "--tctl-temp", "85", "--dump-table"},
	}, runner.calls)
}

func TestRyzenAdj_ReadLimits_Unparsable(t *testing.T) {
	// GIVEN
	runner := &recordingRunner{output: "unsupported CPU"}
	ryzenAdj := NewRyzenAdjWithRunner("ryzenadj", runner.run)

	// WHEN
	_, err := ryzenAdj.ReadLimits(context.Background())

	// THEN
	assert.ErrorIs(t, err, ErrTransientRead)
}
