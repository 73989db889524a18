package export

import (
	"bytes"
	"testing"

	"wisefido-threshold/internal/matrix"
	"wisefido-threshold/internal/tagdelta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestGenerateRuleWorkbook(t *testing.T) {
	mx := matrix.NewMatrix(zap.NewNop())
	engine := tagdelta.NewEngine()

	data, err := GenerateRuleWorkbook(mx, engine)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetMatrix, SheetTagDeltas}, f.GetSheetList())

	rows, err := f.GetRows(SheetMatrix)
	require.NoError(t, err)
	require.Len(t, rows, len(mx.Entries())+1)
	assert.Equal(t, MatrixHeaders(), rows[0])

	var sepsisHigh []string
	for _, r := range rows[1:] {
		if r[0] == "sepsis" && r[1] == "high" {
			sepsisHigh = r
		}
	}
	require.NotNil(t, sepsisHigh)
	assert.Equal(t, []string{"70", "120", "50", "80"}, sepsisHigh[2:6])
	assert.Equal(t, "high", sepsisHigh[len(sepsisHigh)-3])

	deltas, err := f.GetRows(SheetTagDeltas)
	require.NoError(t, err)
	assert.Equal(t, "Tag", deltas[0][0])
	assert.Equal(t, []string{"sepsis", "range", "HR", "low", "0", "10"}, deltas[1][:6])
}
