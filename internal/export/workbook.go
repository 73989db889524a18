package export

import (
	"bytes"
	"fmt"
	"sort"

	"wisefido-threshold/internal/matrix"
	m "wisefido-threshold/internal/models"
	"wisefido-threshold/internal/tagdelta"

	"github.com/xuri/excelize/v2"
)

const (
	SheetMatrix    = "Matrix"
	SheetTagDeltas = "Tag Deltas"
)

var riskOrder = []m.RiskLevel{m.RiskLow, m.RiskMid, m.RiskHigh}

// GenerateRuleWorkbook 导出规则矩阵与标签增量表（xlsx）
func GenerateRuleWorkbook(mx *matrix.Matrix, engine *tagdelta.Engine) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前文件必须保持打开

	index, err := f.NewSheet(SheetMatrix)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetTagDeltas); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeMatrixSheet(f, mx, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeTagDeltaSheet(f, engine, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// MatrixHeaders Matrix 表头
func MatrixHeaders() []string {
	headers := []string{"Problem", "Risk"}
	for _, p := range m.Parameters {
		unit := m.ParameterUnits[p]
		headers = append(headers,
			fmt.Sprintf("%s Min (%s)", p, unit),
			fmt.Sprintf("%s Max (%s)", p, unit),
		)
	}
	for _, o := range m.Organs {
		headers = append(headers, string(o))
	}
	return headers
}

func writeMatrixSheet(f *excelize.File, mx *matrix.Matrix, headerStyle int) error {
	if err := writeHeader(f, SheetMatrix, MatrixHeaders(), headerStyle); err != nil {
		return err
	}

	row := 2
	for _, e := range mx.Entries() {
		values := []interface{}{e.ProblemID, string(e.RiskLevel)}
		for _, p := range m.Parameters {
			r := e.Ranges[p]
			values = append(values, boundValue(r.Min), boundValue(r.Max))
		}
		for _, o := range m.Organs {
			values = append(values, e.OrganLevels[o].String())
		}
		if err := writeRow(f, SheetMatrix, row, values); err != nil {
			return err
		}
		row++
	}
	return freezeHeader(f, SheetMatrix)
}

func writeTagDeltaSheet(f *excelize.File, engine *tagdelta.Engine, headerStyle int) error {
	headers := []string{"Tag", "Kind", "Target", "Risk", "Min Delta", "Max Delta", "Step"}
	if err := writeHeader(f, SheetTagDeltas, headers, headerStyle); err != nil {
		return err
	}

	row := 2
	for _, tag := range engine.KnownTags() {
		d, _ := engine.Delta(tag)
		for _, p := range m.Parameters {
			byRisk, ok := d.Ranges[p]
			if !ok {
				continue
			}
			for _, risk := range riskOrder {
				rd, ok := byRisk[risk]
				if !ok {
					continue
				}
				values := []interface{}{string(tag), "range", string(p), string(risk), rd.MinDelta, rd.MaxDelta, ""}
				if err := writeRow(f, SheetTagDeltas, row, values); err != nil {
					return err
				}
				row++
			}
		}

		organs := make([]string, 0, len(d.Organs))
		for o := range d.Organs {
			organs = append(organs, string(o))
		}
		sort.Strings(organs)
		for _, o := range organs {
			values := []interface{}{string(tag), "organ", o, "", "", "", d.Organs[m.OrganID(o)]}
			if err := writeRow(f, SheetTagDeltas, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return freezeHeader(f, SheetTagDeltas)
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, 16); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		if v == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, i+1, err)
		}
	}
	return nil
}

func freezeHeader(f *excelize.File, sheet string) error {
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// boundValue unset 边界导出为 "unset"
func boundValue(b m.Bound) interface{} {
	if b == nil {
		return "unset"
	}
	return *b
}
