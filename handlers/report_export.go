package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"p9e.in/launchpad/models"
)

const approvalsSheet = "Approvals"

var approvalColumns = []struct {
	label string
	width float64
}{
	{"Site", 28},
	{"Version", 10},
	{"Status", 12},
	{"Deployment Engineer", 24},
	{"Ops Manager", 24},
	{"Software Items", 14},
	{"Hardware Items", 14},
	{"Submitted", 20},
	{"Reviewed", 20},
	{"Review Comment", 36},
	{"Rejection Reason", 36},
}

// ExportApprovals downloads the filtered approval list as an .xlsx file.
// GET /api/v1/scoping-approvals/export?status=...&site_id=...
func (h *Handler) ExportApprovals(w http.ResponseWriter, r *http.Request) {
	filter, _, err := approvalFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	approvals, err := h.services.Scoping.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.now()
	f, err := buildApprovalsWorkbook(approvals, now)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build approvals workbook")
		http.Error(w, "Failed to generate Excel file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	buffer, err := f.WriteToBuffer()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to write approvals workbook")
		http.Error(w, "Failed to write Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("scoping_approvals_%s.xlsx", now.Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

func buildApprovalsWorkbook(approvals []models.ScopingApproval, generated time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(approvalsSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	f.SetCellValue(approvalsSheet, "A1", "Scoping Approvals")
	f.SetCellStyle(approvalsSheet, "A1", "A1", titleStyle)
	f.SetRowHeight(approvalsSheet, 1, 30)
	f.SetCellValue(approvalsSheet, "A2", fmt.Sprintf("Generated: %s", generated.Format("2006-01-02 15:04:05")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	for i, col := range approvalColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(approvalsSheet, cell, col.label)
		f.SetCellStyle(approvalsSheet, cell, cell, headerStyle)
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(approvalsSheet, name, name, col.width)
	}

	for rowIdx, a := range approvals {
		data := a.ScopingData.Data()
		row := []any{
			a.SiteName,
			a.Version,
			string(a.Status),
			a.DeploymentEngineerName,
			deref(a.OpsManagerName),
			len(data.SelectedSoftware),
			len(data.SelectedHardware),
			a.SubmittedAt.Format("2006-01-02 15:04:05"),
			formatTime(a.ReviewedAt),
			deref(a.ReviewComment),
			deref(a.RejectionReason),
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+5)
		if err := f.SetSheetRow(approvalsSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
