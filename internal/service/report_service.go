package service

import (
	"context"
	"fmt"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/xuri/excelize/v2"
)

// ReportService 报表服务
type ReportService struct {
	projectRepo *repository.ProjectRepository
	stageRepo   *repository.StageRepository
}

func NewReportService(projectRepo *repository.ProjectRepository, stageRepo *repository.StageRepository) *ReportService {
	return &ReportService{
		projectRepo: projectRepo,
		stageRepo:   stageRepo,
	}
}

var projectExportHeaders = []string{
	"项目编码", "项目名称", "现场", "产品名称", "品番",
	"当前工序", "进度(%)", "加急", "订单日期", "预定完了日",
	"创建时间",
}

// ExportProjects 导出项目工序汇总表。首页为项目一览，每个项目附带各工序状态列。
func (s *ReportService) ExportProjects(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	projects, _, err := s.projectRepo.FindAll(ctx, 1, 1000, filters)
	if err != nil {
		return nil, "", fmt.Errorf("查询项目失败: %w", err)
	}

	f := excelize.NewFile()
	sheet := "项目一览"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	headers := make([]string, 0, len(projectExportHeaders)+entity.StageCount)
	headers = append(headers, projectExportHeaders...)
	headers = append(headers, entity.StageSequence[:]...)

	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx := range projects {
		p := &projects[rowIdx]
		row := rowIdx + 2

		stages, err := s.stageRepo.FindByProject(ctx, p.ID)
		if err != nil {
			return nil, "", fmt.Errorf("查询工序失败: %w", err)
		}

		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.Code)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.Name)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), p.Site)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), p.ProductName)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), p.ProductNumber)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), p.CurrentProcessStage)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), ComputeProgress(stages))
		if p.IsUrgent {
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), "是")
		} else {
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), "否")
		}
		if p.OrderDate != nil {
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), p.OrderDate.Format("2006-01-02"))
		}
		if p.ExpectedCompletion != nil {
			f.SetCellValue(sheet, fmt.Sprintf("J%d", row), p.ExpectedCompletion.Format("2006-01-02"))
		}
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), p.CreatedAt.Format("2006-01-02 15:04"))

		statusByName := make(map[string]string, len(stages))
		for i := range stages {
			statusByName[stages[i].StageName] = stages[i].Status
		}
		for i, name := range entity.StageSequence {
			col, _ := excelize.ColumnNumberToName(len(projectExportHeaders) + i + 1)
			f.SetCellValue(sheet, col+fmt.Sprintf("%d", row), statusByName[name])
		}
	}

	f.SetColWidth(sheet, "A", "B", 18)
	f.SetColWidth(sheet, "C", "E", 14)

	filename := fmt.Sprintf("projects_%s.xlsx", time.Now().Format("20060102_150405"))
	return f, filename, nil
}
