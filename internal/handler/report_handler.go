package handler

import (
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler 报表处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// ExportProjects 导出项目工序汇总Excel
// GET /api/v1/reports/projects?site=xxx&current_stage=xxx&is_urgent=true
func (h *ReportHandler) ExportProjects(c *gin.Context) {
	filters := map[string]string{
		"site":          c.Query("site"),
		"current_stage": c.Query("current_stage"),
		"is_urgent":     c.Query("is_urgent"),
		"search":        c.Query("search"),
	}

	f, filename, err := h.svc.ExportProjects(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "导出报表失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
