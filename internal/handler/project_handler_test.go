package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/8around/outsourcing-design-park-sub000/internal/testutil"
)

func setupProjectHandlerTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	stageSvc := service.NewStageService(repos.Stage, repos.Project, repos.HistoryLog, nil)
	projectSvc := service.NewProjectService(repos.Project, repos.Stage, stageSvc, nil, db)

	projectHandler := NewProjectHandler(projectSvc)
	stageHandler := NewStageHandler(stageSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/projects", projectHandler.CreateProject)
	api.GET("/projects/:id", projectHandler.GetProject)
	api.GET("/projects", projectHandler.ListProjects)
	api.GET("/projects/:id/stages", stageHandler.ListStages)
	api.PUT("/projects/:id/stages/:stage", stageHandler.UpdateStage)
	api.POST("/projects/:id/stages/advance", stageHandler.MoveToNextStage)

	testutil.SeedTestUser(t, db, "test-user-001", "Test Admin", "admin@test.com")

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

// TestProjectCreateAndAdvance drives the create → stage list → advance flow
// through the HTTP layer.
func TestProjectCreateAndAdvance(t *testing.T) {
	env := setupProjectHandlerTest(t)
	token := testutil.DefaultTestToken()

	order := time.Now().Format(time.RFC3339)
	due := time.Now().AddDate(0, 2, 0).Format(time.RFC3339)
	body := map[string]interface{}{
		"name":                     "机箱外协项目",
		"site":                     "名古屋",
		"order_date":               order,
		"expected_completion_date": due,
		"is_urgent":                true,
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/projects", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	projectID := data["id"].(string)
	if data["current_process_stage"] != entity.StageContract {
		t.Fatalf("expected contract current stage, got %v", data["current_process_stage"])
	}

	// 工序列表
	w2 := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/projects/"+projectID+"/stages", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	stages := testutil.ParseResponse(w2)["data"].([]interface{})
	if len(stages) != entity.StageCount {
		t.Fatalf("expected %d stages, got %d", entity.StageCount, len(stages))
	}

	// 推进：contract完成，design开始
	w3 := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/projects/"+projectID+"/stages/advance", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
	advData := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	if advData["advanced"] != true {
		t.Fatalf("expected advanced=true, got %v", advData["advanced"])
	}
	started := advData["started"].(map[string]interface{})
	if started["stage_name"] != entity.StageDesign {
		t.Fatalf("expected design started, got %v", started["stage_name"])
	}

	// 详情应反映新指针和进度
	w4 := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/projects/"+projectID, nil, token)
	if w4.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w4.Code, w4.Body.String())
	}
	detail := testutil.ParseResponse(w4)["data"].(map[string]interface{})
	project := detail["project"].(map[string]interface{})
	if project["current_process_stage"] != entity.StageDesign {
		t.Fatalf("expected design current stage, got %v", project["current_process_stage"])
	}
	if detail["progress"].(float64) != 7 {
		t.Fatalf("expected progress 7, got %v", detail["progress"])
	}
}

// TestStageUpdateValidation verifies bad stage names and statuses get 400.
func TestStageUpdateValidation(t *testing.T) {
	env := setupProjectHandlerTest(t)
	token := testutil.DefaultTestToken()

	order := time.Now().Format(time.RFC3339)
	due := time.Now().AddDate(0, 1, 0).Format(time.RFC3339)
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/v1/projects", map[string]interface{}{
		"name":                     "校验项目",
		"order_date":               order,
		"expected_completion_date": due,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	projectID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 未知工序名
	w2 := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/projects/"+projectID+"/stages/polishing",
		map[string]interface{}{"status": "in_progress"}, token)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown stage, got %d: %s", w2.Code, w2.Body.String())
	}

	// 非法状态
	w3 := testutil.DoRequest(env.Router, http.MethodPut, "/api/v1/projects/"+projectID+"/stages/"+entity.StageDesign,
		map[string]interface{}{"status": "paused"}, token)
	if w3.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d: %s", w3.Code, w3.Body.String())
	}

	// 未认证请求
	w4 := testutil.DoRequest(env.Router, http.MethodGet, "/api/v1/projects", nil, "")
	if w4.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w4.Code)
	}
}
