package controller

import (
	"net/http"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/exception"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
)

type TablesController interface {
	ListOrphanedTables(w http.ResponseWriter, r *http.Request)
	DeleteOrphanedTable(w http.ResponseWriter, r *http.Request)
	RegisterOwnership(w http.ResponseWriter, r *http.Request)
	ListOptimizableTables(w http.ResponseWriter, r *http.Request)
	OptimizeTable(w http.ResponseWriter, r *http.Request)
}

func NewTablesController(
	orphanedTablesService service.OrphanedTablesService,
	optimizerService service.OptimizerService,
	rateLimitService service.RateLimitService,
) TablesController {
	return &tablesControllerImpl{
		orphanedTablesService: orphanedTablesService,
		optimizerService:      optimizerService,
		rateLimitService:      rateLimitService,
	}
}

type tablesControllerImpl struct {
	orphanedTablesService service.OrphanedTablesService
	optimizerService      service.OptimizerService
	rateLimitService      service.RateLimitService
}

func (c tablesControllerImpl) ListOrphanedTables(w http.ResponseWriter, r *http.Request) {
	tables, err := c.orphanedTablesService.ListOrphanedTables(r.Context())
	if err != nil {
		utils.RespondWithError(w, "Failed to list orphaned tables", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, tables)
}

func (c tablesControllerImpl) DeleteOrphanedTable(w http.ResponseWriter, r *http.Request) {
	if !c.allowRequest(w, r) {
		return
	}
	tableName, err := getUnescapedStringParam(r, "tableName")
	if err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "tableName"},
			Debug:   err.Error(),
		})
		return
	}

	var body struct {
		ConfirmationHash string `json:"confirmationHash"`
	}
	if err := decodeBody(r, &body); err != nil || body.ConfirmationHash == "" {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "confirmationHash"},
		})
		return
	}

	result, err := c.orphanedTablesService.DeleteOrphanedTable(r.Context(), tableName, body.ConfirmationHash)
	if err != nil {
		utils.RespondWithError(w, "Failed to delete orphaned table", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, result)
}

func (c tablesControllerImpl) RegisterOwnership(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TableName string `json:"tableName"`
		Owner     string `json:"owner"`
	}
	if err := decodeBody(r, &body); err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "body"},
			Debug:   err.Error(),
		})
		return
	}
	if err := c.orphanedTablesService.RegisterOwnership(body.TableName, body.Owner); err != nil {
		utils.RespondWithError(w, "Failed to register table ownership", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c tablesControllerImpl) ListOptimizableTables(w http.ResponseWriter, r *http.Request) {
	tables, err := c.optimizerService.ListOptimizableTables(r.Context())
	if err != nil {
		utils.RespondWithError(w, "Failed to list optimizable tables", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, tables)
}

func (c tablesControllerImpl) OptimizeTable(w http.ResponseWriter, r *http.Request) {
	if !c.allowRequest(w, r) {
		return
	}
	tableName, err := getUnescapedStringParam(r, "tableName")
	if err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "tableName"},
			Debug:   err.Error(),
		})
		return
	}
	result, err := c.optimizerService.OptimizeTable(r.Context(), tableName)
	if err != nil {
		utils.RespondWithError(w, "Failed to optimize table", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, result)
}

func (c tablesControllerImpl) allowRequest(w http.ResponseWriter, r *http.Request) bool {
	decision, err := c.rateLimitService.Check(r.Context(), remoteActor(r))
	if err != nil {
		utils.RespondWithError(w, "Failed to check rate limit", err)
		return false
	}
	if !decision.Allowed {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusTooManyRequests,
			Code:    exception.RateLimitExceeded,
			Message: exception.RateLimitExceededMsg,
		})
		return false
	}
	return true
}
