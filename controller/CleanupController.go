package controller

import (
	"net/http"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/exception"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service/cleanup"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/utils"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000

	defaultOrphanListLimit = 100
	maxOrphanListLimit     = 1000
)

type CleanupController interface {
	RunCleanup(w http.ResponseWriter, r *http.Request)
	PreviewCleanup(w http.ResponseWriter, r *http.Request)
	GetDatabaseStats(w http.ResponseWriter, r *http.Request)
	GetScanHistory(w http.ResponseWriter, r *http.Request)
	GetOrphanedData(w http.ResponseWriter, r *http.Request)
}

func NewCleanupController(
	cleanupService cleanup.CleanupService,
	analyzerService service.AnalyzerService,
	orphanedDataService service.OrphanedDataService,
	rateLimitService service.RateLimitService,
) CleanupController {
	return &cleanupControllerImpl{
		cleanupService:      cleanupService,
		analyzerService:     analyzerService,
		orphanedDataService: orphanedDataService,
		rateLimitService:    rateLimitService,
	}
}

type cleanupControllerImpl struct {
	cleanupService      cleanup.CleanupService
	analyzerService     service.AnalyzerService
	orphanedDataService service.OrphanedDataService
	rateLimitService    service.RateLimitService
}

func (c cleanupControllerImpl) RunCleanup(w http.ResponseWriter, r *http.Request) {
	if !c.allowRequest(w, r) {
		return
	}
	var options view.CleanupOptions
	if err := decodeBody(r, &options); err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "body"},
			Debug:   err.Error(),
		})
		return
	}

	result, err := c.cleanupService.RunNow(options)
	if err != nil {
		utils.RespondWithError(w, "Cleanup run failed", err)
		return
	}
	if result == nil {
		// Lock held elsewhere. 202 tells the caller the work is in
		// progress, just not here.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, result)
}

func (c cleanupControllerImpl) PreviewCleanup(w http.ResponseWriter, r *http.Request) {
	if !c.allowRequest(w, r) {
		return
	}
	var options view.CleanupOptions
	if err := decodeBody(r, &options); err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "body"},
			Debug:   err.Error(),
		})
		return
	}
	safeMode := true
	options.SafeMode = &safeMode

	result, err := c.cleanupService.RunNow(options)
	if err != nil {
		utils.RespondWithError(w, "Cleanup preview failed", err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, result)
}

func (c cleanupControllerImpl) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.analyzerService.GetDatabaseStats(r.Context())
	if err != nil {
		utils.RespondWithError(w, "Failed to collect database stats", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, stats)
}

func (c cleanupControllerImpl) GetScanHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := getLimitQueryParam(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "limit"},
			Debug:   err.Error(),
		})
		return
	}
	entries, err := c.cleanupService.ListScanHistory(r.Context(), limit)
	if err != nil {
		utils.RespondWithError(w, "Failed to list scan history", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, entries)
}

func (c cleanupControllerImpl) GetOrphanedData(w http.ResponseWriter, r *http.Request) {
	limit, err := getLimitQueryParam(r, defaultOrphanListLimit, maxOrphanListLimit)
	if err != nil {
		utils.RespondWithCustomError(w, &exception.CustomError{
			Status:  http.StatusBadRequest,
			Code:    exception.InvalidParameter,
			Message: exception.InvalidParameterMsg,
			Params:  map[string]interface{}{"param": "limit"},
			Debug:   err.Error(),
		})
		return
	}
	listing, err := c.orphanedDataService.ListOrphanedData(r.Context(), limit)
	if err != nil {
		utils.RespondWithError(w, "Failed to list orphaned data", err)
		return
	}
	utils.RespondWithJson(w, http.StatusOK, listing)
}

func (c cleanupControllerImpl) allowRequest(w http.ResponseWriter, r *http.Request) bool {
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
