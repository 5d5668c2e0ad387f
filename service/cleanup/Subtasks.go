package cleanup

import (
	"context"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/service"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/view"
)

// Subtask names double as keys in progress records and error maps, so they
// are part of the persisted format and must stay stable.
const (
	SubtaskRevisions    = "revisions"
	SubtaskTransients   = "transients"
	SubtaskOrphanedData = "orphaned_data"
	SubtaskSpamComments = "spam_comments"
	SubtaskTrash        = "trashed_content"
	SubtaskAutoDrafts   = "auto_drafts"
)

// SubtaskOrder fixes the execution sequence. Resume correctness depends on
// the order never changing between invocations.
var SubtaskOrder = []string{
	SubtaskRevisions,
	SubtaskTransients,
	SubtaskOrphanedData,
	SubtaskSpamComments,
	SubtaskTrash,
	SubtaskAutoDrafts,
}

type revisionsSubtask struct {
	revisionsService service.RevisionsService
	keepCount        int
	force            bool
}

func NewRevisionsSubtask(revisionsService service.RevisionsService, keepCount int, force bool) Subtask {
	return &revisionsSubtask{revisionsService: revisionsService, keepCount: keepCount, force: force}
}

func (t *revisionsSubtask) Name() string { return SubtaskRevisions }

func (t *revisionsSubtask) Preview(ctx context.Context) (int, error) {
	return t.revisionsService.CountRevisions(ctx)
}

func (t *revisionsSubtask) Run(ctx context.Context) (SubtaskResult, error) {
	result, err := t.revisionsService.DeleteAllRevisions(ctx, t.keepCount, t.force)
	if result == nil {
		return SubtaskResult{}, err
	}
	return SubtaskResult{Items: result.Deleted, Bytes: result.BytesFreed}, err
}

type transientsSubtask struct {
	transientsService service.TransientsService
}

func NewTransientsSubtask(transientsService service.TransientsService) Subtask {
	return &transientsSubtask{transientsService: transientsService}
}

func (t *transientsSubtask) Name() string { return SubtaskTransients }

func (t *transientsSubtask) Preview(ctx context.Context) (int, error) {
	infos, err := t.transientsService.ListExpiredTransients(ctx, 0)
	return len(infos), err
}

func (t *transientsSubtask) Run(ctx context.Context) (SubtaskResult, error) {
	result, err := t.transientsService.DeleteExpiredTransients(ctx)
	if result == nil {
		return SubtaskResult{}, err
	}
	return SubtaskResult{Items: result.Deleted, Bytes: result.BytesFreed}, err
}

type orphanedDataSubtask struct {
	orphanedDataService service.OrphanedDataService
}

func NewOrphanedDataSubtask(orphanedDataService service.OrphanedDataService) Subtask {
	return &orphanedDataSubtask{orphanedDataService: orphanedDataService}
}

func (t *orphanedDataSubtask) Name() string { return SubtaskOrphanedData }

func (t *orphanedDataSubtask) Preview(ctx context.Context) (int, error) {
	total := 0
	for _, metaType := range []view.MetaType{view.MetaPost, view.MetaComment, view.MetaTerm, view.MetaUser} {
		count, err := t.orphanedDataService.CountOrphanedMeta(ctx, metaType)
		if err != nil {
			return total, err
		}
		total += count
	}
	relationships, err := t.orphanedDataService.CountOrphanedRelationships(ctx)
	if err != nil {
		return total, err
	}
	return total + relationships, nil
}

func (t *orphanedDataSubtask) Run(ctx context.Context) (SubtaskResult, error) {
	result, err := t.orphanedDataService.DeleteAllOrphanedData(ctx)
	if result == nil {
		return SubtaskResult{}, err
	}
	return SubtaskResult{Items: int(result.Deleted)}, err
}

type spamCommentsSubtask struct {
	trashService service.TrashService
	analyzer     service.AnalyzerService
}

func NewSpamCommentsSubtask(trashService service.TrashService, analyzer service.AnalyzerService) Subtask {
	return &spamCommentsSubtask{trashService: trashService, analyzer: analyzer}
}

func (t *spamCommentsSubtask) Name() string { return SubtaskSpamComments }

func (t *spamCommentsSubtask) Preview(ctx context.Context) (int, error) {
	summary, err := t.analyzer.GetBloatSummary(ctx)
	if err != nil {
		return 0, err
	}
	return summary[view.BloatSpamComments], nil
}

func (t *spamCommentsSubtask) Run(ctx context.Context) (SubtaskResult, error) {
	result, err := t.trashService.DeleteSpamComments(ctx)
	if result == nil {
		return SubtaskResult{}, err
	}
	return SubtaskResult{Items: result.Deleted}, err
}

type trashSubtask struct {
	trashService  service.TrashService
	analyzer      service.AnalyzerService
	olderThanDays int
}

func NewTrashSubtask(trashService service.TrashService, analyzer service.AnalyzerService, olderThanDays int) Subtask {
	return &trashSubtask{trashService: trashService, analyzer: analyzer, olderThanDays: olderThanDays}
}

func (t *trashSubtask) Name() string { return SubtaskTrash }

func (t *trashSubtask) Preview(ctx context.Context) (int, error) {
	summary, err := t.analyzer.GetBloatSummary(ctx)
	if err != nil {
		return 0, err
	}
	return summary[view.BloatTrashedPosts] + summary[view.BloatTrashedComments], nil
}

func (t *trashSubtask) Run(ctx context.Context) (SubtaskResult, error) {
	total := SubtaskResult{}
	posts, err := t.trashService.DeleteTrashedPosts(ctx, t.olderThanDays)
	if posts != nil {
		total.Items += posts.Deleted
	}
	if err != nil {
		return total, err
	}
	comments, err := t.trashService.DeleteTrashedComments(ctx, t.olderThanDays)
	if comments != nil {
		total.Items += comments.Deleted
	}
	return total, err
}

type autoDraftsSubtask struct {
	trashService service.TrashService
	analyzer     service.AnalyzerService
}

func NewAutoDraftsSubtask(trashService service.TrashService, analyzer service.AnalyzerService) Subtask {
	return &autoDraftsSubtask{trashService: trashService, analyzer: analyzer}
}

func (t *autoDraftsSubtask) Name() string { return SubtaskAutoDrafts }

func (t *autoDraftsSubtask) Preview(ctx context.Context) (int, error) {
	summary, err := t.analyzer.GetBloatSummary(ctx)
	if err != nil {
		return 0, err
	}
	return summary[view.BloatAutoDrafts], nil
}

func (t *autoDraftsSubtask) Run(ctx context.Context) (SubtaskResult, error) {
	result, err := t.trashService.DeleteAutoDrafts(ctx)
	if result == nil {
		return SubtaskResult{}, err
	}
	return SubtaskResult{Items: result.Deleted}, err
}
