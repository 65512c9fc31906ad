package service

import (
	"context"
	"time"

	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
)

// mockFileRepo — мок FileRepository для unit-тестов.
// Непереопределённые методы возвращают нулевые значения или ErrNotFound.
type mockFileRepo struct {
	upsertFn        func(ctx context.Context, f *model.FileRecord) (bool, error)
	getByIDFn       func(ctx context.Context, id string) (*model.FileRecord, error)
	getByTupleFn    func(ctx context.Context, t model.RemoteTuple) (*model.FileRecord, error)
	listFn          func(ctx context.Context, filters repository.FileFilters, limit, offset int) ([]*model.FileRecord, error)
	countFn         func(ctx context.Context, filters repository.FileFilters) (int, error)
	groupCountFn    func(ctx context.Context, field string, filters repository.FileFilters) ([]repository.GroupCount, error)
	listAllFn       func(ctx context.Context, filters repository.FileFilters) ([]*model.FileRecord, error)
	updateFn        func(ctx context.Context, id string, upd repository.FileUpdate) error
	deleteByIDFn    func(ctx context.Context, id string) error
	deleteByTupleFn func(ctx context.Context, t model.RemoteTuple) error
	resolveIDsFn    func(ctx context.Context, tuples []model.RemoteTuple) (map[model.RemoteTuple]string, error)
}

func (m *mockFileRepo) Upsert(ctx context.Context, f *model.FileRecord) (bool, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, f)
	}
	return false, nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) GetByTuple(ctx context.Context, t model.RemoteTuple) (*model.FileRecord, error) {
	if m.getByTupleFn != nil {
		return m.getByTupleFn(ctx, t)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) List(ctx context.Context, filters repository.FileFilters, limit, offset int) ([]*model.FileRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filters, limit, offset)
	}
	return nil, nil
}

func (m *mockFileRepo) Count(ctx context.Context, filters repository.FileFilters) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, filters)
	}
	return 0, nil
}

func (m *mockFileRepo) GroupCount(ctx context.Context, field string, filters repository.FileFilters) ([]repository.GroupCount, error) {
	if m.groupCountFn != nil {
		return m.groupCountFn(ctx, field, filters)
	}
	return nil, nil
}

func (m *mockFileRepo) ListAll(ctx context.Context, filters repository.FileFilters) ([]*model.FileRecord, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, filters)
	}
	return nil, nil
}

func (m *mockFileRepo) Update(ctx context.Context, id string, upd repository.FileUpdate) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, upd)
	}
	return nil
}

func (m *mockFileRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockFileRepo) DeleteByTuple(ctx context.Context, t model.RemoteTuple) error {
	if m.deleteByTupleFn != nil {
		return m.deleteByTupleFn(ctx, t)
	}
	return nil
}

func (m *mockFileRepo) ResolveIDsByTuples(ctx context.Context, tuples []model.RemoteTuple) (map[model.RemoteTuple]string, error) {
	if m.resolveIDsFn != nil {
		return m.resolveIDsFn(ctx, tuples)
	}
	return map[model.RemoteTuple]string{}, nil
}

// mockTagRepo — мок TagRepository.
type mockTagRepo struct {
	replaceFn      func(ctx context.Context, fileID string, tags []string) error
	getByFileIDsFn func(ctx context.Context, fileIDs []string) (map[string][]string, error)
}

func (m *mockTagRepo) Replace(ctx context.Context, fileID string, tags []string) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, fileID, tags)
	}
	return nil
}

func (m *mockTagRepo) GetByFileIDs(ctx context.Context, fileIDs []string) (map[string][]string, error) {
	if m.getByFileIDsFn != nil {
		return m.getByFileIDsFn(ctx, fileIDs)
	}
	return map[string][]string{}, nil
}

// mockDownloadRepo — мок DownloadRepository.
type mockDownloadRepo struct {
	insertFn           func(ctx context.Context, e *model.DownloadEvent) error
	timeseriesGroupsFn func(ctx context.Context, scale string, lo, hi int64, filter repository.TupleFilter) ([]repository.TimeseriesGroup, error)
	bucketUniqueIPsFn  func(ctx context.Context, scale string, lo, hi int64, filter repository.TupleFilter) (map[int64]int64, error)
	summaryFn          func(ctx context.Context, from, to time.Time, filter repository.TupleFilter) (repository.SummaryStats, error)
	userAgentStatsFn   func(ctx context.Context, from, to time.Time, filter repository.TupleFilter, limit int) ([]repository.UserAgentStat, error)
	countByIPFn        func(ctx context.Context, ip string, from, to time.Time) (int64, error)
	listByIPFn         func(ctx context.Context, ip string, from, to time.Time, limit, offset int) ([]*model.DownloadEvent, error)
	deleteOlderThanFn  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockDownloadRepo) Insert(ctx context.Context, e *model.DownloadEvent) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, e)
	}
	return nil
}

func (m *mockDownloadRepo) TimeseriesGroups(ctx context.Context, scale string, lo, hi int64, filter repository.TupleFilter) ([]repository.TimeseriesGroup, error) {
	if m.timeseriesGroupsFn != nil {
		return m.timeseriesGroupsFn(ctx, scale, lo, hi, filter)
	}
	return nil, nil
}

func (m *mockDownloadRepo) BucketUniqueIPs(ctx context.Context, scale string, lo, hi int64, filter repository.TupleFilter) (map[int64]int64, error) {
	if m.bucketUniqueIPsFn != nil {
		return m.bucketUniqueIPsFn(ctx, scale, lo, hi, filter)
	}
	return map[int64]int64{}, nil
}

func (m *mockDownloadRepo) Summary(ctx context.Context, from, to time.Time, filter repository.TupleFilter) (repository.SummaryStats, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, from, to, filter)
	}
	return repository.SummaryStats{}, nil
}

func (m *mockDownloadRepo) UserAgentStats(ctx context.Context, from, to time.Time, filter repository.TupleFilter, limit int) ([]repository.UserAgentStat, error) {
	if m.userAgentStatsFn != nil {
		return m.userAgentStatsFn(ctx, from, to, filter, limit)
	}
	return nil, nil
}

func (m *mockDownloadRepo) CountByIP(ctx context.Context, ip string, from, to time.Time) (int64, error) {
	if m.countByIPFn != nil {
		return m.countByIPFn(ctx, ip, from, to)
	}
	return 0, nil
}

func (m *mockDownloadRepo) ListByIP(ctx context.Context, ip string, from, to time.Time, limit, offset int) ([]*model.DownloadEvent, error) {
	if m.listByIPFn != nil {
		return m.listByIPFn(ctx, ip, from, to, limit, offset)
	}
	return nil, nil
}

func (m *mockDownloadRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteOlderThanFn != nil {
		return m.deleteOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}
