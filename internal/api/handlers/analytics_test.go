package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elaunira/r2index/internal/domain/model"
	"github.com/elaunira/r2index/internal/repository"
	"github.com/elaunira/r2index/internal/service"
)

// newTestAPIHandler собирает APIHandler над моками репозиториев.
// Сервисы, не участвующие в тесте, остаются nil.
func newTestAPIHandler(files repository.FileRepository, tags repository.TagRepository, downloads repository.DownloadRepository) *APIHandler {
	logger := testLogger()
	return NewAPIHandler(
		NewHealthHandler(nil),
		nil,
		service.NewSearchService(files, tags, logger),
		service.NewIndexService(files, logger),
		nil,
		service.NewAnalyticsService(files, downloads, logger),
		nil,
		logger,
	)
}

// fiveGroupsRepo — один дневной bucket с пятью кортежами,
// downloads по убыванию.
func fiveGroupsRepo() *mockDownloadRepo {
	return &mockDownloadRepo{
		timeseriesGroupsFn: func(_ context.Context, _ string, _, _ int64, _ repository.TupleFilter) ([]repository.TimeseriesGroup, error) {
			groups := make([]repository.TimeseriesGroup, 5)
			for i := range groups {
				groups[i] = repository.TimeseriesGroup{
					Bucket: 0,
					Tuple: model.RemoteTuple{
						Bucket:         "prod",
						RemotePath:     "/releases",
						RemoteFilename: string(rune('a'+i)) + ".zip",
						RemoteVersion:  "v1",
					},
					Downloads: int64(10 - 2*i),
					UniqueIPs: 1,
				}
			}
			return groups, nil
		},
		bucketUniqueIPsFn: func(_ context.Context, _ string, _, _ int64, _ repository.TupleFilter) (map[int64]int64, error) {
			return map[int64]int64{0: 7}, nil
		},
	}
}

func timeseriesRequest(t *testing.T, h *APIHandler, url string) timeseriesResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	h.AnalyticsTimeseries(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200; тело: %s", rec.Code, rec.Body.String())
	}
	var resp timeseriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	return resp
}

// Параметр limit (имя из клиентской библиотеки) ограничивает детализацию
// bucket'а; итог bucket'а при этом не усекается.
func TestAnalyticsTimeseries_LimitParam(t *testing.T) {
	h := newTestAPIHandler(&mockFileRepo{}, &mockTagRepo{}, fiveGroupsRepo())

	resp := timeseriesRequest(t, h, "/analytics/timeseries?start=0&end=1000&limit=3")

	if len(resp.Buckets) != 1 {
		t.Fatalf("bucket'ов = %d, ожидается 1", len(resp.Buckets))
	}
	b := resp.Buckets[0]
	if len(b.Files) != 3 {
		t.Errorf("файлов в детализации = %d, ожидается 3 (limit)", len(b.Files))
	}
	if b.TotalDownloads != 30 {
		t.Errorf("totalDownloads = %d, ожидается точный итог 30 по всем пяти группам", b.TotalDownloads)
	}
	if b.UniqueIPs != 7 {
		t.Errorf("uniqueIps = %d, ожидается 7", b.UniqueIPs)
	}
	if b.Files[0].Downloads != 10 {
		t.Errorf("первый файл детализации: downloads = %d, ожидается 10 (top-N)", b.Files[0].Downloads)
	}
}

// cap принимается как синоним limit.
func TestAnalyticsTimeseries_CapAlias(t *testing.T) {
	h := newTestAPIHandler(&mockFileRepo{}, &mockTagRepo{}, fiveGroupsRepo())

	resp := timeseriesRequest(t, h, "/analytics/timeseries?start=0&end=1000&cap=2")
	if len(resp.Buckets) != 1 || len(resp.Buckets[0].Files) != 2 {
		t.Errorf("cap=2: файлов = %d, ожидается 2", len(resp.Buckets[0].Files))
	}
}

// При обоих параметрах приоритет у limit.
func TestAnalyticsTimeseries_LimitBeatsCap(t *testing.T) {
	h := newTestAPIHandler(&mockFileRepo{}, &mockTagRepo{}, fiveGroupsRepo())

	resp := timeseriesRequest(t, h, "/analytics/timeseries?start=0&end=1000&limit=4&cap=1")
	if len(resp.Buckets) != 1 || len(resp.Buckets[0].Files) != 4 {
		t.Errorf("limit=4&cap=1: файлов = %d, ожидается 4", len(resp.Buckets[0].Files))
	}
}
