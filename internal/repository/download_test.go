package repository

import (
	"strings"
	"testing"
)

// --- Тесты buildTupleWhere ---

// TestBuildTupleWhere_Empty проверяет пустой фильтр кортежа.
func TestBuildTupleWhere_Empty(t *testing.T) {
	conditions, args := buildTupleWhere(TupleFilter{}, 1)

	if len(conditions) != 0 {
		t.Errorf("conditions = %v, ожидался пустой список", conditions)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildTupleWhere_Subset проверяет фильтр по подмножеству полей кортежа.
func TestBuildTupleWhere_Subset(t *testing.T) {
	bucket := "artifacts"
	filename := "app.tar.gz"
	conditions, args := buildTupleWhere(TupleFilter{
		Bucket:         &bucket,
		RemoteFilename: &filename,
	}, 1)

	if len(conditions) != 2 {
		t.Fatalf("conditions count = %d, ожидался 2: %v", len(conditions), conditions)
	}
	joined := strings.Join(conditions, " AND ")
	if !strings.Contains(joined, "bucket = $1") {
		t.Errorf("conditions = %q, ожидался bucket = $1", joined)
	}
	if !strings.Contains(joined, "remote_filename = $2") {
		t.Errorf("conditions = %q, ожидался remote_filename = $2", joined)
	}
	if args[0] != "artifacts" || args[1] != "app.tar.gz" {
		t.Errorf("args = %v, ожидались ['artifacts', 'app.tar.gz']", args)
	}
}

// TestBuildTupleWhere_StartArg проверяет смещение нумерации аргументов —
// условия кортежа добавляются после условий диапазона bucket'ов.
func TestBuildTupleWhere_StartArg(t *testing.T) {
	version := "v1.2.3"
	conditions, _ := buildTupleWhere(TupleFilter{RemoteVersion: &version}, 3)

	if len(conditions) != 1 || !strings.Contains(conditions[0], "remote_version = $3") {
		t.Errorf("conditions = %v, ожидался remote_version = $3", conditions)
	}
}

// --- Тесты allow-list масштабов ---

// TestIsValidScale проверяет допустимые масштабы временного ряда.
func TestIsValidScale(t *testing.T) {
	for _, s := range []string{"hour", "day", "month"} {
		if !IsValidScale(s) {
			t.Errorf("IsValidScale(%q) = false, ожидался true", s)
		}
	}
	for _, s := range []string{"week", "year", "minute", "", "DAY"} {
		if IsValidScale(s) {
			t.Errorf("IsValidScale(%q) = true, ожидался false", s)
		}
	}
}
