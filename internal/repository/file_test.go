package repository

import (
	"strings"
	"testing"
)

// --- Тесты buildFileWhere ---

// TestBuildFileWhere_Empty проверяет пустые фильтры.
func TestBuildFileWhere_Empty(t *testing.T) {
	where, args := buildFileWhere(FileFilters{}, 1)

	if where != "" {
		t.Errorf("where = %q, ожидалась пустая строка", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildFileWhere_SingleField проверяет фильтрацию по одному полю.
func TestBuildFileWhere_SingleField(t *testing.T) {
	entity := "myapp"
	where, args := buildFileWhere(FileFilters{Entity: &entity}, 1)

	if !strings.Contains(where, "entity = $1") {
		t.Errorf("where = %q, ожидалось содержание 'entity = $1'", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
	if args[0] != "myapp" {
		t.Errorf("args[0] = %v, ожидался 'myapp'", args[0])
	}
}

// TestBuildFileWhere_Deprecated проверяет фильтрацию по deprecated.
func TestBuildFileWhere_Deprecated(t *testing.T) {
	deprecated := true
	where, args := buildFileWhere(FileFilters{Deprecated: &deprecated}, 1)

	if !strings.Contains(where, "deprecated = $1") {
		t.Errorf("where = %q, ожидалось содержание 'deprecated = $1'", where)
	}
	if args[0] != true {
		t.Errorf("args[0] = %v, ожидался true", args[0])
	}
}

// TestBuildFileWhere_Tags проверяет AND-семантику фильтра тегов:
// подзапрос должен требовать COUNT(DISTINCT tag) = длине списка.
func TestBuildFileWhere_Tags(t *testing.T) {
	where, args := buildFileWhere(FileFilters{Tags: []string{"release", "stable"}}, 1)

	if !strings.Contains(where, "HAVING COUNT(DISTINCT tag) = $2") {
		t.Errorf("where = %q, ожидался HAVING COUNT(DISTINCT tag)", where)
	}
	if !strings.Contains(where, "tag = ANY($1)") {
		t.Errorf("where = %q, ожидался tag = ANY($1)", where)
	}
	if len(args) != 2 {
		t.Fatalf("args count = %d, ожидался 2", len(args))
	}
	if args[1] != 2 {
		t.Errorf("args[1] = %v, ожидалась длина списка тегов 2", args[1])
	}
}

// TestBuildFileWhere_Combined проверяет нумерацию аргументов
// при комбинации фильтров равенства и тегов.
func TestBuildFileWhere_Combined(t *testing.T) {
	bucket := "artifacts"
	category := "release"
	where, args := buildFileWhere(FileFilters{
		Bucket:   &bucket,
		Category: &category,
		Tags:     []string{"linux"},
	}, 1)

	if !strings.Contains(where, "bucket = $1") {
		t.Errorf("where = %q, ожидался bucket = $1", where)
	}
	if !strings.Contains(where, "category = $2") {
		t.Errorf("where = %q, ожидался category = $2", where)
	}
	if !strings.Contains(where, "tag = ANY($3)") {
		t.Errorf("where = %q, ожидался tag = ANY($3)", where)
	}
	if len(args) != 4 {
		t.Errorf("args count = %d, ожидался 4", len(args))
	}
}

// TestBuildFileWhere_StartArg проверяет смещение начального номера аргумента.
func TestBuildFileWhere_StartArg(t *testing.T) {
	entity := "myapp"
	where, _ := buildFileWhere(FileFilters{Entity: &entity}, 5)

	if !strings.Contains(where, "entity = $5") {
		t.Errorf("where = %q, ожидался entity = $5", where)
	}
}

// --- Тесты allow-list group_by ---

// TestIsGroupableField проверяет allow-list полей группировки.
func TestIsGroupableField(t *testing.T) {
	allowed := []string{"bucket", "category", "entity", "extension", "media_type", "deprecated"}
	for _, f := range allowed {
		if !IsGroupableField(f) {
			t.Errorf("IsGroupableField(%q) = false, ожидался true", f)
		}
	}

	forbidden := []string{"id", "name", "checksum_md5", "created_at", "", "tags", "remote_path"}
	for _, f := range forbidden {
		if IsGroupableField(f) {
			t.Errorf("IsGroupableField(%q) = true, ожидался false", f)
		}
	}
}

// --- Тесты buildUpdateSet ---

// TestBuildUpdateSet_Empty проверяет отсутствие изменений.
func TestBuildUpdateSet_Empty(t *testing.T) {
	sets, args := buildUpdateSet(FileUpdate{})

	if len(sets) != 0 {
		t.Errorf("sets = %v, ожидался пустой список", sets)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildUpdateSet_Partial проверяет частичное обновление.
func TestBuildUpdateSet_Partial(t *testing.T) {
	name := "installer"
	deprecated := true
	reason := "superseded by v2"
	sets, args := buildUpdateSet(FileUpdate{
		Name:              &name,
		Deprecated:        &deprecated,
		DeprecationReason: &reason,
	})

	if len(sets) != 3 {
		t.Fatalf("sets count = %d, ожидался 3: %v", len(sets), sets)
	}
	joined := strings.Join(sets, ", ")
	if !strings.Contains(joined, "name = $1") {
		t.Errorf("sets = %q, ожидался name = $1", joined)
	}
	if !strings.Contains(joined, "deprecated = $2") {
		t.Errorf("sets = %q, ожидался deprecated = $2", joined)
	}
	if !strings.Contains(joined, "deprecation_reason = $3") {
		t.Errorf("sets = %q, ожидался deprecation_reason = $3", joined)
	}
	if len(args) != 3 {
		t.Errorf("args count = %d, ожидался 3", len(args))
	}
}

// TestBuildUpdateSet_Extra проверяет обновление extra-метаданных.
func TestBuildUpdateSet_Extra(t *testing.T) {
	sets, args := buildUpdateSet(FileUpdate{
		Extra: map[string]any{"build": "42"},
	})

	if len(sets) != 1 || !strings.Contains(sets[0], "extra = $1") {
		t.Errorf("sets = %v, ожидался extra = $1", sets)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
}
