// Package pagenames ведёт список названий страниц, который должен совпадать
// по индексам с физическими страницами PDF. Все функции чистые: вызывающий код
// применяет их в том же запросе, что и мутацию документа.
package pagenames

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ignatzorin/proposaldesk/internal/models"
)

var (
	ErrInvalidOrder   = errors.New("page_order должен быть перестановкой всех страниц документа")
	ErrMalformedNames = errors.New("pagenames: некорректный JSON названий страниц")
)

// DefaultName название страницы по умолчанию, номер с единицы.
func DefaultName(index0 int) string {
	return fmt.Sprintf("Page %d", index0+1)
}

// Parse разбирает сохранённое значение page_names. Поддерживаются null,
// старый формат со строками и объекты {name, indent} с недостающими полями.
func Parse(raw []byte) ([]models.PageNameEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []models.PageNameEntry{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNames, err)
	}

	entries := make([]models.PageNameEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, parseEntry(item))
	}
	return entries, nil
}

func parseEntry(item json.RawMessage) models.PageNameEntry {
	var name string
	if err := json.Unmarshal(item, &name); err == nil {
		return models.PageNameEntry{Name: name, Indent: models.IndentNone}
	}

	var obj map[string]any
	if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
		return models.PageNameEntry{}
	}

	entry := models.PageNameEntry{}
	if s, ok := obj["name"].(string); ok {
		entry.Name = s
	}
	if n, ok := obj["indent"].(float64); ok && n >= 1 {
		entry.Indent = models.IndentNested
	}
	return entry
}

// Normalize дополняет список до targetLen названиями "Page N" или обрезает,
// если список длиннее. Исходный срез не изменяется.
func Normalize(entries []models.PageNameEntry, targetLen int) []models.PageNameEntry {
	if targetLen < 0 {
		targetLen = 0
	}
	out := make([]models.PageNameEntry, targetLen)
	n := copy(out, entries)
	for i := n; i < targetLen; i++ {
		out[i] = models.PageNameEntry{Name: DefaultName(i), Indent: models.IndentNone}
	}
	return out
}

// AfterDelete убирает запись с индексом index0.
func AfterDelete(entries []models.PageNameEntry, index0 int) []models.PageNameEntry {
	if index0 < 0 || index0 >= len(entries) {
		return append([]models.PageNameEntry(nil), entries...)
	}
	out := make([]models.PageNameEntry, 0, len(entries)-1)
	out = append(out, entries[:index0]...)
	return append(out, entries[index0+1:]...)
}

// AfterInsert вставляет count записей "Page N" начиная с index0.
func AfterInsert(entries []models.PageNameEntry, index0, count int) []models.PageNameEntry {
	if index0 < 0 {
		index0 = 0
	}
	if index0 > len(entries) {
		index0 = len(entries)
	}
	out := make([]models.PageNameEntry, 0, len(entries)+count)
	out = append(out, entries[:index0]...)
	for i := 0; i < count; i++ {
		out = append(out, models.PageNameEntry{Name: DefaultName(index0 + i), Indent: models.IndentNone})
	}
	return append(out, entries[index0:]...)
}

// AfterReorder применяет ту же перестановку, что и к страницам:
// новая позиция i получает entries[order0[i]]. order0 должен пройти ValidatePermutation.
func AfterReorder(entries []models.PageNameEntry, order0 []int) []models.PageNameEntry {
	out := make([]models.PageNameEntry, len(order0))
	for i, from := range order0 {
		out[i] = entries[from]
	}
	return out
}

// ValidatePermutation проверяет, что order содержит каждый индекс 0..n-1 ровно один раз.
func ValidatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: ожидается %d элементов, получено %d", ErrInvalidOrder, n, len(order))
	}
	sorted := append([]int(nil), order...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			return fmt.Errorf("%w: индекс %d повторяется или вне диапазона", ErrInvalidOrder, v)
		}
	}
	return nil
}

// IsIdentity сообщает, что перестановка не меняет порядок.
func IsIdentity(order []int) bool {
	for i, v := range order {
		if v != i {
			return false
		}
	}
	return true
}

// Encode сериализует список для колонки page_names.
func Encode(entries []models.PageNameEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.PageNameEntry{}
	}
	return json.Marshal(entries)
}

// FromTemplatePages строит список названий из строк страниц шаблона.
func FromTemplatePages(pages []models.TemplatePage) []models.PageNameEntry {
	out := make([]models.PageNameEntry, len(pages))
	for i, p := range pages {
		name := p.Label
		if name == "" {
			name = DefaultName(i)
		}
		out[i] = models.PageNameEntry{Name: name, Indent: clampIndent(p.Indent)}
	}
	return out
}

func clampIndent(v int) int {
	if v >= models.IndentNested {
		return models.IndentNested
	}
	return models.IndentNone
}
