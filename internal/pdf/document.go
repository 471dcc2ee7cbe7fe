// Package pdf загружает PDF в постраничную модель, позволяет копировать,
// вставлять, удалять и переставлять страницы между документами и
// сериализует результат обратно в байты.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrCorruptDocument = errors.New("pdf: документ повреждён или не является PDF")
	ErrIndexOutOfRange = errors.New("pdf: индекс страницы вне диапазона")
	ErrEmptyDocument   = errors.New("pdf: документ не содержит страниц")
	ErrInvalidPage     = errors.New("pdf: страница не получена через CopyPages")
)

func init() {
	// pdfcpu по умолчанию пишет конфигурацию в домашний каталог пользователя.
	model.ConfigPath = "disable"
}

// source неизменяемый снимок байтов, из которого берутся страницы.
type source struct {
	data      []byte
	pageCount int
}

// Page ссылка на страницу исходного документа. Страницу можно вставлять
// в любой другой Document, исходные байты при этом не копируются.
type Page struct {
	src    *source
	number int
}

// Document упорядоченный список страниц.
type Document struct {
	origin *source
	pages  []Page
}

// Create возвращает пустой документ без страниц.
func Create() *Document {
	return &Document{}
}

// Load разбирает байты PDF. Невалидный PDF возвращает ErrCorruptDocument.
func Load(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrCorruptDocument
	}

	snapshot := bytes.Clone(data)

	var count int
	err := guard(func() error {
		n, err := api.PageCount(bytes.NewReader(snapshot), newConfiguration())
		count = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	src := &source{data: snapshot, pageCount: count}
	doc := &Document{origin: src, pages: make([]Page, count)}
	for i := range doc.pages {
		doc.pages[i] = Page{src: src, number: i + 1}
	}
	return doc, nil
}

// PageCount возвращает текущее число страниц.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// RemovePage удаляет страницу с индексом index0 (с нуля).
func (d *Document) RemovePage(index0 int) error {
	if index0 < 0 || index0 >= len(d.pages) {
		return fmt.Errorf("%w: %d из %d", ErrIndexOutOfRange, index0, len(d.pages))
	}
	d.pages = append(d.pages[:index0], d.pages[index0+1:]...)
	return nil
}

// InsertPage вставляет страницу на позицию index0, сдвигая последующие вправо.
func (d *Document) InsertPage(index0 int, page Page) error {
	if page.src == nil {
		return ErrInvalidPage
	}
	if index0 < 0 || index0 > len(d.pages) {
		return fmt.Errorf("%w: %d из %d", ErrIndexOutOfRange, index0, len(d.pages))
	}
	d.pages = append(d.pages, Page{})
	copy(d.pages[index0+1:], d.pages[index0:])
	d.pages[index0] = page
	return nil
}

// AppendPages добавляет страницы в конец документа.
func (d *Document) AppendPages(pages ...Page) error {
	for _, p := range pages {
		if err := d.InsertPage(len(d.pages), p); err != nil {
			return err
		}
	}
	return nil
}

// CopyPages возвращает страницы src по индексам (с нуля). Индексы могут идти
// в любом порядке и повторяться.
func CopyPages(src *Document, indices0 []int) ([]Page, error) {
	pages := make([]Page, 0, len(indices0))
	for _, idx := range indices0 {
		if idx < 0 || idx >= len(src.pages) {
			return nil, fmt.Errorf("%w: %d из %d", ErrIndexOutOfRange, idx, len(src.pages))
		}
		pages = append(pages, src.pages[idx])
	}
	return pages, nil
}

// AllPages возвращает все страницы документа в текущем порядке.
func (d *Document) AllPages() []Page {
	return append([]Page(nil), d.pages...)
}

// Save сериализует документ. Неизменённый документ возвращается байт в байт.
func (d *Document) Save() ([]byte, error) {
	if len(d.pages) == 0 {
		return nil, ErrEmptyDocument
	}
	if d.unmodified() {
		return bytes.Clone(d.origin.data), nil
	}

	segments := d.runs()
	parts := make([][]byte, 0, len(segments))
	for _, r := range segments {
		part, err := r.materialize()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	readers := make([]io.ReadSeeker, len(parts))
	for i, part := range parts {
		readers[i] = bytes.NewReader(part)
	}

	var out bytes.Buffer
	err := guard(func() error {
		return api.MergeRaw(readers, &out, false, newConfiguration())
	})
	if err != nil {
		return nil, fmt.Errorf("pdf: не удалось объединить страницы: %w", err)
	}
	return out.Bytes(), nil
}

func (d *Document) unmodified() bool {
	if d.origin == nil || len(d.pages) != d.origin.pageCount {
		return false
	}
	for i, p := range d.pages {
		if p.src != d.origin || p.number != i+1 {
			return false
		}
	}
	return true
}

// run подряд идущие страницы одного источника.
type run struct {
	src     *source
	numbers []int
}

func (d *Document) runs() []run {
	var out []run
	for _, p := range d.pages {
		if n := len(out); n > 0 && out[n-1].src == p.src {
			out[n-1].numbers = append(out[n-1].numbers, p.number)
			continue
		}
		out = append(out, run{src: p.src, numbers: []int{p.number}})
	}
	return out
}

func (r run) materialize() ([]byte, error) {
	if r.wholeSource() {
		return r.src.data, nil
	}

	selection := make([]string, len(r.numbers))
	for i, n := range r.numbers {
		selection[i] = strconv.Itoa(n)
	}

	var out bytes.Buffer
	err := guard(func() error {
		return api.Collect(bytes.NewReader(r.src.data), &out, selection, newConfiguration())
	})
	if err != nil {
		return nil, fmt.Errorf("pdf: не удалось собрать страницы %v: %w", r.numbers, err)
	}
	return out.Bytes(), nil
}

func (r run) wholeSource() bool {
	if len(r.numbers) != r.src.pageCount {
		return false
	}
	for i, n := range r.numbers {
		if n != i+1 {
			return false
		}
	}
	return true
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// guard превращает панику pdfcpu на битых данных в ошибку.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	return fn()
}
