package models

// PageNameEntry название страницы и её отступ в оглавлении.
// Отступ влияет только на отображение, физический порядок страниц он не меняет.
type PageNameEntry struct {
	Name   string `json:"name"`
	Indent int    `json:"indent"`
}
