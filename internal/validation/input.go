package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ignatzorin/proposaldesk/internal/models"
)

// Константы валидации
const (
	MinTitleLength        = 1
	MaxTitleLength        = 200
	MaxTemplateNameLength = 200
	MaxPageNameLength     = 200
	MaxPageNamesCount     = 2000
	MaxStoragePathLength  = 512
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateTitle проверяет название предложения.
func ValidateTitle(title string) error {
	return ValidateLength("title", strings.TrimSpace(title), MinTitleLength, MaxTitleLength)
}

// ValidateTemplateName проверяет название шаблона.
func ValidateTemplateName(name string) error {
	return ValidateLength("template_name", strings.TrimSpace(name), 1, MaxTemplateNameLength)
}

// ValidateLabel проверяет подпись страницы; пустая подпись допустима.
func ValidateLabel(label string) error {
	if err := ValidateLength("label", label, 0, MaxPageNameLength); err != nil {
		return err
	}
	return validatePrintable("label", label)
}

// ValidatePageNames проверяет список названий страниц.
func ValidatePageNames(entries []models.PageNameEntry) error {
	if len(entries) > MaxPageNamesCount {
		return fmt.Errorf("page_names должен содержать не более %d элементов", MaxPageNamesCount)
	}
	for i, e := range entries {
		if err := ValidateLength(fmt.Sprintf("page_names[%d].name", i), e.Name, 0, MaxPageNameLength); err != nil {
			return err
		}
		if err := validatePrintable(fmt.Sprintf("page_names[%d].name", i), e.Name); err != nil {
			return err
		}
		if e.Indent != models.IndentNone && e.Indent != models.IndentNested {
			return fmt.Errorf("page_names[%d].indent должен быть 0 или 1", i)
		}
	}
	return nil
}

// ValidateStoragePath проверяет путь объекта, пришедший от клиента.
func ValidateStoragePath(fieldName, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%s обязателен", fieldName)
	}
	if len(path) > MaxStoragePathLength {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, MaxStoragePathLength)
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return fmt.Errorf("%s должен быть относительным путём", fieldName)
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%s содержит недопустимый сегмент", fieldName)
		}
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("%s должен указывать на .pdf файл", fieldName)
	}
	return nil
}

func validatePrintable(fieldName, value string) error {
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s содержит управляющие символы", fieldName)
		}
	}
	return nil
}
