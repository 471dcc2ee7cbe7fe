package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/locks"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pagenames"
	"github.com/ignatzorin/proposaldesk/internal/pdf"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/repository/common"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

// PageServiceConfig параметры сервиса страниц предложения.
type PageServiceConfig struct {
	Bucket       string
	SignedURLTTL time.Duration
}

// PageService постраничные операции над PDF предложения. Каждая операция
// держит блокировку документа, сначала перезаписывает файл в хранилище и
// только потом метаданные, условно по version.
type PageService struct {
	proposals ProposalRepository
	store     storage.ObjectStore
	locker    locks.Locker
	events    EventPublisher
	log       logrus.FieldLogger
	cfg       PageServiceConfig
	urls      *URLCache
}

func NewPageService(proposals ProposalRepository, store storage.ObjectStore, locker locks.Locker, events EventPublisher, log logrus.FieldLogger, cfg PageServiceConfig) *PageService {
	if events == nil {
		events = NopPublisher{}
	}
	return &PageService{
		proposals: proposals,
		store:     store,
		locker:    locker,
		events:    events,
		log:       log,
		cfg:       cfg,
	}
}

// WithURLCache включает кэширование подписанных ссылок.
func (s *PageService) WithURLCache(c *URLCache) *PageService {
	s.urls = c
	return s
}

// ProposalView предложение с выровненными по числу страниц названиями.
type ProposalView struct {
	*models.Proposal
	PageNames []models.PageNameEntry `json:"page_names"`
}

type InsertPagesResult struct {
	InsertedAfter int
	PagesInserted int
	TotalPages    int
	FileSizeBytes int64
}

type DeletePageResult struct {
	DeletedPage   int
	TotalPages    int
	FileSizeBytes int64
}

type ReplacePageResult struct {
	PageNumber    int
	TotalPages    int
	FileSizeBytes int64
}

type ReorderPagesResult struct {
	Reordered     bool
	TotalPages    int
	PageNames     []models.PageNameEntry
	FileSizeBytes int64
}

type CreateProposalInput struct {
	CompanyID uuid.UUID
	Title     string
	File      []byte
}

// mutation результат функции, изменяющей документ. Nil Document означает,
// что изменений нет и запись не нужна.
type mutation struct {
	Document  *pdf.Document
	PageNames []models.PageNameEntry
}

type mutationResult struct {
	Changed       bool
	TotalPages    int
	FileSizeBytes int64
	PageNames     []models.PageNameEntry
}

// CreateProposal сохраняет загруженный PDF как новое предложение.
func (s *PageService) CreateProposal(ctx context.Context, in CreateProposalInput) (*ProposalView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.Validation("название предложения обязательно")
	}

	doc, err := pdf.Load(in.File)
	if err != nil {
		return nil, codecError(err)
	}
	if doc.PageCount() == 0 {
		return nil, apperror.Validation("загруженный PDF не содержит страниц")
	}

	names := pagenames.Normalize(nil, doc.PageCount())
	rawNames, err := pagenames.Encode(names)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать названия страниц")
	}

	p := &models.Proposal{
		ID:            uuid.New(),
		CompanyID:     in.CompanyID,
		Title:         title,
		PageNamesRaw:  rawNames,
		PageCount:     doc.PageCount(),
		FileSizeBytes: int64(len(in.File)),
		FileChecksum:  checksum(in.File),
		Status:        models.ProposalStatusDraft,
		ShareToken:    strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	p.FilePath = storage.ProposalPath(p.CompanyID, p.ID)

	if err := s.store.Upload(ctx, s.cfg.Bucket, p.FilePath, in.File, storage.UploadOptions{
		ContentType: models.PDFContentType,
	}); err != nil {
		return nil, uploadError(err)
	}

	if err := s.proposals.Create(ctx, p); err != nil {
		// Строки нет, значит файл никому не принадлежит.
		if rmErr := s.store.Remove(context.Background(), s.cfg.Bucket, p.FilePath); rmErr != nil {
			s.log.WithError(rmErr).WithField("file_path", p.FilePath).Warn("не удалось удалить файл после ошибки создания")
		}
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.Conflict(err, "предложение уже существует")
		}
		return nil, proposalRepoError(err)
	}

	s.log.WithFields(logrus.Fields{
		"proposal_id": p.ID,
		"pages":       p.PageCount,
	}).Info("предложение создано")

	return &ProposalView{Proposal: p, PageNames: names}, nil
}

// GetProposal возвращает предложение с названиями, дополненными до page_count.
func (s *PageService) GetProposal(ctx context.Context, id uuid.UUID) (*ProposalView, error) {
	p, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, proposalRepoError(err)
	}
	return &ProposalView{Proposal: p, PageNames: pagenames.Normalize(s.parseNames(p), p.PageCount)}, nil
}

// InsertPages вставляет все страницы file после страницы afterPage (0 означает в начало).
func (s *PageService) InsertPages(ctx context.Context, proposalID uuid.UUID, afterPage int, file []byte) (*InsertPagesResult, error) {
	src, err := pdf.Load(file)
	if err != nil {
		return nil, codecError(err)
	}
	if src.PageCount() == 0 {
		return nil, apperror.Validation("загруженный PDF не содержит страниц")
	}

	inserted := src.PageCount()
	res, err := s.mutate(ctx, proposalID, "insert_pages", func(doc *pdf.Document, names []models.PageNameEntry) (*mutation, error) {
		total := doc.PageCount()
		if afterPage < 0 || afterPage > total {
			return nil, apperror.Validation("after_page должен быть от 0 до %d", total)
		}

		for i, page := range src.AllPages() {
			if err := doc.InsertPage(afterPage+i, page); err != nil {
				return nil, codecError(err)
			}
		}
		return &mutation{
			Document:  doc,
			PageNames: pagenames.AfterInsert(names, afterPage, inserted),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &InsertPagesResult{
		InsertedAfter: afterPage,
		PagesInserted: inserted,
		TotalPages:    res.TotalPages,
		FileSizeBytes: res.FileSizeBytes,
	}, nil
}

// DeletePage удаляет страницу pageNumber (с единицы). Последнюю страницу удалить нельзя.
func (s *PageService) DeletePage(ctx context.Context, proposalID uuid.UUID, pageNumber int) (*DeletePageResult, error) {
	res, err := s.mutate(ctx, proposalID, "delete_page", func(doc *pdf.Document, names []models.PageNameEntry) (*mutation, error) {
		total := doc.PageCount()
		if total <= 1 {
			return nil, apperror.ErrLastPage
		}
		if pageNumber < 1 || pageNumber > total {
			return nil, apperror.Validation("page_number должен быть от 1 до %d", total)
		}

		if err := doc.RemovePage(pageNumber - 1); err != nil {
			return nil, codecError(err)
		}
		return &mutation{
			Document:  doc,
			PageNames: pagenames.AfterDelete(names, pageNumber-1),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &DeletePageResult{
		DeletedPage:   pageNumber,
		TotalPages:    res.TotalPages,
		FileSizeBytes: res.FileSizeBytes,
	}, nil
}

// ReplacePage заменяет страницу pageNumber первой страницей file. Названия не меняются.
func (s *PageService) ReplacePage(ctx context.Context, proposalID uuid.UUID, pageNumber int, file []byte) (*ReplacePageResult, error) {
	src, err := pdf.Load(file)
	if err != nil {
		return nil, codecError(err)
	}
	replacement, err := pdf.CopyPages(src, []int{0})
	if err != nil {
		return nil, apperror.Validation("загруженный PDF не содержит страниц")
	}

	res, err := s.mutate(ctx, proposalID, "replace_page", func(doc *pdf.Document, names []models.PageNameEntry) (*mutation, error) {
		total := doc.PageCount()
		if pageNumber < 1 || pageNumber > total {
			return nil, apperror.Validation("page_number должен быть от 1 до %d", total)
		}

		if err := doc.RemovePage(pageNumber - 1); err != nil {
			return nil, codecError(err)
		}
		if err := doc.InsertPage(pageNumber-1, replacement[0]); err != nil {
			return nil, codecError(err)
		}
		return &mutation{Document: doc, PageNames: names}, nil
	})
	if err != nil {
		return nil, err
	}

	return &ReplacePageResult{
		PageNumber:    pageNumber,
		TotalPages:    res.TotalPages,
		FileSizeBytes: res.FileSizeBytes,
	}, nil
}

// ReorderPages переставляет страницы: новая страница i это старая order[i].
// Тождественная перестановка ничего не записывает.
func (s *PageService) ReorderPages(ctx context.Context, proposalID uuid.UUID, order []int) (*ReorderPagesResult, error) {
	res, err := s.mutate(ctx, proposalID, "reorder_pages", func(doc *pdf.Document, names []models.PageNameEntry) (*mutation, error) {
		if err := pagenames.ValidatePermutation(order, doc.PageCount()); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
		if pagenames.IsIdentity(order) {
			return &mutation{PageNames: names}, nil
		}

		pages, err := pdf.CopyPages(doc, order)
		if err != nil {
			return nil, codecError(err)
		}
		rebuilt := pdf.Create()
		if err := rebuilt.AppendPages(pages...); err != nil {
			return nil, codecError(err)
		}
		return &mutation{
			Document:  rebuilt,
			PageNames: pagenames.AfterReorder(names, order),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	out := &ReorderPagesResult{Reordered: res.Changed, TotalPages: res.TotalPages}
	if res.Changed {
		out.PageNames = res.PageNames
		out.FileSizeBytes = res.FileSizeBytes
	}
	return out, nil
}

// UpdatePageNames заменяет названия страниц. Длина списка должна совпадать с page_count.
func (s *PageService) UpdatePageNames(ctx context.Context, proposalID uuid.UUID, entries []models.PageNameEntry) ([]models.PageNameEntry, error) {
	release, err := s.locker.Acquire(ctx, locks.ProposalKey(proposalID.String()))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, proposalRepoError(err)
	}
	if len(entries) != p.PageCount {
		return nil, apperror.Validation("page_names должен содержать %d элементов", p.PageCount)
	}

	cleaned := make([]models.PageNameEntry, len(entries))
	for i, e := range entries {
		cleaned[i] = models.PageNameEntry{Name: strings.TrimSpace(e.Name), Indent: e.Indent}
		if cleaned[i].Indent != models.IndentNone {
			cleaned[i].Indent = models.IndentNested
		}
	}

	if _, err := s.proposals.UpdatePageNames(ctx, proposalID, p.Version, cleaned); err != nil {
		return nil, proposalRepoError(err)
	}

	s.events.PublishDocumentEvent(models.DocumentEvent{
		Type:       models.EventProposalNamesChanged,
		DocumentID: proposalID,
		Operation:  "update_page_names",
		TotalPages: p.PageCount,
		PageNames:  cleaned,
	})
	return cleaned, nil
}

// FileURL подписанная ссылка на файл предложения и срок её жизни.
func (s *PageService) FileURL(ctx context.Context, proposalID uuid.UUID) (string, time.Duration, error) {
	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return "", 0, proposalRepoError(err)
	}

	key := FileURLCacheKey(p.ID, p.FilePath)
	if s.urls != nil {
		if url, left, ok := s.urls.Get(key); ok {
			return url, left + s.cfg.SignedURLTTL/2, nil
		}
	}

	url, err := s.store.SignedURL(ctx, s.cfg.Bucket, p.FilePath, s.cfg.SignedURLTTL)
	if err != nil {
		return "", 0, apperror.Storage(err, "не удалось получить ссылку на файл")
	}
	if s.urls != nil {
		s.urls.Set(key, url, s.cfg.SignedURLTTL/2)
	}
	return url, s.cfg.SignedURLTTL, nil
}

// mutate общий сценарий мутации: блокировка, чтение строки и файла, проверка
// относительно фактического числа страниц, запись файла, затем метаданных.
func (s *PageService) mutate(ctx context.Context, proposalID uuid.UUID, op string, fn func(*pdf.Document, []models.PageNameEntry) (*mutation, error)) (*mutationResult, error) {
	log := s.log.WithFields(logrus.Fields{"proposal_id": proposalID, "op": op})

	release, err := s.locker.Acquire(ctx, locks.ProposalKey(proposalID.String()))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	p, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, proposalRepoError(err)
	}

	data, err := s.store.Download(ctx, s.cfg.Bucket, p.FilePath)
	if err != nil {
		return nil, downloadError(err)
	}
	doc, err := pdf.Load(data)
	if err != nil {
		log.WithError(err).Error("файл предложения не читается")
		return nil, codecError(err)
	}

	names := pagenames.Normalize(s.parseNames(p), doc.PageCount())

	m, err := fn(doc, names)
	if err != nil {
		return nil, err
	}
	if m.Document == nil {
		return &mutationResult{
			TotalPages:    doc.PageCount(),
			FileSizeBytes: p.FileSizeBytes,
			PageNames:     m.PageNames,
		}, nil
	}

	out, err := m.Document.Save()
	if err != nil {
		return nil, codecError(err)
	}
	total := m.Document.PageCount()
	if len(m.PageNames) != total {
		log.WithFields(logrus.Fields{"pages": total, "names": len(m.PageNames)}).Error("названия страниц не совпадают с документом")
		return nil, apperror.New(apperror.ErrCodeInternal, "названия страниц не совпадают с документом")
	}

	if err := s.store.Upload(ctx, s.cfg.Bucket, p.FilePath, out, storage.UploadOptions{
		ContentType: models.PDFContentType,
		Upsert:      true,
	}); err != nil {
		return nil, uploadError(err)
	}
	// Файл перезаписан, ранее выданные ссылки больше не кэшируются.
	if s.urls != nil {
		s.urls.InvalidateByPrefix(FileURLCachePrefix(proposalID))
	}

	_, err = s.proposals.UpdateDocument(ctx, proposalID, p.Version, models.DocumentUpdate{
		PageNames:     m.PageNames,
		PageCount:     total,
		FileSizeBytes: int64(len(out)),
		FileChecksum:  checksum(out),
	})
	if err != nil {
		// Файл уже перезаписан: метаданные догонит сверка.
		log.WithError(err).Warn("файл записан, метаданные не обновлены")
		return nil, proposalRepoError(err)
	}

	log.WithFields(logrus.Fields{"pages": total, "size": len(out)}).Info("документ изменён")

	s.events.PublishDocumentEvent(models.DocumentEvent{
		Type:       models.EventProposalPagesChanged,
		DocumentID: proposalID,
		Operation:  op,
		TotalPages: total,
		PageNames:  m.PageNames,
	})

	return &mutationResult{
		Changed:       true,
		TotalPages:    total,
		FileSizeBytes: int64(len(out)),
		PageNames:     m.PageNames,
	}, nil
}

// parseNames разбирает page_names строки. Испорченный JSON считается пустым
// списком, дальше его дополнит Normalize.
func (s *PageService) parseNames(p *models.Proposal) []models.PageNameEntry {
	names, err := pagenames.Parse(p.PageNamesRaw)
	if err != nil {
		s.log.WithError(err).WithField("proposal_id", p.ID).Warn("page_names не разобраны")
		return []models.PageNameEntry{}
	}
	return names
}
