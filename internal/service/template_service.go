package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/locks"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pagenames"
	"github.com/ignatzorin/proposaldesk/internal/pdf"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

// TemplateServiceConfig бакеты шаблонов и предложений.
type TemplateServiceConfig struct {
	TemplatesBucket string
	ProposalsBucket string
}

// TemplateService разбивает PDF на страницы шаблона, собирает их обратно
// и поддерживает плотную нумерацию 1..N страниц шаблона.
type TemplateService struct {
	templates TemplateRepository
	store     storage.ObjectStore
	locker    locks.Locker
	events    EventPublisher
	log       logrus.FieldLogger
	cfg       TemplateServiceConfig
}

func NewTemplateService(templates TemplateRepository, store storage.ObjectStore, locker locks.Locker, events EventPublisher, log logrus.FieldLogger, cfg TemplateServiceConfig) *TemplateService {
	if events == nil {
		events = NopPublisher{}
	}
	return &TemplateService{
		templates: templates,
		store:     store,
		locker:    locker,
		events:    events,
		log:       log,
		cfg:       cfg,
	}
}

type SplitInput struct {
	CompanyID    uuid.UUID
	TemplateName string
	FilePath     string
}

type SplitResult struct {
	TemplateID uuid.UUID
	PageCount  int
	// Skipped страницы исходника, которые не удалось сохранить.
	Skipped int
}

type MergePage struct {
	FilePath string
	Label    string
	Indent   int
}

type MergeInput struct {
	Pages            []MergePage
	ProposalFilePath string
}

type MergeResult struct {
	FilePath      string
	FileSizeBytes int64
	PageCount     int
	PageNames     []models.PageNameEntry
}

type AddPageInput struct {
	TemplateID uuid.UUID
	PageNumber int
	File       []byte
	Label      string
	Indent     int
	// Insert вставляет страницу со сдвигом, даже если позиция занята.
	Insert bool
}

type AddPageResult struct {
	PageNumber int
	Replaced   bool
	TotalPages int
}

type TemplateReorderResult struct {
	Reordered  bool
	TotalPages int
}

// TemplateView шаблон со страницами по возрастанию page_number.
type TemplateView struct {
	Template *models.ProposalTemplate `json:"template"`
	Pages    []models.TemplatePage    `json:"pages"`
}

// Split создаёт шаблон из загруженного PDF: одна страница исходника становится
// отдельным файлом. Страница, которую не удалось сохранить, пропускается,
// нумерация остаётся плотной.
func (s *TemplateService) Split(ctx context.Context, in SplitInput) (*SplitResult, error) {
	name := strings.TrimSpace(in.TemplateName)
	if name == "" {
		return nil, apperror.Validation("template_name обязателен")
	}
	if in.FilePath == "" {
		return nil, apperror.Validation("file_path обязателен")
	}

	data, err := s.store.Download(ctx, s.cfg.TemplatesBucket, in.FilePath)
	if err != nil {
		return nil, downloadError(err)
	}
	doc, err := pdf.Load(data)
	if err != nil {
		return nil, codecError(err)
	}
	total := doc.PageCount()
	if total == 0 {
		return nil, apperror.Validation("загруженный PDF не содержит страниц")
	}

	tmpl := &models.ProposalTemplate{CompanyID: in.CompanyID, Name: name, PageCount: total}
	if err := s.templates.CreateTemplate(ctx, tmpl); err != nil {
		return nil, templateRepoError(err)
	}
	log := s.log.WithFields(logrus.Fields{"template_id": tmpl.ID, "op": "split"})

	rows := make([]models.TemplatePage, 0, total)
	var lastErr error
	for i := 0; i < total; i++ {
		number := len(rows) + 1
		path := storage.TemplatePagePath(tmpl.ID, number)

		single, err := singlePage(doc, i)
		if err == nil {
			err = s.store.Upload(ctx, s.cfg.TemplatesBucket, path, single, storage.UploadOptions{
				ContentType: models.PDFContentType,
				Upsert:      true,
			})
		}
		if err != nil {
			lastErr = err
			log.WithError(err).WithField("page_number", i+1).Warn("страница шаблона пропущена")
			continue
		}

		rows = append(rows, models.TemplatePage{
			TemplateID: tmpl.ID,
			PageNumber: number,
			FilePath:   path,
			Label:      pagenames.DefaultName(number - 1),
			Indent:     models.IndentNone,
		})
	}

	if len(rows) == 0 {
		s.dropTemplate(tmpl.ID, nil, log)
		return nil, apperror.Storage(lastErr, "не удалось сохранить ни одной страницы шаблона")
	}

	if err := s.templates.InsertPages(ctx, rows); err != nil {
		s.dropTemplate(tmpl.ID, rows, log)
		return nil, templateRepoError(err)
	}

	// Строки страниц уже записаны, page_count догонит сверка шаблона.
	count, err := s.templates.SyncPageCount(ctx, tmpl.ID)
	if err != nil {
		log.WithError(err).Warn("page_count шаблона не обновлён")
		count = len(rows)
	}

	if err := s.store.Remove(ctx, s.cfg.TemplatesBucket, in.FilePath); err != nil {
		log.WithError(err).WithField("file_path", in.FilePath).Warn("исходный файл шаблона не удалён")
	}

	log.WithFields(logrus.Fields{"pages": count, "skipped": total - len(rows)}).Info("шаблон создан")

	return &SplitResult{TemplateID: tmpl.ID, PageCount: count, Skipped: total - len(rows)}, nil
}

// Merge склеивает страницы по порядку в один PDF предложения. Любой
// отсутствующий файл прерывает сборку до записи результата.
func (s *TemplateService) Merge(ctx context.Context, in MergeInput) (*MergeResult, error) {
	if len(in.Pages) == 0 {
		return nil, apperror.Validation("pages не может быть пустым")
	}
	if in.ProposalFilePath == "" {
		return nil, apperror.Validation("proposal_file_path обязателен")
	}

	merged := pdf.Create()
	names := make([]models.PageNameEntry, 0, len(in.Pages))
	for _, page := range in.Pages {
		data, err := s.store.Download(ctx, s.cfg.TemplatesBucket, page.FilePath)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil, apperror.NotFound("файл страницы не найден: " + page.FilePath)
			}
			return nil, downloadError(err)
		}
		doc, err := pdf.Load(data)
		if err != nil {
			return nil, codecError(err)
		}

		for j, p := range doc.AllPages() {
			if err := merged.AppendPages(p); err != nil {
				return nil, codecError(err)
			}
			entry := models.PageNameEntry{Name: pagenames.DefaultName(len(names))}
			if j == 0 && strings.TrimSpace(page.Label) != "" {
				entry = models.PageNameEntry{Name: strings.TrimSpace(page.Label), Indent: page.Indent}
			}
			if entry.Indent != models.IndentNone {
				entry.Indent = models.IndentNested
			}
			names = append(names, entry)
		}
	}

	out, err := merged.Save()
	if err != nil {
		return nil, codecError(err)
	}

	if err := s.store.Upload(ctx, s.cfg.ProposalsBucket, in.ProposalFilePath, out, storage.UploadOptions{
		ContentType: models.PDFContentType,
		Upsert:      true,
	}); err != nil {
		return nil, uploadError(err)
	}

	s.log.WithFields(logrus.Fields{
		"op":        "merge",
		"file_path": in.ProposalFilePath,
		"pages":     merged.PageCount(),
	}).Info("страницы шаблона собраны")

	return &MergeResult{
		FilePath:      in.ProposalFilePath,
		FileSizeBytes: int64(len(out)),
		PageCount:     merged.PageCount(),
		PageNames:     names,
	}, nil
}

// GetTemplate шаблон со страницами.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID uuid.UUID) (*TemplateView, error) {
	tmpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, templateRepoError(err)
	}
	pages, err := s.templates.ListPages(ctx, templateID)
	if err != nil {
		return nil, templateRepoError(err)
	}
	return &TemplateView{Template: tmpl, Pages: pages}, nil
}

// AddPage кладёт первую страницу file на позицию P. Свободная позиция или
// Insert сдвигают страницы с номером >= P вверх, начиная со старшей; занятая
// позиция без Insert заменяется.
func (s *TemplateService) AddPage(ctx context.Context, in AddPageInput) (*AddPageResult, error) {
	src, err := pdf.Load(in.File)
	if err != nil {
		return nil, codecError(err)
	}
	if src.PageCount() == 0 {
		return nil, apperror.Validation("загруженный PDF не содержит страниц")
	}
	single, err := singlePage(src, 0)
	if err != nil {
		return nil, codecError(err)
	}

	release, err := s.locker.Acquire(ctx, locks.TemplateKey(in.TemplateID.String()))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	pages, err := s.loadPages(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	total := len(pages)
	if in.PageNumber < 1 || in.PageNumber > total+1 {
		return nil, apperror.Validation("page_number должен быть от 1 до %d", total+1)
	}

	log := s.log.WithFields(logrus.Fields{
		"template_id": in.TemplateID,
		"op":          "add_page",
		"page_number": in.PageNumber,
	})

	staging := storage.TemplateStagingPath(in.TemplateID)
	if err := s.store.Upload(ctx, s.cfg.TemplatesBucket, staging, single, storage.UploadOptions{
		ContentType: models.PDFContentType,
	}); err != nil {
		return nil, uploadError(err)
	}

	occupant := findPage(pages, in.PageNumber)
	replace := occupant != nil && !in.Insert

	row := &models.TemplatePage{
		TemplateID: in.TemplateID,
		PageNumber: in.PageNumber,
		FilePath:   storage.TemplatePagePath(in.TemplateID, in.PageNumber),
		Label:      strings.TrimSpace(in.Label),
		Indent:     in.Indent,
	}
	if row.Indent != models.IndentNone {
		row.Indent = models.IndentNested
	}
	if row.Label == "" {
		if replace {
			row.Label = occupant.Label
		} else {
			row.Label = pagenames.DefaultName(in.PageNumber - 1)
		}
	}

	mover := newBlobMover(s.store, s.cfg.TemplatesBucket, log)
	var shifts []models.PageRenumber
	var trash string
	if replace {
		// Заменяемый файл откладывается, чтобы при ошибке его можно было вернуть.
		trash = storage.TemplateStagingPath(in.TemplateID)
		if err := mover.Move(ctx, occupant.FilePath, trash); err != nil {
			s.removeQuietly(staging, log)
			return nil, apperror.Storage(err, "не удалось заменить страницу шаблона")
		}
	} else {
		for i := len(pages) - 1; i >= 0; i-- {
			pg := pages[i]
			if pg.PageNumber < in.PageNumber {
				break
			}
			target := storage.TemplatePagePath(in.TemplateID, pg.PageNumber+1)
			if err := mover.Move(ctx, pg.FilePath, target); err != nil {
				mover.Rollback()
				s.removeQuietly(staging, log)
				return nil, apperror.Storage(err, "не удалось сдвинуть страницы шаблона")
			}
			shifts = append(shifts, models.PageRenumber{PageID: pg.ID, PageNumber: pg.PageNumber + 1, FilePath: target})
		}
	}

	if err := mover.Move(ctx, staging, row.FilePath); err != nil {
		mover.Rollback()
		s.removeQuietly(staging, log)
		return nil, apperror.Storage(err, "не удалось сохранить страницу шаблона")
	}

	count, err := s.templates.ApplyLayout(ctx, in.TemplateID, models.PageLayoutChange{
		Renumber: shifts,
		Upsert:   row,
	})
	if err != nil {
		mover.Rollback()
		s.removeQuietly(staging, log)
		return nil, templateRepoError(err)
	}
	if trash != "" {
		s.removeQuietly(trash, log)
	}

	log.WithFields(logrus.Fields{"replaced": replace, "pages": count}).Info("страница шаблона сохранена")
	s.publish(in.TemplateID, "add_page", count)

	return &AddPageResult{PageNumber: in.PageNumber, Replaced: replace, TotalPages: count}, nil
}

// DeletePage удаляет страницу P и сдвигает последующие вниз по возрастанию.
func (s *TemplateService) DeletePage(ctx context.Context, templateID uuid.UUID, pageNumber int) (int, error) {
	release, err := s.locker.Acquire(ctx, locks.TemplateKey(templateID.String()))
	if err != nil {
		return 0, lockError(err)
	}
	defer release()

	pages, err := s.loadPages(ctx, templateID)
	if err != nil {
		return 0, err
	}
	if len(pages) == 0 {
		return 0, apperror.ErrTemplatePageNotFound
	}
	if pageNumber < 1 || pageNumber > len(pages) {
		return 0, apperror.Validation("page_number должен быть от 1 до %d", len(pages))
	}
	victim := findPage(pages, pageNumber)
	if victim == nil {
		return 0, apperror.ErrTemplatePageNotFound
	}

	log := s.log.WithFields(logrus.Fields{
		"template_id": templateID,
		"op":          "delete_page",
		"page_number": pageNumber,
	})

	// Файл удаляемой страницы сначала уходит во временный путь, чтобы
	// при ошибке его можно было вернуть.
	mover := newBlobMover(s.store, s.cfg.TemplatesBucket, log)
	trash := storage.TemplateStagingPath(templateID)
	if err := mover.Move(ctx, victim.FilePath, trash); err != nil {
		return 0, apperror.Storage(err, "не удалось удалить файл страницы")
	}

	var shifts []models.PageRenumber
	for _, pg := range pages {
		if pg.PageNumber <= pageNumber {
			continue
		}
		target := storage.TemplatePagePath(templateID, pg.PageNumber-1)
		if err := mover.Move(ctx, pg.FilePath, target); err != nil {
			mover.Rollback()
			return 0, apperror.Storage(err, "не удалось сдвинуть страницы шаблона")
		}
		shifts = append(shifts, models.PageRenumber{PageID: pg.ID, PageNumber: pg.PageNumber - 1, FilePath: target})
	}

	victimID := victim.ID
	count, err := s.templates.ApplyLayout(ctx, templateID, models.PageLayoutChange{
		DeletePageID: &victimID,
		Renumber:     shifts,
	})
	if err != nil {
		mover.Rollback()
		return 0, templateRepoError(err)
	}

	s.removeQuietly(trash, log)

	log.WithField("pages", count).Info("страница шаблона удалена")
	s.publish(templateID, "delete_page", count)
	return count, nil
}

// Reorder переставляет страницы шаблона: новая страница i+1 это старая
// страница с индексом order[i]. Файлы переносятся через временные пути, строки
// перенумеровываются в два прохода: сначала отрицательные номера, потом итоговые.
func (s *TemplateService) Reorder(ctx context.Context, templateID uuid.UUID, order []int) (*TemplateReorderResult, error) {
	release, err := s.locker.Acquire(ctx, locks.TemplateKey(templateID.String()))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	pages, err := s.loadPages(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := pagenames.ValidatePermutation(order, len(pages)); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if pagenames.IsIdentity(order) {
		return &TemplateReorderResult{Reordered: false, TotalPages: len(pages)}, nil
	}

	log := s.log.WithFields(logrus.Fields{"template_id": templateID, "op": "reorder_pages"})

	type relocation struct {
		page    models.TemplatePage
		number  int
		target  string
		staging string
	}
	var moves []relocation
	for i, from := range order {
		pg := pages[from]
		target := storage.TemplatePagePath(templateID, i+1)
		if pg.PageNumber == i+1 && pg.FilePath == target {
			continue
		}
		moves = append(moves, relocation{
			page:    pg,
			number:  i + 1,
			target:  target,
			staging: storage.TemplateStagingPath(templateID),
		})
	}

	mover := newBlobMover(s.store, s.cfg.TemplatesBucket, log)
	for _, mv := range moves {
		if err := mover.Move(ctx, mv.page.FilePath, mv.staging); err != nil {
			mover.Rollback()
			return nil, apperror.Storage(err, "не удалось переместить страницы шаблона")
		}
	}
	for _, mv := range moves {
		if err := mover.Move(ctx, mv.staging, mv.target); err != nil {
			mover.Rollback()
			return nil, apperror.Storage(err, "не удалось переместить страницы шаблона")
		}
	}

	steps := make([]models.PageRenumber, 0, 2*len(moves))
	for _, mv := range moves {
		steps = append(steps, models.PageRenumber{PageID: mv.page.ID, PageNumber: -mv.number, FilePath: mv.target})
	}
	for _, mv := range moves {
		steps = append(steps, models.PageRenumber{PageID: mv.page.ID, PageNumber: mv.number, FilePath: mv.target})
	}

	count, err := s.templates.ApplyLayout(ctx, templateID, models.PageLayoutChange{Renumber: steps})
	if err != nil {
		mover.Rollback()
		return nil, templateRepoError(err)
	}

	log.WithFields(logrus.Fields{"pages": count, "moved": len(moves)}).Info("страницы шаблона переставлены")
	s.publish(templateID, "reorder_pages", count)

	return &TemplateReorderResult{Reordered: true, TotalPages: count}, nil
}

func (s *TemplateService) loadPages(ctx context.Context, templateID uuid.UUID) ([]models.TemplatePage, error) {
	if _, err := s.templates.GetTemplate(ctx, templateID); err != nil {
		return nil, templateRepoError(err)
	}
	pages, err := s.templates.ListPages(ctx, templateID)
	if err != nil {
		return nil, templateRepoError(err)
	}
	return pages, nil
}

// dropTemplate убирает шаблон, который не удалось довести до конца.
func (s *TemplateService) dropTemplate(templateID uuid.UUID, rows []models.TemplatePage, log logrus.FieldLogger) {
	ctx := context.Background()
	if len(rows) > 0 {
		paths := make([]string, len(rows))
		for i, r := range rows {
			paths[i] = r.FilePath
		}
		if err := s.store.Remove(ctx, s.cfg.TemplatesBucket, paths...); err != nil {
			log.WithError(err).Warn("не удалось удалить файлы страниц")
		}
	}
	if err := s.templates.DeleteTemplate(ctx, templateID); err != nil {
		log.WithError(err).Error("не удалось удалить незавершённый шаблон")
	}
}

func (s *TemplateService) removeQuietly(path string, log logrus.FieldLogger) {
	if err := s.store.Remove(context.Background(), s.cfg.TemplatesBucket, path); err != nil {
		log.WithError(err).WithField("file_path", path).Warn("временный файл не удалён")
	}
}

func (s *TemplateService) publish(templateID uuid.UUID, op string, total int) {
	s.events.PublishDocumentEvent(models.DocumentEvent{
		Type:       models.EventTemplatePagesChanged,
		DocumentID: templateID,
		Operation:  op,
		TotalPages: total,
	})
}

func findPage(pages []models.TemplatePage, number int) *models.TemplatePage {
	for i := range pages {
		if pages[i].PageNumber == number {
			return &pages[i]
		}
	}
	return nil
}

// singlePage одностраничный PDF из страницы index0 документа.
func singlePage(doc *pdf.Document, index0 int) ([]byte, error) {
	pages, err := pdf.CopyPages(doc, []int{index0})
	if err != nil {
		return nil, err
	}
	one := pdf.Create()
	if err := one.AppendPages(pages...); err != nil {
		return nil, err
	}
	return one.Save()
}
