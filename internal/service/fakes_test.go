package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pagenames"
	"github.com/ignatzorin/proposaldesk/internal/repository"
	"github.com/ignatzorin/proposaldesk/internal/repository/common"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

const (
	testProposalsBucket = "proposals"
	testTemplatesBucket = "templates"
)

// fakeProposalRepo хранилище предложений в памяти с проверкой version.
type fakeProposalRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]models.Proposal
	updates  int
	failNext error
}

func newFakeProposalRepo() *fakeProposalRepo {
	return &fakeProposalRepo{rows: make(map[uuid.UUID]models.Proposal)}
}

func (r *fakeProposalRepo) Create(_ context.Context, p *models.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.ID]; ok {
		return common.ErrAlreadyExists
	}
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.rows[p.ID] = *p
	return nil
}

func (r *fakeProposalRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	return &p, nil
}

func (r *fakeProposalRepo) UpdateDocument(_ context.Context, id uuid.UUID, version int64, upd models.DocumentUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return 0, err
	}
	p, ok := r.rows[id]
	if !ok {
		return 0, repository.ErrProposalNotFound
	}
	if p.Version != version {
		return 0, repository.ErrVersionConflict
	}
	raw, err := pagenames.Encode(upd.PageNames)
	if err != nil {
		return 0, err
	}
	p.PageNamesRaw = raw
	p.PageCount = upd.PageCount
	p.FileSizeBytes = upd.FileSizeBytes
	p.FileChecksum = upd.FileChecksum
	p.Version++
	p.UpdatedAt = time.Now()
	r.rows[id] = p
	r.updates++
	return p.Version, nil
}

func (r *fakeProposalRepo) UpdatePageNames(_ context.Context, id uuid.UUID, version int64, entries []models.PageNameEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return 0, repository.ErrProposalNotFound
	}
	if p.Version != version {
		return 0, repository.ErrVersionConflict
	}
	raw, err := pagenames.Encode(entries)
	if err != nil {
		return 0, err
	}
	p.PageNamesRaw = raw
	p.Version++
	r.rows[id] = p
	r.updates++
	return p.Version, nil
}

func (r *fakeProposalRepo) ListForReconcile(_ context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]models.Proposal, 0, len(r.rows))
	for _, p := range r.rows {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].ReconciledAt, rows[j].ReconciledAt
		switch {
		case a == nil && b == nil:
			return rows[i].UpdatedAt.Before(rows[j].UpdatedAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	ids := make([]uuid.UUID, 0, limit)
	for i := 0; i < len(rows) && i < limit; i++ {
		ids = append(ids, rows[i].ID)
	}
	return ids, nil
}

func (r *fakeProposalRepo) MarkReconciled(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return repository.ErrProposalNotFound
	}
	now := time.Now()
	p.ReconciledAt = &now
	r.rows[id] = p
	return nil
}

func (r *fakeProposalRepo) get(t *testing.T, id uuid.UUID) models.Proposal {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	require.True(t, ok)
	return p
}

func (r *fakeProposalRepo) names(t *testing.T, id uuid.UUID) []models.PageNameEntry {
	t.Helper()
	p := r.get(t, id)
	names, err := pagenames.Parse(p.PageNamesRaw)
	require.NoError(t, err)
	return names
}

// fakeTemplateRepo повторяет уникальный индекс (template_id, page_number):
// каждый шаг перенумерации проверяется сразу, как в PostgreSQL.
type fakeTemplateRepo struct {
	mu         sync.Mutex
	templates  map[uuid.UUID]models.ProposalTemplate
	pages      map[uuid.UUID]models.TemplatePage
	failApply  error
	failInsert error
	failSync   error
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{
		templates: make(map[uuid.UUID]models.ProposalTemplate),
		pages:     make(map[uuid.UUID]models.TemplatePage),
	}
}

func (r *fakeTemplateRepo) CreateTemplate(_ context.Context, t *models.ProposalTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.New()
	t.Version = 1
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.templates[t.ID] = *t
	return nil
}

func (r *fakeTemplateRepo) GetTemplate(_ context.Context, id uuid.UUID) (*models.ProposalTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	return &t, nil
}

func (r *fakeTemplateRepo) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[id]; !ok {
		return repository.ErrTemplateNotFound
	}
	delete(r.templates, id)
	for pid, p := range r.pages {
		if p.TemplateID == id {
			delete(r.pages, pid)
		}
	}
	return nil
}

func (r *fakeTemplateRepo) SyncPageCount(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSync != nil {
		return 0, r.failSync
	}
	return r.syncLocked(id, r.pages)
}

func (r *fakeTemplateRepo) syncLocked(id uuid.UUID, pages map[uuid.UUID]models.TemplatePage) (int, error) {
	t, ok := r.templates[id]
	if !ok {
		return 0, repository.ErrTemplateNotFound
	}
	count := 0
	for _, p := range pages {
		if p.TemplateID == id {
			count++
		}
	}
	t.PageCount = count
	t.Version++
	r.templates[id] = t
	return count, nil
}

func (r *fakeTemplateRepo) ListPages(_ context.Context, templateID uuid.UUID) ([]models.TemplatePage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(templateID, r.pages), nil
}

func (r *fakeTemplateRepo) listLocked(templateID uuid.UUID, pages map[uuid.UUID]models.TemplatePage) []models.TemplatePage {
	out := make([]models.TemplatePage, 0)
	for _, p := range pages {
		if p.TemplateID == templateID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}

func (r *fakeTemplateRepo) InsertPages(_ context.Context, pages []models.TemplatePage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert != nil {
		return r.failInsert
	}
	work := clonePages(r.pages)
	for _, p := range pages {
		p.ID = uuid.New()
		if taken(work, p.TemplateID, p.PageNumber, p.ID) {
			return common.ErrAlreadyExists
		}
		work[p.ID] = p
	}
	r.pages = work
	return nil
}

func (r *fakeTemplateRepo) ApplyLayout(_ context.Context, templateID uuid.UUID, change models.PageLayoutChange) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failApply != nil {
		return 0, r.failApply
	}
	if _, ok := r.templates[templateID]; !ok {
		return 0, repository.ErrTemplateNotFound
	}

	// Работаем с копией: ошибка любого шага откатывает всю транзакцию.
	work := clonePages(r.pages)
	if change.DeletePageID != nil {
		p, ok := work[*change.DeletePageID]
		if !ok || p.TemplateID != templateID {
			return 0, repository.ErrTemplatePageNotFound
		}
		delete(work, p.ID)
	}
	for _, step := range change.Renumber {
		p, ok := work[step.PageID]
		if !ok || p.TemplateID != templateID {
			return 0, repository.ErrTemplatePageNotFound
		}
		if taken(work, templateID, step.PageNumber, p.ID) {
			return 0, fmt.Errorf("renumber to %d: %w", step.PageNumber, common.ErrAlreadyExists)
		}
		p.PageNumber = step.PageNumber
		p.FilePath = step.FilePath
		work[p.ID] = p
	}
	if up := change.Upsert; up != nil {
		var existing *models.TemplatePage
		for _, p := range work {
			if p.TemplateID == templateID && p.PageNumber == up.PageNumber {
				p := p
				existing = &p
				break
			}
		}
		if existing != nil {
			existing.FilePath = up.FilePath
			existing.Label = up.Label
			existing.Indent = up.Indent
			work[existing.ID] = *existing
			up.ID = existing.ID
		} else {
			up.ID = uuid.New()
			up.TemplateID = templateID
			work[up.ID] = *up
		}
	}

	count, err := r.syncLocked(templateID, work)
	if err != nil {
		return 0, err
	}
	r.pages = work
	return count, nil
}

func (r *fakeTemplateRepo) list(t *testing.T, templateID uuid.UUID) []models.TemplatePage {
	t.Helper()
	pages, err := r.ListPages(context.Background(), templateID)
	require.NoError(t, err)
	return pages
}

func clonePages(src map[uuid.UUID]models.TemplatePage) map[uuid.UUID]models.TemplatePage {
	out := make(map[uuid.UUID]models.TemplatePage, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func taken(pages map[uuid.UUID]models.TemplatePage, templateID uuid.UUID, number int, self uuid.UUID) bool {
	for _, p := range pages {
		if p.TemplateID == templateID && p.PageNumber == number && p.ID != self {
			return true
		}
	}
	return false
}

// flakyStore LocalStorage с управляемыми отказами.
type flakyStore struct {
	*storage.LocalStorage
	mu         sync.Mutex
	failUpload func(bucket, path string) bool
	failMove   func(from, to string) bool
	uploads    int
}

func (s *flakyStore) Upload(ctx context.Context, bucket, path string, data []byte, opts storage.UploadOptions) error {
	s.mu.Lock()
	fail := s.failUpload != nil && s.failUpload(bucket, path)
	s.uploads++
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("upload %s: connection reset", path)
	}
	return s.LocalStorage.Upload(ctx, bucket, path, data, opts)
}

func (s *flakyStore) Move(ctx context.Context, bucket, from, to string) error {
	s.mu.Lock()
	fail := s.failMove != nil && s.failMove(from, to)
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("move %s: connection reset", from)
	}
	return s.LocalStorage.Move(ctx, bucket, from, to)
}

func (s *flakyStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

func newFlakyStore(t *testing.T) *flakyStore {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir(), 0, "http://localhost:8080", "test-signing-key")
	require.NoError(t, err)
	return &flakyStore{LocalStorage: local}
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.DocumentEvent
}

func (p *recordingPublisher) PublishDocumentEvent(e models.DocumentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) all() []models.DocumentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.DocumentEvent(nil), p.events...)
}

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}
