package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/errs"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/model"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory repository whose loan, return and promotion paths
// mirror the guarded-update semantics of the real SQL under one mutex, so the
// concurrency properties exercised against it are meaningful.
type fakeRepo struct {
	mu           sync.Mutex
	authors      map[int]model.Author
	categories   map[int]model.Category
	books        map[int]*model.Book
	users        map[int]*model.User
	questions    map[int]model.SecurityQuestion
	answers      map[[2]int]string
	loans        map[string]*model.Loan
	reservations map[string]*model.Reservation
	nextID       int
	seq          int
	epoch        time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		authors:      make(map[int]model.Author),
		categories:   make(map[int]model.Category),
		books:        make(map[int]*model.Book),
		users:        make(map[int]*model.User),
		questions:    make(map[int]model.SecurityQuestion),
		answers:      make(map[[2]int]string),
		loans:        make(map[string]*model.Loan),
		reservations: make(map[string]*model.Reservation),
		epoch:        time.Now().Add(-time.Hour),
	}
}

func (f *fakeRepo) id() int {
	f.nextID++
	return f.nextID
}

// tick hands out strictly increasing timestamps in the past, keeping
// creation order unambiguous.
func (f *fakeRepo) tick() time.Time {
	f.seq++
	return f.epoch.Add(time.Duration(f.seq) * time.Millisecond)
}

func (f *fakeRepo) CreateAuthor(_ context.Context, req model.CreateAuthorRequest) (model.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	author := model.Author{ID: f.id(), Name: req.Name, Nationality: req.Nationality, BirthDate: req.BirthDate}
	f.authors[author.ID] = author
	return author, nil
}

func (f *fakeRepo) GetAuthor(_ context.Context, id int) (model.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	author, ok := f.authors[id]
	if !ok {
		return model.Author{}, errs.ErrNotFound
	}
	return author, nil
}

func (f *fakeRepo) ListAuthors(context.Context) ([]model.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Author
	for _, a := range f.authors {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) UpdateAuthor(_ context.Context, id int, req model.CreateAuthorRequest) (model.Author, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	author, ok := f.authors[id]
	if !ok {
		return model.Author{}, errs.ErrNotFound
	}
	author.Name, author.Nationality, author.BirthDate = req.Name, req.Nationality, req.BirthDate
	f.authors[id] = author
	return author, nil
}

func (f *fakeRepo) DeleteAuthor(_ context.Context, id int, cascade bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.authors[id]; !ok {
		return errs.ErrNotFound
	}
	var bookIDs []int
	for _, b := range f.books {
		if b.AuthorID == id {
			bookIDs = append(bookIDs, b.ID)
		}
	}
	if len(bookIDs) > 0 && !cascade {
		return errs.ErrAuthorHasBooks
	}
	for _, bookID := range bookIDs {
		for _, loan := range f.loans {
			if loan.BookID == bookID && loan.Status.Outstanding() {
				return errs.ErrBooksOnLoan
			}
		}
		for _, res := range f.reservations {
			if res.BookID == bookID && res.Status == model.ReservationPending {
				return errs.ErrBooksOnLoan
			}
		}
	}
	for _, bookID := range bookIDs {
		for uid, loan := range f.loans {
			if loan.BookID == bookID {
				delete(f.loans, uid)
			}
		}
		for uid, res := range f.reservations {
			if res.BookID == bookID {
				delete(f.reservations, uid)
			}
		}
		delete(f.books, bookID)
	}
	delete(f.authors, id)
	return nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, name string) (model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Name == name {
			return model.Category{}, errs.ErrConflict
		}
	}
	category := model.Category{ID: f.id(), Name: name}
	f.categories[category.ID] = category
	return category, nil
}

func (f *fakeRepo) ListCategories(context.Context) ([]model.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) CreateBook(_ context.Context, req model.CreateBookRequest) (model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.books {
		if b.ISBN == req.ISBN {
			return model.Book{}, errs.ErrConflict
		}
	}
	book := &model.Book{
		ID:             f.id(),
		ISBN:           req.ISBN,
		Title:          req.Title,
		AuthorID:       req.AuthorID,
		CategoryID:     req.CategoryID,
		Publisher:      req.Publisher,
		PublishedAt:    req.PublishedAt,
		Description:    req.Description,
		CoverURL:       req.CoverURL,
		TotalCopies:    req.TotalCopies,
		AvailableCount: req.TotalCopies,
	}
	f.books[book.ID] = book
	return *book, nil
}

func (f *fakeRepo) GetBook(_ context.Context, id int) (model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return *book, nil
}

func (f *fakeRepo) UpdateBook(_ context.Context, id int, req model.UpdateBookRequest) (model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Publisher != nil {
		book.Publisher = *req.Publisher
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	return *book, nil
}

func (f *fakeRepo) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return f.SearchBooks(ctx, model.BookCriteria{}, page, size)
}

func (f *fakeRepo) SearchBooks(_ context.Context, c model.BookCriteria, page, size int) (model.ListBooks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []model.Book
	for _, b := range f.books {
		if c.AuthorID != 0 && b.AuthorID != c.AuthorID {
			continue
		}
		if c.AvailableOnly && b.AvailableCount == 0 {
			continue
		}
		items = append(items, *b)
	}
	return model.ListBooks{
		Paging: model.Paging{Page: page, PageSize: size, TotalElements: len(items)},
		Items:  items,
	}, nil
}

func (f *fakeRepo) SetTotal(_ context.Context, bookID, newTotal int) (model.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[bookID]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	outstanding := book.TotalCopies - book.AvailableCount
	if newTotal < outstanding {
		return model.Book{}, errs.ErrInvalidAdjustment
	}
	book.AvailableCount += newTotal - book.TotalCopies
	book.TotalCopies = newTotal
	return *book, nil
}

func (f *fakeRepo) CreateUser(_ context.Context, req model.CreateUserRequest) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == req.Username || u.Email == req.Email {
			return model.User{}, errs.ErrConflict
		}
	}
	user := &model.User{
		ID:           f.id(),
		Username:     req.Username,
		Name:         req.Name,
		Password:     req.Password,
		Email:        req.Email,
		Type:         req.Type,
		Status:       model.UserActive,
		RegisteredAt: f.tick(),
	}
	f.users[user.ID] = user
	return *user, nil
}

func (f *fakeRepo) GetUser(_ context.Context, id int) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return *user, nil
}

func (f *fakeRepo) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return model.User{}, errs.ErrNotFound
}

func (f *fakeRepo) ListUsers(_ context.Context, page, size int) (model.ListUsers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []model.User
	for _, u := range f.users {
		items = append(items, *u)
	}
	return model.ListUsers{
		Paging: model.Paging{Page: page, PageSize: size, TotalElements: len(items)},
		Items:  items,
	}, nil
}

func (f *fakeRepo) SetUserStatus(_ context.Context, id int, status model.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	user.Status = status
	return nil
}

func (f *fakeRepo) RecordFailedAttempt(_ context.Context, id, maxAttempts int) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	user.FailedAttempts++
	if user.FailedAttempts >= maxAttempts {
		user.Status = model.UserBlocked
		user.PasswordChangeDue = true
	}
	return *user, nil
}

func (f *fakeRepo) ResetFailedAttempts(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	user.FailedAttempts = 0
	return nil
}

func (f *fakeRepo) CreateQuestion(_ context.Context, text string) (model.SecurityQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	question := model.SecurityQuestion{ID: f.id(), Text: text}
	f.questions[question.ID] = question
	return question, nil
}

func (f *fakeRepo) ListQuestions(context.Context) ([]model.SecurityQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SecurityQuestion
	for _, q := range f.questions {
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeRepo) UpsertAnswer(_ context.Context, userID, questionID int, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.questions[questionID]; !ok {
		return errs.ErrNotFound
	}
	f.answers[[2]int{userID, questionID}] = answer
	return nil
}

func (f *fakeRepo) GetUserQuestions(_ context.Context, userID int) ([]model.SecurityQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SecurityQuestion
	for key := range f.answers {
		if key[0] == userID {
			out = append(out, f.questions[key[1]])
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateLoan(_ context.Context, userID, bookID int, dueAt time.Time) (model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createLoanLocked(userID, bookID, dueAt)
}

func (f *fakeRepo) createLoanLocked(userID, bookID int, dueAt time.Time) (model.Loan, error) {
	book, ok := f.books[bookID]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	if book.AvailableCount <= 0 {
		return model.Loan{}, errs.ErrNoCopiesAvailable
	}
	book.AvailableCount--
	loan := &model.Loan{
		ID:       f.id(),
		LoanUid:  uuid.NewString(),
		UserID:   userID,
		BookID:   bookID,
		IssuedAt: f.tick(),
		DueAt:    dueAt,
		Status:   model.LoanActive,
	}
	f.loans[loan.LoanUid] = loan
	return *loan, nil
}

func (f *fakeRepo) GetLoan(_ context.Context, loanUid string) (model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	return *loan, nil
}

func (f *fakeRepo) ListLoansByUser(_ context.Context, userID int) ([]model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Loan
	for _, l := range f.loans {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOverdueLoans(context.Context) ([]model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Loan
	for _, l := range f.loans {
		if l.Status == model.LoanOverdue {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ReturnLoan(_ context.Context, loanUid string) (model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loan, ok := f.loans[loanUid]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	if !loan.Status.Outstanding() {
		return model.Loan{}, errs.ErrAlreadyReturned
	}
	book := f.books[loan.BookID]
	if book.AvailableCount >= book.TotalCopies {
		return model.Loan{}, errs.ErrConsistencyViolation
	}
	now := f.tick()
	loan.Status = model.LoanReturned
	loan.ReturnedAt = &now
	book.AvailableCount++
	return *loan, nil
}

func (f *fakeRepo) MarkOverdueLoans(_ context.Context, now time.Time) ([]model.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Loan
	for _, l := range f.loans {
		if l.Status == model.LoanActive && l.DueAt.Before(now) {
			l.Status = model.LoanOverdue
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateReservation(_ context.Context, userID, bookID int) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.UserID == userID && r.BookID == bookID && r.Status == model.ReservationPending {
			return model.Reservation{}, errs.ErrDuplicateReservation
		}
	}
	res := &model.Reservation{
		ID:             f.id(),
		ReservationUid: uuid.NewString(),
		UserID:         userID,
		BookID:         bookID,
		ReservedAt:     f.tick(),
		Status:         model.ReservationPending,
	}
	f.reservations[res.ReservationUid] = res
	return *res, nil
}

func (f *fakeRepo) GetReservation(_ context.Context, reservationUid string) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[reservationUid]
	if !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	return *res, nil
}

func (f *fakeRepo) ListReservationsByUser(_ context.Context, userID int) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPendingReservations(_ context.Context, bookID int) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.BookID == bookID && r.Status == model.ReservationPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) CancelReservation(_ context.Context, reservationUid string) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.reservations[reservationUid]
	if !ok {
		return model.Reservation{}, errs.ErrNotFound
	}
	if res.Status != model.ReservationPending {
		return model.Reservation{}, errs.ErrConflict
	}
	res.Status = model.ReservationCancelled
	return *res, nil
}

func (f *fakeRepo) ExpireReservations(_ context.Context, before time.Time) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.reservations {
		if r.Status == model.ReservationPending && r.ReservedAt.Before(before) {
			r.Status = model.ReservationExpired
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) PromoteNextReservation(_ context.Context, bookID int, dueAt time.Time) (*model.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var oldest *model.Reservation
	for _, r := range f.reservations {
		if r.BookID != bookID || r.Status != model.ReservationPending {
			continue
		}
		if oldest == nil || r.ReservedAt.Before(oldest.ReservedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, nil
	}
	book := f.books[bookID]
	if book == nil || book.AvailableCount <= 0 {
		return nil, nil
	}
	loan, err := f.createLoanLocked(oldest.UserID, bookID, dueAt)
	if err != nil {
		return nil, err
	}
	oldest.Status = model.ReservationFulfilled
	return &model.Promotion{Reservation: *oldest, Loan: loan}, nil
}

func (f *fakeRepo) ReconcileAvailability(context.Context) ([]model.Drift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var drifts []model.Drift
	for _, book := range f.books {
		outstanding := 0
		for _, l := range f.loans {
			if l.BookID == book.ID && l.Status.Outstanding() {
				outstanding++
			}
		}
		computed := book.TotalCopies - outstanding
		if computed != book.AvailableCount {
			drifts = append(drifts, model.Drift{BookID: book.ID, Stored: book.AvailableCount, Computed: computed})
			book.AvailableCount = computed
		}
	}
	return drifts, nil
}

func (f *fakeRepo) LoadCatalog(_ context.Context, table string) ([]model.CatalogRow, error) {
	seeds, ok := model.CatalogSeeds[table]
	if !ok {
		return nil, fmt.Errorf("unknown catalog table %q", table)
	}
	rows := make([]model.CatalogRow, 0, len(seeds))
	for id, name := range seeds {
		rows = append(rows, model.CatalogRow{ID: id, Name: name})
	}
	return rows, nil
}

// test hooks

func (f *fakeRepo) setLoanDue(loanUid string, due time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans[loanUid].DueAt = due
}

func (f *fakeRepo) corruptAvailability(bookID, value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[bookID].AvailableCount = value
}

func (f *fakeRepo) bookState(bookID int) (total, available int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book := f.books[bookID]
	return book.TotalCopies, book.AvailableCount
}

func (f *fakeRepo) outstanding(bookID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.loans {
		if l.BookID == bookID && l.Status.Outstanding() {
			n++
		}
	}
	return n
}
