package app

import (
	"context"
	"sort"
	"time"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// fakeRepo backs every service interface with in-memory state so service
// tests can cover cross-aggregate flows (a return fulfilling a reservation,
// a lost copy raising a fine) without a database.
type fakeRepo struct {
	users      map[string]domain.User
	tokens     map[string]domain.Token
	books      map[string]domain.Book
	categories map[string]domain.Category
	bookCats   map[string][]string
	copies     map[string]domain.Copy

	loans         []domain.Loan
	reservations  []domain.Reservation
	fines         []domain.Fine
	notifications []domain.Notification
	audit         []domain.AuditEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      make(map[string]domain.User),
		tokens:     make(map[string]domain.Token),
		books:      make(map[string]domain.Book),
		categories: make(map[string]domain.Category),
		bookCats:   make(map[string][]string),
		copies:     make(map[string]domain.Copy),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// users

func (f *fakeRepo) CreateUser(_ context.Context, user domain.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (f *fakeRepo) GetUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepo) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	f.users[userID] = u
	return nil
}

func (f *fakeRepo) SetEmailVerified(_ context.Context, userID string) error {
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailVerified = true
	f.users[userID] = u
	return nil
}

func (f *fakeRepo) UpdateUserRole(_ context.Context, userID string, role domain.Role) error {
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Role = role
	f.users[userID] = u
	return nil
}

// tokens

func (f *fakeRepo) CreateToken(_ context.Context, token domain.Token) error {
	f.tokens[token.ID] = token
	return nil
}

func (f *fakeRepo) GetTokenBySecret(_ context.Context, purpose domain.TokenPurpose, secret string) (domain.Token, error) {
	for _, tok := range f.tokens {
		if tok.Purpose == purpose && tok.Token == secret {
			return tok, nil
		}
	}
	return domain.Token{}, domain.ErrTokenNotFound
}

func (f *fakeRepo) ConsumeToken(_ context.Context, tokenID string, at time.Time) error {
	tok, ok := f.tokens[tokenID]
	if !ok {
		return domain.ErrTokenNotFound
	}
	if tok.ConsumedAt != nil {
		return domain.ErrTokenConsumed
	}
	tok.ConsumedAt = &at
	f.tokens[tokenID] = tok
	return nil
}

func (f *fakeRepo) DeleteExpiredTokens(_ context.Context, before time.Time) (int, error) {
	deleted := 0
	for id, tok := range f.tokens {
		if tok.ExpiresAt.Before(before) {
			delete(f.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

// books and categories

func (f *fakeRepo) CreateBook(_ context.Context, book domain.Book) error {
	for _, b := range f.books {
		if b.ISBN == book.ISBN {
			return domain.ErrISBNTaken
		}
	}
	f.books[book.ID] = book
	return nil
}

func (f *fakeRepo) GetBook(_ context.Context, bookID string) (domain.Book, error) {
	b, ok := f.books[bookID]
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return b, nil
}

func (f *fakeRepo) ListBooks(_ context.Context) ([]domain.Book, error) {
	out := make([]domain.Book, 0, len(f.books))
	for _, b := range f.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeRepo) DeleteBook(_ context.Context, bookID string) error {
	if _, ok := f.books[bookID]; !ok {
		return domain.ErrBookNotFound
	}
	delete(f.books, bookID)
	return nil
}

func (f *fakeRepo) CountOpenLoansByBook(_ context.Context, bookID string) (int, error) {
	count := 0
	for _, l := range f.loans {
		if l.Open() && f.copies[l.CopyID].BookID == bookID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) CountLiveReservationsByBook(_ context.Context, bookID string) (int, error) {
	count := 0
	for _, r := range f.reservations {
		if r.BookID == bookID && r.Live() {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) GetAvailability(_ context.Context, bookID string) (domain.Availability, error) {
	av := domain.Availability{BookID: bookID}
	for _, cp := range f.copies {
		if cp.BookID != bookID {
			continue
		}
		av.CopiesTotal++
		if cp.Status == domain.CopyStatusAvailable {
			av.CopiesAvailable++
		}
	}
	return av, nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, category domain.Category) error {
	for _, c := range f.categories {
		if c.Name == category.Name {
			return domain.ErrCategoryTaken
		}
	}
	f.categories[category.ID] = category
	return nil
}

func (f *fakeRepo) ListCategories(_ context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepo) ListCategoriesByBook(_ context.Context, bookID string) ([]domain.Category, error) {
	var out []domain.Category
	for _, id := range f.bookCats[bookID] {
		out = append(out, f.categories[id])
	}
	return out, nil
}

func (f *fakeRepo) AssignCategory(_ context.Context, bookID, categoryID string) error {
	if _, ok := f.books[bookID]; !ok {
		return domain.ErrBookNotFound
	}
	if _, ok := f.categories[categoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	f.bookCats[bookID] = append(f.bookCats[bookID], categoryID)
	return nil
}

// copies

func (f *fakeRepo) CreateCopy(_ context.Context, cp domain.Copy) error {
	if _, ok := f.books[cp.BookID]; !ok {
		return domain.ErrBookNotFound
	}
	for _, existing := range f.copies {
		if existing.Barcode == cp.Barcode {
			return domain.ErrBarcodeTaken
		}
	}
	f.copies[cp.ID] = cp
	return nil
}

func (f *fakeRepo) ListCopiesByBook(_ context.Context, bookID string) ([]domain.Copy, error) {
	var out []domain.Copy
	for _, cp := range f.copies {
		if cp.BookID == bookID {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out, nil
}

func (f *fakeRepo) GetCopyForUpdate(_ context.Context, copyID string) (domain.Copy, error) {
	cp, ok := f.copies[copyID]
	if !ok {
		return domain.Copy{}, domain.ErrCopyNotFound
	}
	return cp, nil
}

func (f *fakeRepo) UpdateCopyStatus(_ context.Context, copyID string, status domain.CopyStatus) error {
	cp, ok := f.copies[copyID]
	if !ok {
		return domain.ErrCopyNotFound
	}
	cp.Status = status
	f.copies[copyID] = cp
	return nil
}

// loans

func (f *fakeRepo) GetLoanForUpdate(_ context.Context, loanID string) (domain.Loan, error) {
	for _, l := range f.loans {
		if l.ID == loanID {
			return l, nil
		}
	}
	return domain.Loan{}, domain.ErrLoanNotFound
}

func (f *fakeRepo) GetOpenLoanByCopy(_ context.Context, copyID string) (*domain.Loan, error) {
	for _, l := range f.loans {
		if l.CopyID == copyID && l.Open() {
			loan := l
			return &loan, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateLoan(_ context.Context, loan domain.Loan) error {
	if _, ok := f.copies[loan.CopyID]; !ok {
		return domain.ErrCopyNotFound
	}
	f.loans = append(f.loans, loan)
	return nil
}

func (f *fakeRepo) UpdateLoanDue(_ context.Context, loanID string, dueAt time.Time, renewals int) error {
	for i, l := range f.loans {
		if l.ID != loanID {
			continue
		}
		if l.ReturnedAt != nil {
			return domain.ErrLoanClosed
		}
		f.loans[i].DueAt = dueAt
		f.loans[i].Renewals = renewals
		return nil
	}
	return domain.ErrLoanNotFound
}

func (f *fakeRepo) CloseLoan(_ context.Context, loanID string, returnedAt time.Time) error {
	for i, l := range f.loans {
		if l.ID != loanID {
			continue
		}
		if l.ReturnedAt != nil {
			return domain.ErrLoanClosed
		}
		f.loans[i].ReturnedAt = &returnedAt
		f.loans[i].Status = domain.LoanStatusReturned
		return nil
	}
	return domain.ErrLoanNotFound
}

func (f *fakeRepo) MarkLoanOverdue(_ context.Context, loanID string) error {
	for i, l := range f.loans {
		if l.ID == loanID && l.Status == domain.LoanStatusActive {
			f.loans[i].Status = domain.LoanStatusOverdue
			return nil
		}
	}
	return nil
}

func (f *fakeRepo) ListLoansByMember(_ context.Context, memberID string) ([]domain.Loan, error) {
	var out []domain.Loan
	for _, l := range f.loans {
		if l.MemberID == memberID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListLoansPastDue(_ context.Context, now time.Time) ([]domain.Loan, error) {
	var out []domain.Loan
	for _, l := range f.loans {
		if l.Status == domain.LoanStatusActive && l.DueAt.Before(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountOpenLoansByMember(_ context.Context, memberID string) (int, error) {
	count := 0
	for _, l := range f.loans {
		if l.MemberID == memberID && l.Open() {
			count++
		}
	}
	return count, nil
}

// reservations

func (f *fakeRepo) CreateReservation(_ context.Context, r domain.Reservation) error {
	f.reservations = append(f.reservations, r)
	return nil
}

func (f *fakeRepo) GetReservation(_ context.Context, id string) (domain.Reservation, error) {
	for _, r := range f.reservations {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Reservation{}, domain.ErrReservationNotFound
}

func (f *fakeRepo) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeRepo) ListActiveReservationsByBook(_ context.Context, bookID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.BookID == bookID && r.Status == domain.ReservationStatusActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(out[j].ReservedAt) })
	return out, nil
}

func (f *fakeRepo) ListReservationsByMember(_ context.Context, memberID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.MemberID == memberID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListFulfilledPastPickup(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusFulfilled && r.CollectedAt == nil &&
			r.PickupBy != nil && !r.PickupBy.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindAvailableCopy(_ context.Context, bookID string) (*domain.Copy, error) {
	candidates, _ := f.ListCopiesByBook(context.Background(), bookID)
	for _, cp := range candidates {
		if cp.Status == domain.CopyStatusAvailable {
			found := cp
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SetReservationStatus(_ context.Context, reservationID string, status domain.ReservationStatus) error {
	for i, r := range f.reservations {
		if r.ID == reservationID {
			f.reservations[i].Status = status
			return nil
		}
	}
	return domain.ErrReservationNotFound
}

func (f *fakeRepo) CountLiveReservationsByMember(_ context.Context, memberID string) (int, error) {
	count := 0
	for _, r := range f.reservations {
		if r.MemberID == memberID && r.Live() {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) FindLiveReservationByMemberAndBook(_ context.Context, memberID, bookID string) (*domain.Reservation, error) {
	for _, r := range f.reservations {
		if r.MemberID == memberID && r.BookID == bookID && r.Live() {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) GetFulfilledReservationByCopy(_ context.Context, copyID string) (*domain.Reservation, error) {
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusFulfilled && r.CollectedAt == nil &&
			r.CopyID != nil && *r.CopyID == copyID {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) MarkReservationCollected(_ context.Context, reservationID string, at time.Time) error {
	for i, r := range f.reservations {
		if r.ID != reservationID {
			continue
		}
		if r.Status != domain.ReservationStatusFulfilled || r.CollectedAt != nil {
			return domain.ErrReservationNotActive
		}
		f.reservations[i].CollectedAt = &at
		return nil
	}
	return domain.ErrReservationNotFound
}

func (f *fakeRepo) HeadActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error) {
	active, _ := f.ListActiveReservationsByBook(ctx, bookID)
	if len(active) == 0 {
		return nil, nil
	}
	head := active[0]
	return &head, nil
}

func (f *fakeRepo) FulfillReservation(_ context.Context, reservationID, copyID string, pickupBy time.Time) error {
	for i, r := range f.reservations {
		if r.ID != reservationID {
			continue
		}
		if r.Status != domain.ReservationStatusActive {
			return domain.ErrReservationNotActive
		}
		f.reservations[i].Status = domain.ReservationStatusFulfilled
		f.reservations[i].CopyID = &copyID
		f.reservations[i].PickupBy = &pickupBy
		return nil
	}
	return domain.ErrReservationNotFound
}

// fines

func (f *fakeRepo) CreateFine(_ context.Context, fine domain.Fine) error {
	f.fines = append(f.fines, fine)
	return nil
}

func (f *fakeRepo) GetFineForUpdate(_ context.Context, fineID string) (domain.Fine, error) {
	for _, fine := range f.fines {
		if fine.ID == fineID {
			return fine, nil
		}
	}
	return domain.Fine{}, domain.ErrFineNotFound
}

func (f *fakeRepo) SettleFine(_ context.Context, fineID string, status domain.FineStatus, at time.Time) error {
	for i, fine := range f.fines {
		if fine.ID != fineID {
			continue
		}
		if fine.Status != domain.FineStatusPending {
			return domain.ErrFineAlreadySettled
		}
		f.fines[i].Status = status
		f.fines[i].SettledAt = &at
		return nil
	}
	return domain.ErrFineAlreadySettled
}

func (f *fakeRepo) ListFinesByMember(_ context.Context, memberID string) ([]domain.Fine, error) {
	var out []domain.Fine
	for _, fine := range f.fines {
		if fine.MemberID == memberID {
			out = append(out, fine)
		}
	}
	return out, nil
}

func (f *fakeRepo) SumPendingFines(_ context.Context, memberID string) (int, error) {
	sum := 0
	for _, fine := range f.fines {
		if fine.MemberID == memberID && fine.Status == domain.FineStatusPending {
			sum += fine.AmountCents
		}
	}
	return sum, nil
}

// notifications

func (f *fakeRepo) CreateNotification(_ context.Context, n domain.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeRepo) GetNotificationForUpdate(_ context.Context, id string) (domain.Notification, error) {
	for _, n := range f.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return domain.Notification{}, domain.ErrNotificationNotFound
}

func (f *fakeRepo) ListDispatchable(_ context.Context, maxAttempts, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range f.notifications {
		dispatchable := n.Status == domain.NotificationStatusPending || n.Status == domain.NotificationStatusFailed
		if dispatchable && n.Attempts < maxAttempts {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) ListNotificationsByUser(_ context.Context, userID string) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkNotificationSent(_ context.Context, id string, at time.Time) error {
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications[i].Status = domain.NotificationStatusSent
			f.notifications[i].Attempts++
			f.notifications[i].SentAt = &at
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (f *fakeRepo) MarkNotificationFailed(_ context.Context, id string) error {
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications[i].Status = domain.NotificationStatusFailed
			f.notifications[i].Attempts++
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (f *fakeRepo) MarkNotificationRead(_ context.Context, id string) error {
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications[i].Status = domain.NotificationStatusRead
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// audit

func (f *fakeRepo) CreateAuditEntry(_ context.Context, e domain.AuditEntry) error {
	f.audit = append(f.audit, e)
	return nil
}

func (f *fakeRepo) ListRecentAudit(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	out := make([]domain.AuditEntry, 0, limit)
	for i := len(f.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.audit[i])
	}
	return out, nil
}

func (f *fakeRepo) notificationsOfType(typ domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range f.notifications {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}
