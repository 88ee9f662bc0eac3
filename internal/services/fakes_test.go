package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thriftin-utm/account-service/internal/auth"
	"github.com/thriftin-utm/account-service/internal/models"
	pkgauth "github.com/thriftin-utm/account-service/pkg/auth"
	pkglogger "github.com/thriftin-utm/account-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	pkgauth.BcryptCost = bcrypt.MinCost
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger)
}

// fakeStore is an in-memory account store with the same lockout and reset
// semantics as the Postgres repository.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	byEmail  map[string]string

	// failNext makes the next call of the named method return the error
	failNext map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*models.Account),
		byEmail:  make(map[string]string),
		failNext: make(map[string]error),
	}
}

func (f *fakeStore) fail(method string) error {
	if err, ok := f.failNext[method]; ok {
		delete(f.failNext, method)
		return err
	}
	return nil
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	if a.Student != nil {
		s := *a.Student
		c.Student = &s
	}
	return &c
}

func (f *fakeStore) addStudent(email, password, matricNumber string) *models.Account {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	acct, err := f.CreateStudent(context.Background(),
		&models.Account{Email: email, PasswordHash: hash},
		&models.StudentProfile{
			MatricNumber:            matricNumber,
			DegreeType:              "Bachelor",
			FacultyCode:             "CS",
			EnrollmentYear:          2023,
			StudyDuration:           4,
			EstimatedGraduationYear: 2027,
		})
	if err != nil {
		panic(err)
	}
	return acct
}

func (f *fakeStore) addAdmin(email, password string) *models.Account {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	acct, err := f.CreateAdmin(context.Background(), email, hash)
	if err != nil {
		panic(err)
	}
	return acct
}

func (f *fakeStore) get(id string) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyAccount(f.accounts[id])
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetByID"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(a), nil
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetByEmail"); err != nil {
		return nil, err
	}
	id, ok := f.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(f.accounts[id]), nil
}

func (f *fakeStore) EmailExists(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("EmailExists"); err != nil {
		return false, err
	}
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeStore) MatricExists(ctx context.Context, matricNumber string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("MatricExists"); err != nil {
		return false, err
	}
	for _, a := range f.accounts {
		if a.Student != nil && a.Student.MatricNumber == matricNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateStudent(ctx context.Context, account *models.Account, profile *models.StudentProfile) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateStudent"); err != nil {
		return nil, err
	}
	if _, ok := f.byEmail[account.Email]; ok {
		return nil, models.ErrEmailTaken
	}
	for _, a := range f.accounts {
		if a.Student != nil && a.Student.MatricNumber == profile.MatricNumber {
			return nil, models.ErrMatricTaken
		}
	}

	account.ID = uuid.New().String()
	account.Role = models.RoleStudent
	account.CreatedAt = time.Now()
	profile.AccountID = account.ID
	account.Student = profile

	f.accounts[account.ID] = copyAccount(account)
	f.byEmail[account.Email] = account.ID
	return account, nil
}

func (f *fakeStore) CreateAdmin(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateAdmin"); err != nil {
		return nil, err
	}
	if _, ok := f.byEmail[email]; ok {
		return nil, models.ErrEmailTaken
	}
	a := &models.Account{ID: uuid.New().String(), Email: email, PasswordHash: passwordHash, Role: models.RoleAdmin}
	f.accounts[a.ID] = a
	f.byEmail[email] = a.ID
	return copyAccount(a), nil
}

func (f *fakeStore) RegisterFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (*models.LockState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RegisterFailedLogin"); err != nil {
		return nil, err
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if a.IsLocked(now) {
		return &models.LockState{FailedAttempts: a.FailedAttempts, LockedUntil: a.LockedUntil, AlreadyLocked: true}, nil
	}
	if a.FailedAttempts+1 >= threshold {
		a.FailedAttempts = 0
		until := lockUntil
		a.LockedUntil = &until
	} else {
		a.FailedAttempts++
		a.LockedUntil = nil
	}
	return &models.LockState{FailedAttempts: a.FailedAttempts, LockedUntil: a.LockedUntil}, nil
}

func (f *fakeStore) RegisterSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RegisterSuccessfulLogin"); err != nil {
		return err
	}
	a, ok := f.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.LastLoginAt = &at
	return nil
}

func (f *fakeStore) Unlock(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	return nil
}

func (f *fakeStore) SetResetCode(ctx context.Context, accountID, codeHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SetResetCode"); err != nil {
		return err
	}
	a, ok := f.accounts[accountID]
	if !ok || a.Student == nil {
		return models.ErrNotFound
	}
	a.Student.ResetCodeHash = &codeHash
	a.Student.ResetCodeExpiresAt = &expiresAt
	return nil
}

func (f *fakeStore) ClearResetCode(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[accountID]; ok && a.Student != nil {
		a.Student.ResetCodeHash = nil
		a.Student.ResetCodeExpiresAt = nil
	}
	return nil
}

func (f *fakeStore) ConsumeResetCode(ctx context.Context, email, codeHash, newPasswordHash string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ConsumeResetCode"); err != nil {
		return "", err
	}
	id, ok := f.byEmail[email]
	if !ok {
		return "", models.ErrInvalidResetCode
	}
	a := f.accounts[id]
	sp := a.Student
	if sp == nil || sp.ResetCodeHash == nil || *sp.ResetCodeHash != codeHash || !now.Before(*sp.ResetCodeExpiresAt) {
		return "", models.ErrInvalidResetCode
	}
	sp.ResetCodeHash = nil
	sp.ResetCodeExpiresAt = nil
	a.PasswordHash = newPasswordHash
	a.PasswordChangedAt = &now
	return id, nil
}

func (f *fakeStore) CountByRole(ctx context.Context, role string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CountByRole"); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range f.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountLocked(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.accounts {
		if a.IsLocked(now) {
			n++
		}
	}
	return n, nil
}

// fakeAttempts records login attempts in memory
type fakeAttempts struct {
	mu       sync.Mutex
	attempts []*models.LoginAttempt
	err      error
}

func (f *fakeAttempts) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	c := *attempt
	f.attempts = append(f.attempts, &c)
	return nil
}

func (f *fakeAttempts) ListRecent(ctx context.Context, limit int) ([]*models.LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.LoginAttempt, 0, limit)
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.attempts[i])
	}
	return out, nil
}

func (f *fakeAttempts) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.attempts {
		if !a.Success && !a.AttemptedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttempts) last() *models.LoginAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.attempts) == 0 {
		return nil
	}
	return f.attempts[len(f.attempts)-1]
}

// fakeEmail captures outgoing mail and can be told to fail
type fakeEmail struct {
	mu         sync.Mutex
	lockNotice []string
	resetCodes map[string]string
	err        error
}

func newFakeEmail() *fakeEmail {
	return &fakeEmail{resetCodes: make(map[string]string)}
}

func (f *fakeEmail) SendLockNotification(ctx context.Context, email string, lockedUntil time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.lockNotice = append(f.lockNotice, email)
	return nil
}

func (f *fakeEmail) SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.resetCodes[email] = code
	return nil
}

var errBoom = errors.New("boom")

// clock is a settable time source
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-32-characters-long!", 15*time.Minute)
}
