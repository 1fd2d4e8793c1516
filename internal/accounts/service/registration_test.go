package service_test

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"registrar/internal/accounts/models"
	"registrar/internal/accounts/secrets"
	"registrar/internal/accounts/service"
	"registrar/internal/accounts/store/account"
	"registrar/internal/captcha"
	id "registrar/pkg/domain"
	"registrar/pkg/platform/audit"
	"registrar/pkg/platform/audit/publishers/compliance"
	auditmemory "registrar/pkg/platform/audit/store/memory"
	"registrar/pkg/platform/validation"
	"registrar/pkg/requestcontext"
	"registrar/pkg/testutil"
)

// plainHasher keeps these tests fast; bcrypt is covered in secrets.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

type fixture struct {
	store   *account.InMemoryAccountStore
	gate    *captcha.Gate
	audit   *auditmemory.InMemoryStore
	service *service.Service
}

func newFixture(t *testing.T, useCaptcha bool) *fixture {
	t.Helper()
	f := &fixture{
		store: account.New(),
		gate: captcha.NewGate(captcha.NewInMemoryStore(),
			captcha.WithGenerator(captcha.FixedGenerator{Prompt: "1 + 1", Answer: "passed"})),
		audit: auditmemory.NewInMemoryStore(),
	}
	svc, err := service.New(f.store, f.gate, plainHasher{},
		service.Settings{UseCaptcha: useCaptcha, PasswordMinLength: 8},
		service.WithStoreTx(account.NewMemoryTx()),
		service.WithAuditPublisher(compliance.New(f.audit)),
	)
	require.NoError(t, err)
	f.service = svc
	return f
}

func validValues() url.Values {
	return url.Values{
		"username":  {"test_user"},
		"password1": {"s3cret-pass"},
		"password2": {"s3cret-pass"},
		"email":     {"new-tester@example.com"},
	}
}

func seedSuperuser(t *testing.T, store *account.InMemoryAccountStore) {
	t.Helper()
	root := &models.Account{
		Username:     "root",
		Email:        "root@example.com",
		PasswordHash: "hashed",
		IsSuperuser:  true,
		IsActive:     true,
		DateJoined:   time.Now(),
		UpdatedAt:    time.Now(),
	}
	root.ID = id.NewUserID()
	require.NoError(t, store.Create(context.Background(), root))
}

func TestRegistration_FirstAccountBootstrap(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "an empty store and CAPTCHA disabled", func(t *testing.T) {
		f := newFixture(t, false)

		testutil.When(t, "a valid form is registered without commit", func(t *testing.T) {
			built, err := f.service.Register(ctx, models.FormFromValues(validValues()), false)
			require.NoError(t, err)

			testutil.Then(t, "the account is an active superuser with no identity", func(t *testing.T) {
				assert.True(t, built.IsSuperuser)
				assert.True(t, built.IsActive)
				assert.False(t, built.IsPersisted())
			})

			testutil.Then(t, "persisting assigns an identity", func(t *testing.T) {
				saved, err := f.service.Persist(ctx, built)
				require.NoError(t, err)
				assert.True(t, saved.IsPersisted())
				assert.True(t, saved.IsSuperuser)

				found, err := f.store.FindByID(ctx, saved.ID)
				require.NoError(t, err)
				assert.Equal(t, "test_user", found.Username)
				assert.Equal(t, "hashed:s3cret-pass", found.PasswordHash)
			})
		})
	})
}

func TestRegistration_LaterAccountsAreInactive(t *testing.T) {
	ctx := context.Background()

	testutil.Given(t, "a store that already holds a superuser", func(t *testing.T) {
		f := newFixture(t, false)
		seedSuperuser(t, f.store)

		testutil.When(t, "a valid form is registered", func(t *testing.T) {
			saved, err := f.service.Register(ctx, models.FormFromValues(validValues()), true)
			require.NoError(t, err)

			testutil.Then(t, "the account is neither superuser nor active", func(t *testing.T) {
				assert.False(t, saved.IsSuperuser)
				assert.False(t, saved.IsActive)
				assert.True(t, saved.IsPersisted())
			})
		})
	})

	testutil.Given(t, "a store holding only regular accounts", func(t *testing.T) {
		f := newFixture(t, false)
		regular := &models.Account{ID: id.NewUserID(), Username: "plain", Email: "plain@example.com"}
		require.NoError(t, f.store.Create(ctx, regular))

		testutil.Then(t, "the next registration still becomes the superuser", func(t *testing.T) {
			saved, err := f.service.Register(ctx, models.FormFromValues(validValues()), true)
			require.NoError(t, err)
			assert.True(t, saved.IsSuperuser)
			assert.True(t, saved.IsActive)
		})
	})
}

func TestRegistration_CaptchaGate(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled gate rejects a wrong response", func(t *testing.T) {
		f := newFixture(t, true)
		values := validValues()
		values.Set("captcha_0", "correct")
		values.Set("captcha_1", "WRONG")

		_, err := f.service.Register(ctx, models.FormFromValues(values), true)
		fieldErrs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.Contains(t, fieldErrs.Messages("captcha"), "Invalid CAPTCHA")
	})

	t.Run("enabled gate requires a response", func(t *testing.T) {
		f := newFixture(t, true)

		_, err := f.service.Register(ctx, models.FormFromValues(validValues()), true)
		fieldErrs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.Equal(t, []string{"This field is required."}, fieldErrs.Messages("captcha"))
	})

	t.Run("enabled gate accepts the issued answer in any case", func(t *testing.T) {
		f := newFixture(t, true)
		issued, err := f.gate.Issue(ctx)
		require.NoError(t, err)

		values := validValues()
		values.Set("captcha_0", issued.Key)
		values.Set("captcha_1", "PASSED")

		saved, err := f.service.Register(ctx, models.FormFromValues(values), true)
		require.NoError(t, err)
		assert.True(t, saved.IsPersisted())
	})

	t.Run("disabled gate never inspects the fields", func(t *testing.T) {
		f := newFixture(t, false)
		values := validValues()
		values.Set("captcha_0", "correct")
		values.Set("captcha_1", "WRONG")

		saved, err := f.service.Register(ctx, models.FormFromValues(values), true)
		require.NoError(t, err)
		assert.True(t, saved.IsPersisted())
	})
}

func TestRegistration_UncommittedAccountIsInvisible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	built, err := f.service.Register(ctx, models.FormFromValues(validValues()), false)
	require.NoError(t, err)
	assert.False(t, built.IsPersisted())

	_, err = f.store.FindByUsername(ctx, "test_user")
	assert.Error(t, err)
	list, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	count, err := f.store.CountSuperusers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRegistration_BuildIsDeterministic(t *testing.T) {
	form := models.FormFromValues(validValues())
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	for _, count := range []int{0, 1, 5} {
		first := service.Build(form, "h", count, now)
		second := service.Build(form, "h", count, now)
		assert.Equal(t, first, second)
		assert.Equal(t, count == 0, first.IsSuperuser)
		assert.Equal(t, first.IsSuperuser, first.IsActive)
	}
}

func TestRegistration_DeferredPersistRechecksCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	built, err := f.service.Register(ctx, models.FormFromValues(validValues()), false)
	require.NoError(t, err)
	require.True(t, built.IsSuperuser)

	seedSuperuser(t, f.store)

	saved, err := f.service.Persist(ctx, built)
	require.NoError(t, err)
	assert.False(t, saved.IsSuperuser)
	assert.False(t, saved.IsActive)
	assert.Same(t, built, saved, "the deferred account carries the stored flags")
	assert.False(t, built.IsSuperuser)

	count, err := f.store.CountSuperusers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegistration_PersistTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	saved, err := f.service.Register(ctx, models.FormFromValues(validValues()), true)
	require.NoError(t, err)

	_, err = f.service.Persist(ctx, saved)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already persisted")
}

func TestRegistration_ConcurrentFirstRegistrations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	const goroutines = 25

	var wg sync.WaitGroup
	results := make([]*models.Account, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			values := validValues()
			values.Set("username", fmt.Sprintf("user_%d", n))
			values.Set("email", fmt.Sprintf("user%d@example.com", n))
			saved, err := f.service.Register(ctx, models.FormFromValues(values), true)
			assert.NoError(t, err)
			results[n] = saved
		}(i)
	}
	wg.Wait()

	superusers := 0
	for _, a := range results {
		require.NotNil(t, a)
		if a.IsSuperuser {
			superusers++
			assert.True(t, a.IsActive)
		} else {
			assert.False(t, a.IsActive)
		}
	}
	assert.Equal(t, 1, superusers)
}

func TestRegistration_FieldValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(url.Values)
		field   string
		message string
	}{
		{"missing username", func(v url.Values) { v.Del("username") }, "username", "This field is required."},
		{"username with spaces", func(v url.Values) { v.Set("username", "bad name") }, "username", validation.ErrInvalidUsername.Message},
		{"username too long", func(v url.Values) { v.Set("username", fmt.Sprintf("%0151d", 0)) }, "username", validation.ErrUsernameTooLong.Message},
		{"missing email", func(v url.Values) { v.Del("email") }, "email", "This field is required."},
		{"malformed email", func(v url.Values) { v.Set("email", "not-an-email") }, "email", validation.ErrInvalidEmail.Message},
		{"missing first password", func(v url.Values) { v.Del("password1") }, "password1", "This field is required."},
		{"mismatched passwords", func(v url.Values) { v.Set("password2", "other-pass") }, "password2", "The two password fields didn't match."},
		{"short password", func(v url.Values) {
			v.Set("password1", "short")
			v.Set("password2", "short")
		}, "password2", "This password is too short."},
		{"numeric password", func(v url.Values) {
			v.Set("password1", "1234567890")
			v.Set("password2", "1234567890")
		}, "password2", "This password is entirely numeric."},
		{"password over bcrypt limit", func(v url.Values) {
			long := strings.Repeat("a", 80)
			v.Set("password1", long)
			v.Set("password2", long)
		}, "password2", validation.ErrPasswordTooLong.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			values := validValues()
			tt.mutate(values)

			_, err := f.service.Register(ctx, models.FormFromValues(values), true)
			fieldErrs, ok := validation.AsErrors(err)
			require.True(t, ok, "expected field errors, got %v", err)
			assert.Contains(t, fieldErrs.Messages(tt.field), tt.message)

			list, err := f.service.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestRegistration_LongPasswordIsAFieldErrorWithBcrypt(t *testing.T) {
	ctx := context.Background()
	store := account.New()
	svc, err := service.New(store,
		captcha.NewGate(captcha.NewInMemoryStore()),
		secrets.NewBcryptHasher(bcrypt.MinCost),
		service.Settings{UseCaptcha: false, PasswordMinLength: 8},
		service.WithStoreTx(account.NewMemoryTx()),
	)
	require.NoError(t, err)

	values := validValues()
	values.Set("password1", strings.Repeat("p", 80))
	values.Set("password2", strings.Repeat("p", 80))
	_, err = svc.Register(ctx, models.FormFromValues(values), true)

	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	assert.True(t, fieldErrs.Is(validation.ErrPasswordTooLong))
	assert.True(t, fieldErrs.Has(models.FieldPassword2))

	t.Run("72 bytes is accepted", func(t *testing.T) {
		values := validValues()
		values.Set("password1", strings.Repeat("p", 72))
		values.Set("password2", strings.Repeat("p", 72))
		acc, err := svc.Register(ctx, models.FormFromValues(values), true)
		require.NoError(t, err)
		assert.True(t, acc.IsPersisted())
	})
}

func TestRegistration_CollectsEveryFieldBeforeDeciding(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.service.Register(context.Background(), models.FormFromValues(url.Values{}), true)
	fieldErrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	for _, field := range []string{"username", "email", "password1", "password2", "captcha"} {
		assert.True(t, fieldErrs.Has(field), "missing error for %s", field)
	}
}

func TestRegistration_Duplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.service.Register(ctx, models.FormFromValues(validValues()), true)
	require.NoError(t, err)

	t.Run("username differs only by case", func(t *testing.T) {
		values := validValues()
		values.Set("username", "TEST_USER")
		values.Set("email", "other@example.com")
		_, err := f.service.Register(ctx, models.FormFromValues(values), true)
		fieldErrs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.True(t, fieldErrs.Is(validation.ErrDuplicateUsername))
	})

	t.Run("email differs only by domain case", func(t *testing.T) {
		values := validValues()
		values.Set("username", "someone_else")
		values.Set("email", "new-tester@EXAMPLE.COM")
		_, err := f.service.Register(ctx, models.FormFromValues(values), true)
		fieldErrs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.True(t, fieldErrs.Is(validation.ErrDuplicateEmail))
	})

	t.Run("deferred account loses a race to the same username", func(t *testing.T) {
		values := validValues()
		values.Set("username", "racer")
		values.Set("email", "racer@example.com")
		built, err := f.service.Register(ctx, models.FormFromValues(values), false)
		require.NoError(t, err)

		values.Set("email", "racer2@example.com")
		_, err = f.service.Register(ctx, models.FormFromValues(values), true)
		require.NoError(t, err)

		_, err = f.service.Persist(ctx, built)
		fieldErrs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.True(t, fieldErrs.Is(validation.ErrDuplicateUsername))
		assert.False(t, built.IsPersisted())
	})
}

func TestRegistration_AuditTrail(t *testing.T) {
	f := newFixture(t, false)
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), now), "req-1")

	first, err := f.service.Register(ctx, models.FormFromValues(validValues()), true)
	require.NoError(t, err)
	assert.Equal(t, now, first.DateJoined)

	events, err := f.audit.ListByUser(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(audit.EventUserCreated), events[0].Action)
	assert.Equal(t, string(audit.EventSuperuserBootstrapped), events[1].Action)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)

	values := validValues()
	values.Set("username", "second")
	values.Set("email", "second@example.com")
	second, err := f.service.Register(ctx, models.FormFromValues(values), true)
	require.NoError(t, err)

	events, err = f.audit.ListByUser(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "inactive", events[0].Decision)

	activated, err := f.service.Activate(ctx, second.ID, "admin")
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.False(t, activated.IsSuperuser)

	events, err = f.audit.ListByUser(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(audit.EventUserActivated), events[1].Action)
	assert.Equal(t, "admin", events[1].ActorID)
}
