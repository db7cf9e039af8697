package application

import (
	"context"
	"errors"
	"sync"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
)

//ErrAccountsAreRegistered is returned when an administrator tries to create a user from the user list
var ErrAccountsAreRegistered = errors.New("user accounts are created through registration")

//UserAccounts is the subset of the user service the views depend on
type UserAccounts interface {
	List(ctx context.Context) (services.Collection[domain.User], error)
	Get(ctx context.Context, id int64) (domain.User, error)
	Update(ctx context.Context, id int64, patch domain.UserPatch) (domain.User, error)
	Delete(ctx context.Context, id int64) error
	UploadProfileImage(ctx context.Context, id int64, filename string, data []byte) (string, error)
}

//adminUsers lets the administrator list edit role, name and contact details of any account
type adminUsers struct {
	accounts UserAccounts
}

func (a adminUsers) Create(ctx context.Context, user domain.User) (domain.User, error) {
	return domain.User{}, ErrAccountsAreRegistered
}

func (a adminUsers) Update(ctx context.Context, id int64, user domain.User) (domain.User, error) {
	role := user.Role
	return a.accounts.Update(ctx, id, domain.UserPatch{
		FullName: &user.FullName,
		Email:    &user.Email,
		Phone:    &user.Phone,
		Address:  &user.Address,
		Role:     &role,
	})
}

//NewUserListView creates the administrator's list of accounts
func NewUserListView(accounts UserAccounts, log logging.Logger) *ListView[domain.User] {
	return NewListView[domain.User]("User", accounts, accounts, adminUsers{accounts: accounts}, log)
}

//ProfileSession is the part of the session the profile form updates
type ProfileSession interface {
	CurrentUser() (domain.User, bool)
	UpdateUser(patch domain.UserPatch) error
}

//ProfileForm edits the logged in user's own profile. Saved changes are pushed into the
//session so every view sees them without fetching the user again.
type ProfileForm struct {
	mu       sync.Mutex
	accounts UserAccounts
	session  ProfileSession
	log      logging.Logger

	state   FormState
	patch   domain.UserPatch
	errors  domain.ValidationErrors
	message string
}

//NewProfileForm creates an idle profile form
func NewProfileForm(accounts UserAccounts, session ProfileSession, log logging.Logger) *ProfileForm {
	return &ProfileForm{
		accounts: accounts,
		session:  session,
		log:      log,
		state:    Idle,
		errors:   domain.ValidationErrors{},
	}
}

//Edit changes the pending patch
func (p *ProfileForm) Edit(change func(*domain.UserPatch)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Submitting {
		return ErrBusy
	}

	change(&p.patch)
	p.state = Editing

	remaining, _ := domain.AsValidationErrors(p.patch.Validate())
	for field := range p.errors {
		if _, stillInvalid := remaining[field]; !stillInvalid {
			delete(p.errors, field)
		}
	}

	return nil
}

//Preview returns the current user with the pending patch applied
func (p *ProfileForm) Preview() (domain.User, bool) {
	user, ok := p.session.CurrentUser()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.patch.ApplyTo(user), ok
}

func (p *ProfileForm) begin() (domain.User, error) {
	if p.state == Submitting {
		return domain.User{}, ErrBusy
	}

	user, ok := p.session.CurrentUser()
	if !ok {
		p.message = UserMessage(services.ErrNoSession, "User")
		return domain.User{}, services.ErrNoSession
	}

	p.state = Submitting
	p.message = ""

	return user, nil
}

func (p *ProfileForm) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state = Editing
	p.message = UserMessage(err, "User")
	p.log.Warnf("Profile update failed: %s", err.Error())

	return err
}

//Submit sends the pending patch and merges the server's answer into the session
func (p *ProfileForm) Submit(ctx context.Context) (domain.User, error) {
	p.mu.Lock()
	if err := p.patch.Validate(); err != nil {
		p.state = Editing
		p.message = UserMessage(err, "User")
		if ve, ok := domain.AsValidationErrors(err); ok {
			p.errors = ve
		}
		p.mu.Unlock()
		return domain.User{}, ErrInvalid
	}

	user, err := p.begin()
	patch := p.patch
	p.mu.Unlock()

	if err != nil {
		return domain.User{}, err
	}

	saved, err := p.accounts.Update(ctx, user.ID, patch)
	if err != nil {
		return domain.User{}, p.fail(err)
	}

	if err = p.session.UpdateUser(patchFrom(saved, patch)); err != nil {
		return domain.User{}, p.fail(err)
	}

	p.mu.Lock()
	p.state = Idle
	p.patch = domain.UserPatch{}
	p.errors = domain.ValidationErrors{}
	p.mu.Unlock()

	current, _ := p.session.CurrentUser()
	return current, nil
}

//UploadImage checks and uploads a new profile image and stores its reference in the session
func (p *ProfileForm) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	p.mu.Lock()
	user, err := p.begin()
	p.mu.Unlock()

	if err != nil {
		return "", err
	}

	reference, err := p.accounts.UploadProfileImage(ctx, user.ID, filename, data)
	if err != nil {
		return "", p.fail(err)
	}

	if err = p.session.UpdateUser(domain.UserPatch{ProfileImage: &reference}); err != nil {
		return "", p.fail(err)
	}

	p.mu.Lock()
	p.state = Idle
	p.mu.Unlock()

	return reference, nil
}

//patchFrom prefers the values the server stored over the ones that were sent
func patchFrom(saved domain.User, sent domain.UserPatch) domain.UserPatch {
	if saved.ID == 0 {
		return sent
	}

	merged := domain.UserPatch{}
	pick := func(server string, client *string) *string {
		if server != "" {
			return &server
		}
		return client
	}

	merged.FullName = pick(saved.FullName, sent.FullName)
	merged.Email = pick(saved.Email, sent.Email)
	merged.Phone = pick(saved.Phone, sent.Phone)
	merged.Address = pick(saved.Address, sent.Address)
	merged.ProfileImage = pick(saved.ProfileImage, sent.ProfileImage)
	if saved.Role != "" {
		role := saved.Role
		merged.Role = &role
	} else {
		merged.Role = sent.Role
	}

	return merged
}

//State returns the form state
func (p *ProfileForm) State() FormState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

//Errors returns the per-field validation messages of the last submission
func (p *ProfileForm) Errors() domain.ValidationErrors {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := domain.ValidationErrors{}
	for field, message := range p.errors {
		result[field] = message
	}
	return result
}

//Message returns the message shown after a failed submission
func (p *ProfileForm) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}
