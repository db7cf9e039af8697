package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
)

//State of the session
type State int

const (
	//Loading is the initial state, before the persisted session has been checked
	Loading State = iota
	//Authenticated means a token and a user are present
	Authenticated
	//Anonymous means nobody is logged in
	Anonymous
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "loading"
}

var (
	//ErrNotAuthenticated is returned by operations that need a logged in user
	ErrNotAuthenticated = errors.New("not logged in")
	//ErrMissingToken is returned when the login response carries no token
	ErrMissingToken = errors.New("login response did not contain a token")
)

//ProfileFetcher loads the full profile of a user
type ProfileFetcher interface {
	Profile(ctx context.Context, userID int64) (domain.Profile, error)
}

//Authenticator exchanges credentials for a token and can enrich the returned user
type Authenticator interface {
	ProfileFetcher
	Login(ctx context.Context, creds domain.Credentials) (services.LoginResult, error)
}

//Context is the single source of truth for who is logged in. It is shared by reference with
//every view and form, and only its own methods mutate it.
type Context struct {
	mu    sync.RWMutex
	store database.Store
	log   logging.Logger
	now   func() time.Time

	state State
	token string
	user  domain.User
}

//New creates a session in the Loading state backed by store
func New(store database.Store, log logging.Logger) *Context {
	return &Context{
		store: store,
		log:   log,
		now:   time.Now,
		state: Loading,
	}
}

//Bootstrap restores the persisted session. When a token and a cached user exist the session
//becomes Authenticated and the profile is refreshed best effort: a failing refresh keeps the
//cached user. Expired tokens are discarded.
func (c *Context) Bootstrap(ctx context.Context, profiles ProfileFetcher) error {
	token, found, err := c.store.Get(database.TokenKey)
	if err != nil {
		c.becomeAnonymous()
		return fmt.Errorf("failed to restore session: %w", err)
	}

	if !found || token == "" {
		c.becomeAnonymous()
		return nil
	}

	user, ok := c.loadCachedUser()
	if !ok {
		c.log.Warnf("Persisted token has no usable cached user, discarding session")
		return c.Logout()
	}

	if c.tokenExpired(token) {
		c.log.Infof("Persisted token for user %d has expired", user.ID)
		return c.Logout()
	}

	c.mu.Lock()
	c.token = token
	c.user = user
	c.state = Authenticated
	c.mu.Unlock()

	if profiles == nil {
		return nil
	}

	profile, err := profiles.Profile(ctx, user.ID)
	if err != nil {
		c.log.Warnf("Unable to refresh profile of user %d, using cached copy: %s", user.ID, err.Error())
		return nil
	}

	c.mergeProfile(profile)

	return nil
}

func (c *Context) loadCachedUser() (domain.User, bool) {
	raw, found, err := c.store.Get(database.UserKey)
	if err != nil || !found {
		return domain.User{}, false
	}

	user := domain.User{}
	if err = json.Unmarshal([]byte(raw), &user); err != nil || user.ID == 0 {
		return domain.User{}, false
	}

	return user, true
}

//tokenExpired reports whether token is a JWT whose exp claim lies in the past.
//Opaque tokens never expire from the client's point of view.
func (c *Context) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}

	return !claims.VerifyExpiresAt(c.now().Unix(), false)
}

//tokenUserID reads the user_id claim of a JWT without verifying its signature
func tokenUserID(token string) (int64, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return 0, false
	}

	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, false
	}

	return int64(id), true
}

//Login authenticates with the given credentials, persists token and user and becomes
//Authenticated. When the response lacks a profile image the full profile is fetched
//best effort.
func (c *Context) Login(ctx context.Context, auth Authenticator, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	result, err := auth.Login(ctx, creds)
	if err != nil {
		return err
	}

	if result.Token == "" {
		return ErrMissingToken
	}

	// a user without id would be rejected by the next Bootstrap
	if result.User.ID == 0 {
		if id, ok := tokenUserID(result.Token); ok {
			result.User.ID = id
		}
	}

	if err = c.persist(result.Token, result.User); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = result.Token
	c.user = result.User
	c.state = Authenticated
	c.mu.Unlock()

	c.log.Infof("User %d logged in", result.User.ID)

	if result.User.ProfileImage != "" || result.User.ID == 0 {
		return nil
	}

	profile, err := auth.Profile(ctx, result.User.ID)
	if err != nil {
		c.log.Debugf("Profile enrichment after login failed: %s", err.Error())
		return nil
	}

	c.mergeProfile(profile)

	return nil
}

//Logout forgets token and user both in memory and in the store
func (c *Context) Logout() error {
	c.becomeAnonymous()

	if err := c.store.Delete(database.TokenKey, database.UserKey); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}

	return nil
}

//UpdateUser merges patch into the current user and persists the result, so that every
//component sees the change without fetching it again
func (c *Context) UpdateUser(patch domain.UserPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Authenticated {
		return ErrNotAuthenticated
	}

	updated := patch.ApplyTo(c.user)
	if err := c.persistUser(updated); err != nil {
		return err
	}

	c.user = updated

	return nil
}

func (c *Context) mergeProfile(profile domain.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Authenticated || profile.ID != c.user.ID {
		return
	}

	merged := mergeUsers(c.user, profile)
	if err := c.persistUser(merged); err != nil {
		c.log.Warnf("Unable to cache refreshed profile: %s", err.Error())
	}

	c.user = merged
}

//mergeUsers overlays the non-empty fields of fresh onto cached
func mergeUsers(cached domain.User, profile domain.Profile) domain.User {
	merged := cached
	fresh := profile.User

	for _, f := range []struct {
		dst *string
		src string
	}{
		{&merged.FullName, fresh.FullName},
		{&merged.Email, fresh.Email},
		{&merged.Phone, fresh.Phone},
		{&merged.Address, fresh.Address},
		{&merged.ProfileImage, fresh.ProfileImage},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}

	if fresh.Role != "" {
		merged.Role = fresh.Role
	}
	if fresh.CreatedAt != nil {
		merged.CreatedAt = fresh.CreatedAt
	}
	if fresh.UpdatedAt != nil {
		merged.UpdatedAt = fresh.UpdatedAt
	}
	if profile.Active != nil {
		merged.IsActive = *profile.Active
	}

	return merged
}

func (c *Context) persist(token string, user domain.User) error {
	if err := c.store.Set(database.TokenKey, token); err != nil {
		return err
	}
	return c.persistUser(user)
}

func (c *Context) persistUser(user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return c.store.Set(database.UserKey, string(raw))
}

func (c *Context) becomeAnonymous() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.user = domain.User{}
	c.state = Anonymous
}

//State returns the current session state
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

//Token returns the bearer token, or an empty string for anonymous sessions
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

//CurrentUser returns the logged in user
func (c *Context) CurrentUser() (domain.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, c.state == Authenticated
}

//UserID returns the identifier of the logged in user
func (c *Context) UserID() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.ID, c.state == Authenticated && c.user.ID != 0
}

//IsAdmin reports whether the logged in user is an administrator
func (c *Context) IsAdmin() bool {
	user, ok := c.CurrentUser()
	return ok && user.IsAdmin()
}

//Require returns ErrNotAuthenticated unless somebody is logged in
func (c *Context) Require() error {
	if c.State() != Authenticated {
		return ErrNotAuthenticated
	}
	return nil
}
