package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"golang.org/x/crypto/bcrypt"
)

const maxImageBytes = 5 << 20

type account struct {
	user  domain.User
	hash  []byte
	image []byte
}

//minimal is what the login endpoint returns, the client is expected to fetch the rest
func (a *account) minimal() domain.User {
	return domain.User{ID: a.user.ID, FullName: a.user.FullName, Email: a.user.Email, Role: a.user.Role}
}

//SeedUser creates an account directly, bypassing registration. role is "User" or "Admin".
func (s *Server) SeedUser(email, password, fullName, role string) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByEmail(email) != nil {
		return domain.User{}, fmt.Errorf("email %s is already registered", email)
	}

	return s.addAccount(domain.User{FullName: fullName, Email: email, Role: domain.Role(role), IsActive: true}, hash), nil
}

//SeedRecord stores v as a record of entity owned by owner and returns its identifier
func (s *Server) SeedRecord(entity string, owner int64, v interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[entity]
	if !ok {
		return 0, fmt.Errorf("unknown entity %s", entity)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	row := record{}
	if err = json.Unmarshal(raw, &row); err != nil {
		return 0, err
	}

	row["id"] = t.nextID
	row[t.ownerField()] = owner
	t.nextID++

	stored := roundTrip(row)
	t.rows[stored.id()] = stored

	return stored.id(), nil
}

func (s *Server) findByEmail(email string) *account {
	for _, a := range s.users {
		if strings.EqualFold(a.user.Email, email) {
			return a
		}
	}
	return nil
}

func (s *Server) addAccount(user domain.User, hash []byte) domain.User {
	now := s.now().UTC()

	user.ID = s.nextUserID
	user.CreatedAt = &now
	user.UpdatedAt = &now
	s.nextUserID++

	s.users[user.ID] = &account{user: user, hash: hash}
	return user
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	creds := domain.Credentials{}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	s.mu.Lock()
	a := s.findByEmail(creds.Email)
	s.mu.Unlock()

	if a == nil || bcrypt.CompareHashAndPassword(a.hash, []byte(creds.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.issueToken(a)
	if err != nil {
		s.log.Errorf("Failed to sign token: %s", err.Error())
		writeMessage(w, http.StatusInternalServerError, "Unable to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": a.minimal()})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Address  string `json:"address"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	errs := map[string][]string{}
	if strings.TrimSpace(body.FullName) == "" {
		errs["FullName"] = []string{"The FullName field is required."}
	}
	if !strings.Contains(body.Email, "@") {
		errs["Email"] = []string{"The Email field is not a valid e-mail address."}
	}
	if len(body.Password) < 8 {
		errs["Password"] = []string{"The Password must be at least 8 characters long."}
	}
	if len(errs) > 0 {
		writeValidationProblem(w, errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.hashCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Unable to store password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByEmail(body.Email) != nil {
		writeMessage(w, http.StatusConflict, "Email is already registered")
		return
	}

	user := s.addAccount(domain.User{
		FullName: strings.TrimSpace(body.FullName),
		Email:    strings.TrimSpace(body.Email),
		Phone:    body.Phone,
		Address:  body.Address,
		Role:     domain.RoleUser,
		IsActive: true,
	}, hash)

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r.Context()).isAdmin() {
		writeMessage(w, http.StatusForbidden, "Administrator role required")
		return
	}

	s.mu.Lock()
	users := make([]domain.User, 0, len(s.users))
	for _, a := range s.users {
		users = append(users, a.user)
	}
	s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": users, "total": len(users)})
}

//accountFor resolves the {id} of the request to an account the caller may see. The
//returned account must only be used while s.mu is held.
func (s *Server) accountFor(w http.ResponseWriter, r *http.Request) (*account, bool) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid id")
		return nil, false
	}

	who := callerFrom(r.Context())
	if who.id != id && !who.isAdmin() {
		writeMessage(w, http.StatusForbidden, "You can only access your own profile")
		return nil, false
	}

	a, found := s.users[id]
	if !found {
		writeMessage(w, http.StatusNotFound, "User not found")
		return nil, false
	}

	return a, true
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.accountFor(w, r); ok {
		writeJSON(w, http.StatusOK, a.user)
	}
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	patch := domain.UserPatch{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	if patch.Role != nil && !callerFrom(r.Context()).isAdmin() {
		writeMessage(w, http.StatusForbidden, "Only administrators can change roles")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accountFor(w, r)
	if !ok {
		return
	}

	now := s.now().UTC()
	a.user = patch.ApplyTo(a.user)
	a.user.UpdatedAt = &now

	writeJSON(w, http.StatusOK, a.user)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r.Context()).isAdmin() {
		writeMessage(w, http.StatusForbidden, "Administrator role required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accountFor(w, r)
	if !ok {
		return
	}
	delete(s.users, a.user.ID)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Expected a multipart file in field 'file'")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil || len(data) == 0 || len(data) > maxImageBytes {
		writeMessage(w, http.StatusBadRequest, "Image must be between 1 byte and 5 MB")
		return
	}

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeMessage(w, http.StatusUnsupportedMediaType, "Only images are accepted")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accountFor(w, r)
	if !ok {
		return
	}

	a.image = data
	a.user.ProfileImage = fmt.Sprintf("/images/users/%d", a.user.ID)

	writeJSON(w, http.StatusOK, map[string]string{"profileImage": a.user.ProfileImage})
}

//ProfileImage returns the image most recently uploaded for userID
func (s *Server) ProfileImage(userID int64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.users[userID]; ok {
		return a.image
	}
	return nil
}
