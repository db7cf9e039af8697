package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
)

//MaxProfileImageBytes is the largest profile image the client will try to upload
const MaxProfileImageBytes = 5 << 20

//AllowedImageTypes lists the MIME types accepted for profile images
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var (
	//ErrUnsupportedImage is returned before uploading a file that is not an allowed image type
	ErrUnsupportedImage = errors.New("unsupported image type")
	//ErrImageTooLarge is returned before uploading a file above MaxProfileImageBytes
	ErrImageTooLarge = errors.New("image is too large")
	//ErrEmptyImage is returned before uploading an empty file
	ErrEmptyImage = errors.New("image is empty")
)

//Uploader sends multipart files
type Uploader interface {
	Upload(ctx context.Context, path, field, filename, contentType string, data []byte, out interface{}) error
}

//LoginResult is what the backend answers to a successful login
type LoginResult struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

//AuthService performs the unauthenticated account calls and profile lookups
type AuthService struct {
	api API
}

//NewAuthService creates an AuthService
func NewAuthService(api API) *AuthService {
	return &AuthService{api: api}
}

//Login exchanges credentials for a token and a minimal user payload
func (a *AuthService) Login(ctx context.Context, creds domain.Credentials) (LoginResult, error) {
	var result LoginResult
	err := a.api.Post(ctx, "/"+UserPath+"/login", creds, &result)
	return result, err
}

//Register creates a new account with the User role
func (a *AuthService) Register(ctx context.Context, registration domain.Registration) (domain.User, error) {
	var user domain.User
	err := a.api.Post(ctx, "/"+UserPath+"/register", registration, &user)
	return user, err
}

//Profile fetches the full profile of a user
func (a *AuthService) Profile(ctx context.Context, userID int64) (domain.Profile, error) {
	var profile domain.Profile
	err := a.api.Get(ctx, userItemPath(userID), nil, &profile)
	return profile, err
}

//UserService manages user accounts
type UserService struct {
	api      API
	uploader Uploader
}

//NewUserService creates a UserService. The uploader is usually the same HTTP client as api.
func NewUserService(api API, uploader Uploader) *UserService {
	return &UserService{api: api, uploader: uploader}
}

func userItemPath(id int64) string {
	return "/" + UserPath + "/" + strconv.FormatInt(id, 10)
}

//List fetches every account. The backend only allows this for administrators.
func (s *UserService) List(ctx context.Context) (Collection[domain.User], error) {
	var raw json.RawMessage
	if err := s.api.Get(ctx, "/"+UserPath+"/All", nil, &raw); err != nil {
		return Collection[domain.User]{Items: []domain.User{}}, err
	}
	return DecodeCollection[domain.User](raw)
}

//Get fetches one account
func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := s.api.Get(ctx, userItemPath(id), nil, &user)
	return user, err
}

//Update applies a partial update and returns the server's copy of the user
func (s *UserService) Update(ctx context.Context, id int64, patch domain.UserPatch) (domain.User, error) {
	var user domain.User
	err := s.api.Put(ctx, userItemPath(id), patch, &user)
	return user, err
}

//Delete removes an account
func (s *UserService) Delete(ctx context.Context, id int64) error {
	return s.api.Delete(ctx, userItemPath(id), nil)
}

//CheckProfileImage verifies size and content type of an image before it is uploaded and
//returns the detected MIME type
func CheckProfileImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if len(data) > MaxProfileImageBytes {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, len(data), MaxProfileImageBytes)
	}

	contentType := http.DetectContentType(data)
	for _, allowed := range AllowedImageTypes {
		if contentType == allowed {
			return contentType, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
}

//UploadProfileImage validates and uploads a new profile image, returning its reference
func (s *UserService) UploadProfileImage(ctx context.Context, id int64, filename string, data []byte) (string, error) {
	contentType, err := CheckProfileImage(data)
	if err != nil {
		return "", err
	}

	var out struct {
		ProfileImage string `json:"profileImage"`
	}
	if err = s.uploader.Upload(ctx, userItemPath(id)+"/image", "file", filename, contentType, data, &out); err != nil {
		return "", err
	}

	return out.ProfileImage, nil
}
