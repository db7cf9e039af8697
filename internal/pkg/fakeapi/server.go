package fakeapi

import (
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/golang-jwt/jwt"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/rs/cors"
	"golang.org/x/crypto/bcrypt"
)

//Server is an in-memory stand-in for the farm management backend. It implements the REST
//contract the dashboard relies on and records every request it receives.
type Server struct {
	mu       sync.Mutex
	log      logging.Logger
	secret   []byte
	hashCost int
	tokenTTL time.Duration
	now      func() time.Time

	users      map[int64]*account
	nextUserID int64
	tables     map[string]*table

	requests map[string]int
	failures map[string]injectedFailure
}

type injectedFailure struct {
	status int
	body   string
}

//Option customizes a Server
type Option func(*Server)

//WithHashCost sets the bcrypt cost used for stored passwords. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Server) {
		s.hashCost = cost
	}
}

//WithTokenTTL sets the lifetime of issued tokens
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

//New creates an empty backend signing its tokens with secret
func New(secret []byte, log logging.Logger, opts ...Option) *Server {
	s := &Server{
		log:        log,
		secret:     secret,
		hashCost:   bcrypt.DefaultCost,
		tokenTTL:   24 * time.Hour,
		now:        time.Now,
		users:      map[int64]*account{},
		nextUserID: 1,
		tables:     map[string]*table{},
		requests:   map[string]int{},
		failures:   map[string]injectedFailure{},
	}

	for _, entity := range entityNames {
		s.tables[entity] = newTable(entity)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

//Handler returns the routes of the backend mounted under /api
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	compressor := middleware.NewCompressor(flate.DefaultCompression, "application/json")
	router.Use(compressor.Handler)
	router.Use(s.record)

	router.Route("/api", func(r chi.Router) {
		r.Post("/User/login", s.login)
		r.Post("/User/register", s.register)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/User/All", s.listUsers)
			r.Get("/User/{id}", s.getUser)
			r.Put("/User/{id}", s.updateUser)
			r.Delete("/User/{id}", s.deleteUser)
			r.Post("/User/{id}/image", s.uploadImage)

			for _, entity := range entityNames {
				t := s.tables[entity]
				r.Get("/"+entity+"/All", s.listAll(t))
				r.Get("/"+entity+"/Filter", s.filter(t))
				r.Get("/"+entity+"/dropdown", s.dropdown(t))
				r.Get("/"+entity+"/{id}", s.getRecord(t))
				r.Post("/"+entity, s.createRecord(t))
				r.Put("/"+entity+"/{id}", s.updateRecord(t))
				r.Delete("/"+entity+"/{id}", s.deleteRecord(t))
			}
		})
	})

	return router
}

//CreateRouterAndStartServing seeds the administrator account and serves the backend on the
//configured port
func CreateRouterAndStartServing(log logging.Logger, cfg config.AppConfig) {
	server := New([]byte(cfg.StubSecret), log)

	if _, err := server.SeedUser(cfg.StubAdminEmail, cfg.StubAdminPassword, "Administrator", "Admin"); err != nil {
		log.Fatalf("Failed to seed administrator: %s", err.Error())
	}

	log.Infof("Starting farmdash stub backend on port %s.\n", cfg.StubPort)
	log.Fatal(http.ListenAndServe(":"+cfg.StubPort, middleware.Logger(server.Handler())))
}

func requestKey(method, path string) string {
	return method + " " + path
}

//Requests returns how many requests were received for method and path, e.g. ("DELETE", "/api/Farm/3")
func (s *Server) Requests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[requestKey(method, path)]
}

//RequestsFor sums the requests of method whose path starts with prefix
func (s *Server) RequestsFor(method, prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for key, count := range s.requests {
		if strings.HasPrefix(key, requestKey(method, prefix)) {
			total += count
		}
	}
	return total
}

//TotalRequests returns the number of requests received so far
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, count := range s.requests {
		total += count
	}
	return total
}

//FailNext makes the next request for method and path answer with status and body
//instead of being handled
func (s *Server) FailNext(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[requestKey(method, path)] = injectedFailure{status: status, body: body}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := requestKey(r.Method, r.URL.Path)

		s.mu.Lock()
		s.requests[key]++
		failure, failing := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failure.status)
			w.Write([]byte(failure.body))
			return
		}

		next.ServeHTTP(w, r)
	})
}

type contextKey string

const callerKey contextKey = "caller"

type caller struct {
	id   int64
	role string
}

func (c caller) isAdmin() bool {
	return c.role == "Admin"
}

func callerFrom(ctx context.Context) caller {
	c, _ := ctx.Value(callerKey).(caller)
	return c
}

func (s *Server) issueToken(a *account) (string, error) {
	claims := jwt.MapClaims{
		"user_id": a.user.ID,
		"role":    string(a.user.Role),
		"iat":     s.now().Unix(),
		"exp":     s.now().Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeMessage(w, http.StatusUnauthorized, "Authorization token is missing")
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		claims, _ := token.Claims.(jwt.MapClaims)
		userID, _ := claims["user_id"].(float64)

		s.mu.Lock()
		a, found := s.users[int64(userID)]
		var who caller
		if found {
			who = caller{id: a.user.ID, role: string(a.user.Role)}
		}
		s.mu.Unlock()

		if !found {
			writeMessage(w, http.StatusUnauthorized, "Unknown user")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, who)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeValidationProblem(w http.ResponseWriter, errs map[string][]string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"title":  "One or more validation errors occurred.",
		"status": http.StatusBadRequest,
		"errors": errs,
	})
}
