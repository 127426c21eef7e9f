package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/repositories"
	"github.com/desertthunder/nutrivision/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxRequestBody    = 1 << 20
	minPasswordLength = 6
)

// API serves the NutriVision backend endpoints under /api.
type API struct {
	users      repositories.UserStore
	meals      repositories.MealStore
	issuer     *TokenIssuer
	google     IdentityVerifier
	apple      IdentityVerifier
	database   string
	bcryptCost int
	logger     *log.Logger
}

// APIOpts configures an [API].
type APIOpts struct {
	Stores            repositories.Stores
	Issuer            *TokenIssuer
	DatabaseConnected bool
	BcryptCost        int // defaults to bcrypt.DefaultCost
	Logger            *log.Logger

	// Google and Apple verify federated ID tokens; nil leaves that sign-in unconfigured.
	Google IdentityVerifier
	Apple  IdentityVerifier
}

func NewAPI(opts APIOpts) *API {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	database := "disconnected"
	if opts.DatabaseConnected {
		database = "connected"
	}
	return &API{
		users:      opts.Stores.Users,
		meals:      opts.Stores.Meals,
		issuer:     opts.Issuer,
		google:     opts.Google,
		apple:      opts.Apple,
		database:   database,
		bcryptCost: cost,
		logger:     shared.WithLogger(logger, "component", "api"),
	}
}

// Mount registers every route on r. Router middleware must be added before.
func (a *API) Mount(r *BasicRouter) {
	auth := RequireAuth(a.issuer)

	r.Handle(http.MethodGet, "/api/health", http.HandlerFunc(a.health))
	r.Handle(http.MethodPost, "/api/auth/register", http.HandlerFunc(a.register))
	r.Handle(http.MethodPost, "/api/auth/login", http.HandlerFunc(a.login))
	r.Handle(http.MethodPost, "/api/auth/google", http.HandlerFunc(a.googleAuth))
	r.Handle(http.MethodPost, "/api/auth/apple", http.HandlerFunc(a.appleAuth))
	r.Handle(http.MethodPost, "/api/meals/add", auth(http.HandlerFunc(a.addMeal)))
	r.Handle(http.MethodGet, "/api/meals/history", auth(http.HandlerFunc(a.mealHistory)))
	r.Handle(http.MethodGet, "/api/meals/stats", auth(http.HandlerFunc(a.mealStats)))
	r.NotFound(http.HandlerFunc(NotFound))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{
		Status:   "OK",
		Message:  "NutriVision API is running",
		Database: a.database,
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeFailure(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.bcryptCost)
	if err != nil {
		a.fail(w, r, "hash password", err)
		return
	}

	acct := &models.Account{
		User:         models.User{Name: strings.TrimSpace(req.Name), Email: req.Email, Provider: models.ProviderLocal},
		PasswordHash: string(hash),
	}
	switch err := a.users.Create(r.Context(), acct); {
	case errors.Is(err, shared.ErrDuplicate):
		writeFailure(w, http.StatusConflict, "User already exists")
		return
	case errors.Is(err, shared.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), shared.ErrInvalidInput.Error()+": "))
		return
	case err != nil:
		a.fail(w, r, "create user", err)
		return
	}

	a.respondWithSession(w, r, http.StatusCreated, acct.User)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login answers bad credentials with 400 so clients never mistake them for an expired session.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	acct, err := a.users.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, shared.ErrNotFound) {
		writeFailure(w, http.StatusBadRequest, "Invalid email or password")
		return
	}
	if err != nil {
		a.fail(w, r, "find user", err)
		return
	}

	if acct.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid email or password")
		return
	}

	a.respondWithSession(w, r, http.StatusOK, acct.User)
}

// upsertFederated returns the account registered under the verified email, creating it on first sign-in.
func (a *API) upsertFederated(ctx context.Context, provider string, ident *Identity) (models.User, error) {
	acct, err := a.users.GetByEmail(ctx, ident.Email)
	if err == nil {
		return acct.User, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return models.User{}, err
	}

	name := ident.Name
	if name == "" {
		name, _, _ = strings.Cut(ident.Email, "@")
	}
	acct = &models.Account{User: models.User{Name: name, Email: ident.Email, Provider: provider}}

	err = a.users.Create(ctx, acct)
	if errors.Is(err, shared.ErrDuplicate) {
		existing, err := a.users.GetByEmail(ctx, ident.Email)
		if err != nil {
			return models.User{}, err
		}
		return existing.User, nil
	}
	if err != nil {
		return models.User{}, err
	}
	return acct.User, nil
}

func (a *API) respondWithSession(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, err := a.issuer.Issue(user)
	if err != nil {
		a.fail(w, r, "issue token", err)
		return
	}
	writeSuccess(w, status, models.AuthData{Token: token, User: user})
}

type mealRequest struct {
	Name      string          `json:"name"`
	Calories  float64         `json:"calories"`
	Details   json.RawMessage `json:"details"`
	CreatedAt *time.Time      `json:"createdAt"`
}

// addMeal stores the meal; without an explicit details object the whole body is kept as details.
func (a *API) addMeal(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var req mealRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	meal := &models.Meal{UserID: user.ID, Name: req.Name, Calories: req.Calories, Details: req.Details}
	if len(meal.Details) == 0 || string(meal.Details) == "null" {
		meal.Details = raw
	}
	if req.CreatedAt != nil {
		meal.CreatedAt = *req.CreatedAt
	}

	if err := a.meals.Add(r.Context(), meal); err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			writeFailure(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), shared.ErrInvalidInput.Error()+": "))
			return
		}
		a.fail(w, r, "add meal", err)
		return
	}

	writeSuccess(w, http.StatusCreated, meal)
}

func (a *API) mealHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeFailure(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	meals, err := a.meals.ListByUser(r.Context(), user.ID, limit)
	if err != nil {
		a.fail(w, r, "list meals", err)
		return
	}
	writeSuccess(w, http.StatusOK, meals)
}

func (a *API) mealStats(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	stats, err := a.meals.Stats(r.Context(), user.ID)
	if err != nil {
		a.fail(w, r, "meal stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	a.logger.Error(op, "path", r.URL.Path, "error", err)
	writeFailure(w, http.StatusInternalServerError, "Something went wrong")
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
}
