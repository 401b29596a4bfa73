package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/civictickets/internal/auth"
	httpserver "github.com/example/civictickets/internal/http"
	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/mq"
	"github.com/example/civictickets/internal/repository"
	"github.com/example/civictickets/internal/service"
	"github.com/example/civictickets/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	t      *testing.T
	server *httpserver.Server
	users  *repository.MemoryUserRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	users := repository.NewMemoryUserRepository()
	tickets := repository.NewMemoryTicketRepository()
	events := repository.NewMemoryEventRepository()
	tokens := auth.NewTokenManager("test-secret", "civictickets-test", time.Hour)
	w := worker.NewEventWorker(nil, events, zerolog.Nop())

	ticketSvc := service.NewTicketService(tickets, events, users, mq.NewLocalPublisher(w.Handle), clockwork.NewRealClock(), zerolog.Nop())
	authSvc := service.NewAuthService(users, tokens, zerolog.Nop())
	return &apiFixture{
		t:      t,
		server: httpserver.NewServer(ticketSvc, authSvc, zerolog.Nop(), httpserver.Options{CORSOrigins: []string{"http://localhost:5173"}}),
		users:  users,
	}
}

func (f *apiFixture) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type ticketEnvelope struct {
	Ticket models.Ticket `json:"ticket"`
}

type ticketsEnvelope struct {
	Tickets []models.Ticket `json:"tickets"`
}

type errorEnvelope struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields"`
}

func (f *apiFixture) register(name, email, document string, docType models.DocumentType) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":             name,
		"email":            email,
		"password":         "pa55word",
		"confirm_password": "pa55word",
		"document":         document,
		"document_type":    string(docType),
	}, "")
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (f *apiFixture) login(email string) string {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "pa55word"}, "")
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Token string           `json:"token"`
		User  models.Principal `json:"user"`
	}](f.t, rec)
	require.NotEmpty(f.t, body.Token)
	return body.Token
}

func (f *apiFixture) admin() string {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pa55word"), bcrypt.MinCost)
	require.NoError(f.t, err)
	require.NoError(f.t, f.users.Create(context.Background(), &models.Principal{
		ID: uuid.New(), Name: "Root", Email: "root@example.com",
		DocumentType: models.DocumentIndividual, Role: models.RoleAdmin, PasswordHash: string(hash),
	}))
	return f.login("root@example.com")
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)
	f.register("Ana", "ana@example.com", "12345678900", models.DocumentIndividual)

	rec := f.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorEnvelope](t, rec)
	assert.NotEmpty(t, body.Fields)

	rec = f.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := f.login("ana@example.com")
	assert.NotEmpty(t, token)
}

func TestTicketsRequireAuthentication(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/tickets", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/tickets", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.register("Ana", "ana@example.com", "12345678900", models.DocumentIndividual)
	f.register("Prefeitura", "pref@example.com", "12345678000199", models.DocumentOrganization)
	f.register("Rival", "rival@example.com", "98765432000199", models.DocumentOrganization)
	citizen, org, rival := f.login("ana@example.com"), f.login("pref@example.com"), f.login("rival@example.com")

	rec := f.do(http.MethodPost, "/api/tickets", map[string]string{"title": "", "description": "", "address": "x"}, citizen)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[errorEnvelope](t, rec).Fields, 2)

	rec = f.do(http.MethodPost, "/api/tickets", map[string]string{"title": "Pothole", "description": "Deep", "address": "Flower St 123"}, org)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/tickets", map[string]string{"title": "Pothole", "description": "Deep", "address": "Flower St 123"}, citizen)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ticketEnvelope](t, rec).Ticket
	assert.Equal(t, models.TicketStatusOpen, created.Status)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	base := "/api/tickets/" + created.ID.String()

	rec = f.do(http.MethodGet, "/api/tickets/available", nil, org)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ticketsEnvelope](t, rec).Tickets, 1)

	rec = f.do(http.MethodPatch, base+"/assume", nil, org)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.TicketStatusInProgress, decode[ticketEnvelope](t, rec).Ticket.Status)

	rec = f.do(http.MethodPatch, base+"/assign", nil, rival)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPatch, base+"/complete", nil, rival)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/api/tickets/assigned?status="+url.QueryEscape("em andamento"), nil, org)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ticketsEnvelope](t, rec).Tickets, 1)

	rec = f.do(http.MethodPatch, base+"/complete", nil, org)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPatch, base+"/feedback", map[string]string{"feedback": "..."}, org)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPatch, base+"/feedback", map[string]string{"feedback": ""}, citizen)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPatch, base+"/feedback", map[string]string{"feedback": "fixed well"}, citizen)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, base, nil, citizen)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decode[ticketEnvelope](t, rec).Ticket
	assert.Equal(t, models.TicketStatusResolved, final.Status)
	assert.NotNil(t, final.AssignedCompanyID)
	assert.Equal(t, "fixed well", final.Feedback)

	rec = f.do(http.MethodGet, base+"/history", nil, citizen)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Events []models.TicketEvent `json:"events"`
	}](t, rec)
	assert.Len(t, history.Events, 4)

	rec = f.do(http.MethodGet, "/api/tickets?status=resolvido", nil, citizen)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ticketsEnvelope](t, rec).Tickets, 1)
}

func TestTicketErrors(t *testing.T) {
	f := newAPIFixture(t)
	f.register("Ana", "ana@example.com", "12345678900", models.DocumentIndividual)
	citizen := f.login("ana@example.com")

	rec := f.do(http.MethodGet, "/api/tickets/not-a-uuid", nil, citizen)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/tickets/"+uuid.NewString(), nil, citizen)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/tickets?status=closed", nil, citizen)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/tickets?status=open", nil, citizen)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "only the stored literals are accepted")

	rec = f.do(http.MethodGet, "/api/tickets", nil, citizen)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tickets":[]}`, rec.Body.String())
}

func TestCreateFromForm(t *testing.T) {
	f := newAPIFixture(t)
	f.register("Ana", "ana@example.com", "12345678900", models.DocumentIndividual)
	citizen := f.login("ana@example.com")

	form := url.Values{}
	form.Set("title", "Broken lamp")
	form.Set("description", "Dark street")
	form.Set("address", "Main St 10")
	form.Set("image_url", "https://img.example.com/lamp.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+citizen)
	rec := httptest.NewRecorder()
	f.server.Engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode[ticketEnvelope](t, rec).Ticket
	require.NotNil(t, ticket.ImageURL)
	assert.Equal(t, "https://img.example.com/lamp.jpg", *ticket.ImageURL)
}

func TestStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.register("Ana", "ana@example.com", "12345678900", models.DocumentIndividual)
	f.register("Prefeitura", "pref@example.com", "12345678000199", models.DocumentOrganization)
	citizen, org, admin := f.login("ana@example.com"), f.login("pref@example.com"), f.admin()
	orgUser, err := f.users.FindByEmail(context.Background(), "pref@example.com")
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/tickets", map[string]string{"title": "Leak", "description": "Water", "address": "Ipê St 78"}, citizen)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/api/tickets/" + decode[ticketEnvelope](t, rec).Ticket.ID.String()

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "em andamento"}, org)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "aberto"}, org)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "resolvido"}, citizen)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "aberto"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	reopened := decode[ticketEnvelope](t, rec).Ticket
	assert.Nil(t, reopened.AssignedCompanyID)

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "resolvido"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "resolvido", "assigned_company_id": orgUser.ID.String()}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.TicketStatusResolved, decode[ticketEnvelope](t, rec).Ticket.Status)

	rec = f.do(http.MethodPatch, base+"/status", map[string]string{"status": "fechado"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tickets", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	f.server.Engine.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
