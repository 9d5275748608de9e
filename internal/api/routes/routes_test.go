package routes_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"polls-service/internal/api/middleware"
	"polls-service/internal/api/routes"
	"polls-service/internal/config"
	"polls-service/internal/models"
	"polls-service/internal/services"
	"polls-service/internal/testutil"
	"polls-service/internal/websocket"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testApp struct {
	engine *gin.Engine
	db     *gorm.DB
	mr     *miniredis.Miniredis
}

func newTestApp(t *testing.T, chat http.HandlerFunc) *testApp {
	t.Helper()

	cfg := testutil.TestConfig()
	db := testutil.SetupTestDB(t)
	mr, redisService := testutil.SetupTestRedis(t)

	hub := websocket.NewHub(redisService)
	go hub.Run()
	t.Cleanup(hub.Stop)

	deps := routes.Deps{
		Config:       cfg,
		DB:           db,
		RedisService: redisService,
		Hub:          hub,
	}
	if chat != nil {
		upstream := httptest.NewServer(chat)
		t.Cleanup(upstream.Close)
		deps.ChatService = services.NewChatServiceWithClient(config.ChatConfig{
			Endpoint: upstream.URL,
			APIKey:   "hf_test",
			Timeout:  5 * time.Second,
		}, upstream.Client())
	}

	router, err := routes.NewRouter(deps)
	require.NoError(t, err)
	router.SetupRoutes()

	return &testApp{engine: router.GetEngine(), db: db, mr: mr}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) get(path string, user *models.User) *httptest.ResponseRecorder {
	var cookie *http.Cookie
	if user != nil {
		cookie = authCookie(user)
	}
	return a.do(testutil.MakeFormRequest(http.MethodGet, path, nil, cookie))
}

func (a *testApp) post(t *testing.T, path string, user *models.User, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var cookie *http.Cookie
	if user != nil {
		cookie = testutil.AuthCookie(t, user)
	}
	if form == nil {
		form = url.Values{}
	}
	return a.do(testutil.MakeFormRequest(http.MethodPost, path, form, cookie))
}

func authCookie(user *models.User) *http.Cookie {
	token, err := services.GenerateToken(testutil.TestJWTSecret, time.Hour, user)
	if err != nil {
		panic(err)
	}
	return &http.Cookie{Name: middleware.AccessTokenCookie, Value: token}
}

func reloadPoll(t *testing.T, db *gorm.DB, id uint) (*models.Poll, bool) {
	t.Helper()
	var poll models.Poll
	err := db.Preload("Choices").First(&poll, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	require.NoError(t, err)
	return &poll, true
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	w := app.get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPagesRequireLogin(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{"/polls/", "/polls/mine", "/polls/dashboard", "/polls/add", "/chat"} {
		t.Run(path, func(t *testing.T) {
			w := app.get(path, nil)
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/accounts/login?next="+url.QueryEscape(path), w.Header().Get("Location"))
		})
	}

	w := app.post(t, "/polls/1/vote", nil, url.Values{"choice": {"1"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/accounts/login"))
}

func TestLoginForm(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateTestUser(t, app.db, "alice")

	w := app.post(t, "/accounts/login", nil, url.Values{
		"email":    {user.Email},
		"password": {testutil.TestPassword},
		"next":     {"/polls/mine"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/polls/mine", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "access_token=")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "HttpOnly")

	w = app.post(t, "/accounts/login", nil, url.Values{
		"email":    {user.Email},
		"password": {testutil.TestPassword},
		"next":     {"https://evil.example.com/"},
	})
	assert.Equal(t, "/polls/", w.Header().Get("Location"))

	w = app.post(t, "/accounts/login", nil, url.Values{
		"email":    {user.Email},
		"password": {"wrong-password"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password.")
}

func TestRegisterForm(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.post(t, "/accounts/register", nil, url.Values{
		"username": {"newbie"},
		"email":    {"newbie@example.com"},
		"password": {"secret123"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/polls/", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "access_token=")

	w = app.post(t, "/accounts/register", nil, url.Values{
		"username": {"newbie"},
		"email":    {"newbie@example.com"},
		"password": {"secret123"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.post(t, "/accounts/register", nil, url.Values{
		"username": {"x"},
		"email":    {"not-an-email"},
		"password": {"1"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Enter a valid email address.")
}

func TestAPIAuth(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"username":"apiuser","email":"api@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	w := app.do(req)
	assert.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"api@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	w = app.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "apiuser", resp.User.Username)
}

func TestPollList(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateTestUser(t, app.db, "reader")
	testutil.CreateTestPoll(t, app.db, user, "Favourite fruit?", "apple", "pear")
	testutil.CreateTestPoll(t, app.db, user, "Best season?", "summer", "winter")

	w := app.get("/polls/", user)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Favourite fruit?")
	assert.Contains(t, w.Body.String(), "Best season?")

	w = app.get("/polls/?search=FRUIT", user)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Favourite fruit?")
	assert.NotContains(t, w.Body.String(), "Best season?")

	for _, page := range []string{"abc", "0", "999"} {
		w = app.get("/polls/?page="+page, user)
		assert.Equal(t, http.StatusOK, w.Code, "page=%s", page)
	}
}

func TestAddPoll(t *testing.T) {
	app := newTestApp(t, nil)
	author := testutil.CreateTestUser(t, app.db, "author", models.PermAddPoll)
	plain := testutil.CreateTestUser(t, app.db, "plain")

	t.Run("creates poll with two choices", func(t *testing.T) {
		w := app.post(t, "/polls/add", author, url.Values{
			"text":    {"Vim or Emacs?"},
			"choice1": {"Vim"},
			"choice2": {"Emacs"},
		})
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/polls/", w.Header().Get("Location"))

		var poll models.Poll
		require.NoError(t, app.db.Preload("Choices").Where("text = ?", "Vim or Emacs?").First(&poll).Error)
		assert.Equal(t, author.ID, poll.OwnerID)
		assert.True(t, poll.Active)
		assert.Len(t, poll.Choices, 2)

		// the success flash shows on the next page
		w = app.get("/polls/", author)
		assert.Contains(t, w.Body.String(), "Poll added successfully!")
	})

	t.Run("missing permission", func(t *testing.T) {
		w := app.get("/polls/add", plain)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "You don't have permission to add a poll.", w.Body.String())

		w = app.post(t, "/polls/add", plain, url.Values{
			"text":    {"Sneaky?"},
			"choice1": {"a"},
			"choice2": {"b"},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "You don't have permission to add a poll.", w.Body.String())
	})

	t.Run("blank choice", func(t *testing.T) {
		w := app.post(t, "/polls/add", author, url.Values{
			"text":    {"Half done?"},
			"choice1": {"yes"},
			"choice2": {"   "},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Choice 2: This field is required.")

		var count int64
		app.db.Model(&models.Poll{}).Where("text = ?", "Half done?").Count(&count)
		assert.Zero(t, count)
	})
}

func TestNonOwnerIsRedirected(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateTestUser(t, app.db, "owner")
	intruder := testutil.CreateTestUser(t, app.db, "intruder")
	poll := testutil.CreateTestPoll(t, app.db, owner, "Private?", "a", "b")

	requests := []struct {
		name string
		do   func() *httptest.ResponseRecorder
	}{
		{"edit page", func() *httptest.ResponseRecorder { return app.get(testutil.PollPath(poll.ID, "edit"), intruder) }},
		{"edit", func() *httptest.ResponseRecorder {
			return app.post(t, testutil.PollPath(poll.ID, "edit"), intruder, url.Values{"text": {"Hijacked"}})
		}},
		{"delete", func() *httptest.ResponseRecorder {
			return app.post(t, testutil.PollPath(poll.ID, "delete"), intruder, nil)
		}},
		{"end", func() *httptest.ResponseRecorder {
			return app.post(t, testutil.PollPath(poll.ID, "end"), intruder, nil)
		}},
		{"add choice", func() *httptest.ResponseRecorder {
			return app.post(t, testutil.PollPath(poll.ID, "choices", "add"), intruder, url.Values{"choice_text": {"c"}})
		}},
		{"edit choice", func() *httptest.ResponseRecorder {
			return app.post(t, fmt.Sprintf("/choices/%d/edit", poll.Choices[0].ID), intruder, url.Values{"choice_text": {"z"}})
		}},
		{"delete choice", func() *httptest.ResponseRecorder {
			return app.post(t, fmt.Sprintf("/choices/%d/delete", poll.Choices[0].ID), intruder, nil)
		}},
	}

	for _, tt := range requests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.do()
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/polls/", w.Header().Get("Location"))
		})
	}

	loaded, ok := reloadPoll(t, app.db, poll.ID)
	require.True(t, ok)
	assert.Equal(t, "Private?", loaded.Text)
	assert.True(t, loaded.Active)
	require.Len(t, loaded.Choices, 2)
	assert.Equal(t, "a", loaded.Choices[0].ChoiceText)
}

func TestOwnerManagesPoll(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateTestUser(t, app.db, "owner")
	poll := testutil.CreateTestPoll(t, app.db, owner, "Draft?", "a", "b")

	w := app.get(testutil.PollPath(poll.ID, "edit"), owner)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.post(t, testutil.PollPath(poll.ID, "edit"), owner, url.Values{"text": {"Final?"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = app.post(t, testutil.PollPath(poll.ID, "choices", "add"), owner, url.Values{"choice_text": {"c"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, testutil.PollPath(poll.ID, "edit"), w.Header().Get("Location"))

	w = app.post(t, fmt.Sprintf("/choices/%d/edit", poll.Choices[0].ID), owner, url.Values{"choice_text": {"alpha"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)

	w = app.post(t, fmt.Sprintf("/choices/%d/delete", poll.Choices[1].ID), owner, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	loaded, ok := reloadPoll(t, app.db, poll.ID)
	require.True(t, ok)
	assert.Equal(t, "Final?", loaded.Text)
	texts := make([]string, 0, len(loaded.Choices))
	for _, ch := range loaded.Choices {
		texts = append(texts, ch.ChoiceText)
	}
	assert.ElementsMatch(t, []string{"alpha", "c"}, texts)

	w = app.post(t, testutil.PollPath(poll.ID, "end"), owner, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This poll has ended.")

	w = app.post(t, testutil.PollPath(poll.ID, "delete"), owner, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	_, ok = reloadPoll(t, app.db, poll.ID)
	assert.False(t, ok)
}

func TestVoting(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateTestUser(t, app.db, "owner")
	voter := testutil.CreateTestUser(t, app.db, "voter")
	poll := testutil.CreateTestPoll(t, app.db, owner, "Cake or pie?", "Cake", "Pie")
	votePath := testutil.PollPath(poll.ID, "vote")

	w := app.post(t, votePath, voter, url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, testutil.PollPath(poll.ID), w.Header().Get("Location"))
	assert.Contains(t, app.get(testutil.PollPath(poll.ID), voter).Body.String(), "No choice selected!")

	w = app.post(t, votePath, voter, url.Values{"choice": {"nonsense"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, app.get(testutil.PollPath(poll.ID), voter).Body.String(), "Invalid choice selected!")

	w = app.post(t, votePath, voter, url.Values{"choice": {fmt.Sprint(poll.Choices[0].ID)}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<strong id="total">1</strong>`)

	w = app.post(t, votePath, voter, url.Values{"choice": {fmt.Sprint(poll.Choices[1].ID)}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, app.get(testutil.PollPath(poll.ID), voter).Body.String(), "You have already voted!")
	assert.EqualValues(t, 1, testutil.CountVotes(t, app.db, poll.ID))

	// flashes are shown once
	assert.NotContains(t, app.get(testutil.PollPath(poll.ID), voter).Body.String(), "You have already voted!")
}

func TestVotingOnEndedPoll(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateTestUser(t, app.db, "owner")
	voter := testutil.CreateTestUser(t, app.db, "voter")
	poll := testutil.CreateTestPoll(t, app.db, owner, "Closed?", "yes", "no")
	testutil.EndTestPoll(t, app.db, poll)

	w := app.post(t, testutil.PollPath(poll.ID, "vote"), voter, url.Values{"choice": {fmt.Sprint(poll.Choices[0].ID)}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Zero(t, testutil.CountVotes(t, app.db, poll.ID))

	// an ended poll's detail page shows its results
	w = app.get(testutil.PollPath(poll.ID), voter)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This poll has ended.")
	assert.Contains(t, w.Body.String(), `id="total"`)
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateTestUser(t, app.db, "user")

	for _, path := range []string{"/polls/999", "/polls/abc", "/polls/999/results", "/nowhere"} {
		t.Run(path, func(t *testing.T) {
			w := app.get(path, user)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}

	w := app.post(t, "/polls/999/vote", user, url.Values{"choice": {"1"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.get("/polls/999/edit", user)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardAndMine(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateTestUser(t, app.db, "owner")
	other := testutil.CreateTestUser(t, app.db, "other")
	testutil.CreateTestPoll(t, app.db, owner, "Owner's poll", "a", "b")
	testutil.CreateTestPoll(t, app.db, other, "Other's poll", "a", "b")

	w := app.get("/polls/dashboard", owner)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Owner&#39;s poll")
	assert.Contains(t, w.Body.String(), "Other&#39;s poll")

	w = app.get("/polls/mine", owner)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Owner&#39;s poll")
	assert.NotContains(t, w.Body.String(), "Other&#39;s poll")
}

func TestChatMessage(t *testing.T) {
	var reply string
	var status int
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(reply))
	})
	user := testutil.CreateTestUser(t, app.db, "chatter")

	send := func(body string, withUser bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if withUser {
			req.AddCookie(authCookie(user))
		}
		return app.do(req)
	}

	tests := []struct {
		name       string
		upstream   int
		upstreamRe string
		body       string
		wantCode   int
		wantBody   string
	}{
		{"reply", http.StatusOK, `[{"generated_text":"Hi there"}]`, `{"message":"Hello"}`, http.StatusOK, `{"reply":"Hi there"}`},
		{"empty reply", http.StatusOK, `[]`, `{"message":"Hello"}`, http.StatusOK, `{"reply":"No response received."}`},
		{"missing question", http.StatusOK, `[]`, `{"message":""}`, http.StatusBadRequest, `{"error":"Please provide a question."}`},
		{"malformed body", http.StatusOK, `[]`, `{"message":`, http.StatusBadRequest, `{"error":"Invalid request body."}`},
		{"upstream error", http.StatusServiceUnavailable, `{"error":"Model is loading"}`, `{"message":"Hello"}`, http.StatusInternalServerError, `{"error":"Model is loading"}`},
		{"upstream unknown", http.StatusBadRequest, `{}`, `{"message":"Hello"}`, http.StatusInternalServerError, `{"error":"Unknown error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reply = tt.upstream, tt.upstreamRe
			w := send(tt.body, true)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}

	t.Run("undecodable upstream", func(t *testing.T) {
		status, reply = http.StatusOK, `not json`
		w := send(`{"message":"Hello"}`, true)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Server Error: ")
	})

	t.Run("anonymous", func(t *testing.T) {
		w := send(`{"message":"Hello"}`, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := app.get("/chat/message", user)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Invalid request method."}`, w.Body.String())
	})
}

func TestLiveResultsWebSocket(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateTestUser(t, app.db, "owner")
	voter := testutil.CreateTestUser(t, app.db, "voter")
	poll := testutil.CreateTestPoll(t, app.db, owner, "Live?", "yes", "no")

	srv := httptest.NewServer(app.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/ws/polls/%d", poll.ID)
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var initial models.ResultsMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, models.ResultsMessageType, initial.Type)
	assert.Equal(t, poll.ID, initial.PollID)
	assert.EqualValues(t, 0, initial.Total)

	// the hub subscribes asynchronously, so a vote may race it; the follow-up
	// publishes from later votes make the check deterministic
	voters := []*models.User{voter}
	for i := 0; i < 4; i++ {
		voters = append(voters, testutil.CreateTestUser(t, app.db, fmt.Sprintf("extra%d", i)))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	received := make(chan models.ResultsMessage, 1)
	go func() {
		var msg models.ResultsMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		close(received)
	}()

	var live models.ResultsMessage
	var ok bool
	for _, u := range voters {
		w := app.post(t, testutil.PollPath(poll.ID, "vote"), u, url.Values{"choice": {fmt.Sprint(poll.Choices[0].ID)}})
		require.Equal(t, http.StatusOK, w.Code)
		select {
		case live, ok = <-received:
		case <-time.After(300 * time.Millisecond):
			continue
		}
		break
	}
	require.True(t, ok, "no live results frame received")
	assert.Equal(t, poll.ID, live.PollID)
	assert.GreaterOrEqual(t, live.Total, int64(1))
	require.Len(t, live.Results, 2)
	assert.Equal(t, live.Total, live.Results[0].Votes)

	w := app.get(fmt.Sprintf("/ws/polls/%d", 999), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
