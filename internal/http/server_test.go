package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodgram/internal/auth"
	"foodgram/internal/core"
	applog "foodgram/internal/log"
	"foodgram/internal/media"
	"foodgram/internal/services"
	"foodgram/internal/storage"
)

var imageURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG"))

type fakePublisher struct {
	exports []int64
}

func (f *fakePublisher) PublishRecipePublished(context.Context, int64, int64) error { return nil }

func (f *fakePublisher) PublishShoppingListExport(_ context.Context, userID int64) error {
	f.exports = append(f.exports, userID)
	return nil
}

type testAPI struct {
	srv   *Server
	repo  *storage.SQLiteRepository
	ings  map[string]int64
	tagID int64
}

func newTestAPI(t *testing.T, publisher services.EventPublisher) *testAPI {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	mediaStore, err := media.NewFSStore(filepath.Join(dir, "media"), "http://testserver/media/")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = repo.ImportIngredients(ctx, []core.Ingredient{
		{Name: "Flour", MeasurementUnit: "g"},
		{Name: "Sugar", MeasurementUnit: "g"},
		{Name: "Salt", MeasurementUnit: "g"},
	})
	require.NoError(t, err)
	all, err := repo.SearchIngredients(ctx, "")
	require.NoError(t, err)
	ings := map[string]int64{}
	for _, i := range all {
		ings[i.Name] = i.ID
	}
	tags, err := repo.ListTags(ctx)
	require.NoError(t, err)

	tm := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	logger := applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: &bytes.Buffer{}})
	prev := slog.Default()
	applog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(prev) })
	srv := NewServer(Options{
		Addr:               ":0",
		BaseURL:            "http://testserver",
		PageSize:           6,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MediaRoot:          mediaStore.Root(),
	}, Deps{
		Users:         services.NewUserService(repo, repo, tm, mediaStore),
		Recipes:       services.NewRecipeService(repo, mediaStore, publisher),
		Catalog:       services.NewCatalogService(repo, time.Minute),
		ShoppingLists: services.NewShoppingListService(repo, publisher),
		Notifications: services.NewNotificationService(repo, repo),
		Media:         mediaStore,
		DB:            repo,
		Logger:        logger,
	})
	return &testAPI{srv: srv, repo: repo, ings: ings, tagID: tags[0].ID}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signup registers name and returns its id and token.
func (a *testAPI) signup(t *testing.T, name string) (int64, string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/users/", "", map[string]string{
		"email": name + "@example.com", "username": name,
		"first_name": name, "last_name": "Test", "password": "secret-" + name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[userJSON](t, rec)

	rec = a.do(t, http.MethodPost, "/api/auth/token/login/", "", map[string]string{
		"email": name + "@example.com", "password": "secret-" + name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return u.ID, decode[map[string]string](t, rec)["auth_token"]
}

func (a *testAPI) createRecipe(t *testing.T, token, name string, items map[string]int64) int64 {
	t.Helper()
	var ingredients []map[string]int64
	for ing, amount := range items {
		ingredients = append(ingredients, map[string]int64{"id": a.ings[ing], "amount": amount})
	}
	rec := a.do(t, http.MethodPost, "/api/recipes/", token, map[string]any{
		"ingredients": ingredients, "tags": []int64{a.tagID},
		"image": imageURI, "name": name, "text": "Mix.", "cooking_time": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[recipeJSON](t, rec).ID
}

func TestHealthReadyAndMetrics(t *testing.T) {
	a := newTestAPI(t, nil)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := a.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServiceLogsFollowServerLogger(t *testing.T) {
	newTestAPI(t, nil)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, nil)
	id, token := a.signup(t, "alice")

	rec := a.do(t, http.MethodGet, "/api/users/me/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[userJSON](t, rec)
	assert.Equal(t, id, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Nil(t, me.Avatar)

	rec = a.do(t, http.MethodPost, "/api/auth/token/login/", "", map[string]string{
		"email": "ALICE@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/token/logout/", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/users/me/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/users/me/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication credentials were not provided.", decode[detail](t, rec).Detail)
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAPI(t, nil)
	a.signup(t, "alice")

	rec := a.do(t, http.MethodPost, "/api/users/", "", map[string]string{
		"email": "Alice@Example.com", "username": "alice2", "first_name": "A", "last_name": "B", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "email")

	rec = a.do(t, http.MethodPost, "/api/users/", "", map[string]string{
		"email": "bob@example.com", "username": "bob", "first_name": "B", "last_name": "B",
		"password": "one", "re_password": "two",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "re_password")

	rec = a.do(t, http.MethodPost, "/api/users/", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPasswordAndAvatar(t *testing.T) {
	a := newTestAPI(t, nil)
	_, token := a.signup(t, "alice")

	rec := a.do(t, http.MethodPost, "/api/users/set_password/", token, map[string]string{
		"new_password": "n3w", "current_password": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/users/set_password/", token, map[string]string{
		"new_password": "n3w", "current_password": "secret-alice",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/users/me/avatar/", token, map[string]string{"avatar": imageURI})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	url := decode[map[string]string](t, rec)["avatar"]
	assert.True(t, strings.HasPrefix(url, "http://testserver/media/avatars/"), url)

	rec = a.do(t, http.MethodPut, "/api/users/me/avatar/", token, map[string]string{"avatar": "not-an-image"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/users/me/avatar/", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	a := newTestAPI(t, nil)
	rec := a.do(t, http.MethodGet, "/api/recipes/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDownloadShoppingCart(t *testing.T) {
	a := newTestAPI(t, nil)
	_, alice := a.signup(t, "alice")
	_, bob := a.signup(t, "bob")

	r1 := a.createRecipe(t, alice, "Bread", map[string]int64{"Flour": 200, "Salt": 5})
	r2 := a.createRecipe(t, alice, "Cake", map[string]int64{"Flour": 300, "Sugar": 50})

	rec := a.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	for _, id := range []int64{r1, r2} {
		rec = a.do(t, http.MethodPost, "/api/recipes/"+itoa(id)+"/shopping_cart/", bob, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="shopping_list.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Flour - 500 g\nSalt - 5 g\nSugar - 50 g", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", alice, nil)
	assert.Empty(t, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartAndFavoriteRelations(t *testing.T) {
	a := newTestAPI(t, nil)
	_, alice := a.signup(t, "alice")
	id := a.createRecipe(t, alice, "Bread", map[string]int64{"Flour": 200})
	path := "/api/recipes/" + itoa(id)

	for _, rel := range []string{"/favorite/", "/shopping_cart/"} {
		rec := a.do(t, http.MethodPost, path+rel, alice, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		short := decode[recipeMinJSON](t, rec)
		assert.Equal(t, "Bread", short.Name)
		assert.Equal(t, int64(10), short.CookingTime)

		rec = a.do(t, http.MethodPost, path+rel, alice, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, decode[errorsBody](t, rec).Errors)

		rec = a.do(t, http.MethodDelete, path+rel, alice, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = a.do(t, http.MethodDelete, path+rel, alice, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = a.do(t, http.MethodPost, "/api/recipes/9999"+rel, alice, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestRecipeLifecycle(t *testing.T) {
	a := newTestAPI(t, nil)
	aliceID, alice := a.signup(t, "alice")
	_, bob := a.signup(t, "bob")

	rec := a.do(t, http.MethodPost, "/api/recipes/", alice, map[string]any{
		"ingredients": []map[string]int64{{"id": a.ings["Flour"], "amount": 1}},
		"tags":        []int64{a.tagID}, "name": "No image", "text": "x", "cooking_time": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string][]string](t, rec), "image")

	id := a.createRecipe(t, alice, "Bread", map[string]int64{"Flour": 200})
	path := "/api/recipes/" + itoa(id) + "/"

	rec = a.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[recipeJSON](t, rec)
	assert.Equal(t, aliceID, got.Author.ID)
	assert.Equal(t, "Flour", got.Ingredients[0].Name)
	assert.Equal(t, int64(200), got.Ingredients[0].Amount)
	assert.True(t, strings.HasPrefix(got.Image, "http://testserver/media/recipes/images/"))

	rec = a.do(t, http.MethodPatch, path, bob, map[string]any{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPatch, path, alice, map[string]any{"name": "Rye bread"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rye bread", decode[recipeJSON](t, rec).Name)

	rec = a.do(t, http.MethodGet, path+"get-link/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://testserver/s/"+itoa(id), decode[map[string]string](t, rec)["short-link"])

	rec = a.do(t, http.MethodGet, "/s/"+itoa(id), "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/recipes/"+itoa(id)+"/", rec.Header().Get("Location"))

	rec = a.do(t, http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodDelete, path, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRecipesPaginationAndFilters(t *testing.T) {
	a := newTestAPI(t, nil)
	aliceID, alice := a.signup(t, "alice")
	_, bob := a.signup(t, "bob")
	first := a.createRecipe(t, alice, "One", map[string]int64{"Flour": 1})
	a.createRecipe(t, alice, "Two", map[string]int64{"Sugar": 1})
	a.createRecipe(t, bob, "Three", map[string]int64{"Salt": 1})

	rec := a.do(t, http.MethodGet, "/api/recipes/?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Count    int64        `json:"count"`
		Next     *string      `json:"next"`
		Previous *string      `json:"previous"`
		Results  []recipeJSON `json:"results"`
	}](t, rec)
	assert.Equal(t, int64(3), page.Count)
	require.NotNil(t, page.Next)
	assert.Equal(t, "http://testserver/api/recipes/?limit=2&page=2", *page.Next)
	assert.Nil(t, page.Previous)
	assert.Equal(t, "Three", page.Results[0].Name)

	rec = a.do(t, http.MethodGet, "/api/recipes/?limit=2&page=3", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/recipes/?page=9223372036854775807&limit=100", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid page.", decode[detail](t, rec).Detail)

	rec = a.do(t, http.MethodGet, "/api/recipes/?author="+itoa(aliceID), "", nil)
	assert.Equal(t, float64(2), decode[map[string]any](t, rec)["count"])

	a.do(t, http.MethodPost, "/api/recipes/"+itoa(first)+"/favorite/", bob, nil)
	rec = a.do(t, http.MethodGet, "/api/recipes/?is_favorited=1", bob, nil)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["count"])

	rec = a.do(t, http.MethodGet, "/api/recipes/?is_favorited=1", "", nil)
	assert.Equal(t, float64(3), decode[map[string]any](t, rec)["count"])
}

func TestSubscriptions(t *testing.T) {
	a := newTestAPI(t, nil)
	aliceID, alice := a.signup(t, "alice")
	bobID, bob := a.signup(t, "bob")
	a.createRecipe(t, bob, "One", map[string]int64{"Flour": 1})
	a.createRecipe(t, bob, "Two", map[string]int64{"Flour": 2})

	rec := a.do(t, http.MethodPost, "/api/users/"+itoa(aliceID)+"/subscribe/", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, "/api/users/"+itoa(bobID)+"/subscribe/", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/users/"+itoa(bobID)+"/subscribe/?recipes_limit=1", alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[subscriptionJSON](t, rec)
	assert.True(t, sub.IsSubscribed)
	assert.Len(t, sub.Recipes, 1)
	assert.Equal(t, int64(2), sub.RecipesCount)

	rec = a.do(t, http.MethodPost, "/api/users/"+itoa(bobID)+"/subscribe/", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/users/"+itoa(bobID)+"/", alice, nil)
	assert.True(t, decode[userJSON](t, rec).IsSubscribed)

	rec = a.do(t, http.MethodGet, "/api/users/subscriptions/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, rec)["count"])

	rec = a.do(t, http.MethodDelete, "/api/users/"+itoa(bobID)+"/subscribe/", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/users/9999/subscribe/", alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalog(t *testing.T) {
	a := newTestAPI(t, nil)

	rec := a.do(t, http.MethodGet, "/api/tags/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]tagJSON](t, rec))

	rec = a.do(t, http.MethodGet, "/api/tags/"+itoa(a.tagID)+"/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/tags/abc/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/ingredients/?name=s", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	names := []string{}
	for _, i := range decode[[]ingredientJSON](t, rec) {
		names = append(names, i.Name)
	}
	assert.ElementsMatch(t, []string{"Salt", "Sugar"}, names)

	rec = a.do(t, http.MethodGet, "/api/ingredients/"+itoa(a.ings["Flour"])+"/", "", nil)
	assert.Equal(t, "g", decode[ingredientJSON](t, rec).MeasurementUnit)
}

func TestExportShoppingCart(t *testing.T) {
	t.Run("without publisher", func(t *testing.T) {
		a := newTestAPI(t, nil)
		_, token := a.signup(t, "alice")
		rec := a.do(t, http.MethodPost, "/api/recipes/download_shopping_cart/export/", token, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("with publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		a := newTestAPI(t, pub)
		id, token := a.signup(t, "alice")
		rec := a.do(t, http.MethodPost, "/api/recipes/download_shopping_cart/export/", token, nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []int64{id}, pub.exports)
	})
}

func TestNotifications(t *testing.T) {
	a := newTestAPI(t, nil)
	aliceID, alice := a.signup(t, "alice")
	_, err := a.repo.CreateNotifications(context.Background(), a.createRecipe(t, alice, "Bread", map[string]int64{"Flour": 1}), []int64{aliceID}, "hello")
	require.NoError(t, err)

	rec := a.do(t, http.MethodGet, "/api/notifications/", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]notificationJSON](t, rec)
	require.Len(t, items, 1)
	assert.False(t, items[0].Read)

	rec = a.do(t, http.MethodPost, "/api/notifications/read/", alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/notifications/", alice, nil)
	assert.True(t, decode[[]notificationJSON](t, rec)[0].Read)
}

func TestWebsockets(t *testing.T) {
	a := newTestAPI(t, nil)
	ts := httptest.NewServer(a.srv.Handler)
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	t.Run("echo", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/echo/", nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "ping", string(msg))
	})

	t.Run("notify", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/notify/", nil)
		require.NoError(t, err)
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), "Welcome")

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
		_, msg, err = conn.ReadMessage()
		require.NoError(t, err)
		reply := map[string]string{}
		require.NoError(t, json.Unmarshal(msg, &reply))
		assert.Equal(t, "hi", reply["data"])
		assert.Equal(t, "Message received!", reply["notification"])
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
