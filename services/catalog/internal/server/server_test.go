package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"moviecatalog/pkg/domain"
	"moviecatalog/pkg/storage"
	"moviecatalog/pkg/store"
	"moviecatalog/services/catalog/internal/app"
)

const testPassword = "Password123"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type testEnv struct {
	srv        *httptest.Server
	app        *app.App
	adminToken string
	userToken  string
}

func newTestEnv(t *testing.T, redisClient redis.Scripter) testEnv {
	t.Helper()
	a, err := app.New(app.Config{
		Store:          store.NewMemoryStore(),
		Objects:        storage.NewMemoryObjectStore(),
		MediaPublicURL: "http://media.local/catalog",
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		JWTTTL:         time.Hour,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx := context.Background()
	if _, err := a.SeedUsers(ctx, testPassword); err != nil {
		t.Fatalf("seed users: %v", err)
	}
	s, err := New(Config{
		App:                        a,
		Redis:                      redisClient,
		LoginRateLimitPerMinute:    2,
		RegisterRateLimitPerMinute: 2,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	env := testEnv{srv: srv, app: a}
	admin, err := a.Login(ctx, "admin@email.com", testPassword)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	user, err := a.Login(ctx, "user@email.com", testPassword)
	if err != nil {
		t.Fatalf("login user: %v", err)
	}
	env.adminToken = admin.Token
	env.userToken = user.Token
	return env
}

type response struct {
	status  int
	header  http.Header
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e testEnv) do(t *testing.T, method, path, token, contentType string, body []byte) response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := response{status: resp.StatusCode, header: resp.Header}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return out
}

func (e testEnv) json(t *testing.T, method, path, token string, payload any) response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return e.do(t, method, path, token, "application/json", body)
}

func multipartBody(t *testing.T, fields map[string]string, files ...string) ([]byte, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, field := range files {
		part, err := w.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(pngBytes); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body.Bytes(), w.FormDataContentType()
}

func decodeData[T any](t *testing.T, r response) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(r.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", r.Data, err)
	}
	return out
}

type idOnly struct {
	ID string `json:"id"`
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t, nil)
	genre := map[string]string{"title": "Noir", "gradient": "#000000"}

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad token", "not-a-token", http.StatusUnauthorized},
		{"user", env.userToken, http.StatusForbidden},
		{"admin", env.adminToken, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.json(t, http.MethodPost, "/genres", tt.token, genre)
			if resp.status != tt.want {
				t.Fatalf("status = %d, want %d (%s)", resp.status, tt.want, resp.Message)
			}
			if resp.Success != (tt.want == http.StatusCreated) {
				t.Fatalf("success = %v for status %d", resp.Success, resp.status)
			}
		})
	}

	resp := env.json(t, http.MethodPost, "/reviews", env.adminToken, map[string]any{"movieId": "x", "content": "hi", "rating": 4})
	if resp.status != http.StatusForbidden {
		t.Fatalf("admin review status = %d, want 403", resp.status)
	}
	resp = env.do(t, http.MethodGet, "/users", env.userToken, "", nil)
	if resp.status != http.StatusForbidden {
		t.Fatalf("user list users status = %d, want 403", resp.status)
	}
}

func TestListEnvelopeAndPagination(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, title := range []string{"Crime", "Drama", "Action"} {
		if resp := env.json(t, http.MethodPost, "/genres", env.adminToken, map[string]string{"title": title}); resp.status != http.StatusCreated || resp.Message != "Genre Created" {
			t.Fatalf("create genre: %d %s", resp.status, resp.Message)
		}
	}

	resp := env.do(t, http.MethodGet, "/genres?sort=title%20desc&page=2&limit=1", "", "", nil)
	if resp.status != http.StatusOK || !resp.Success || resp.Message != "Genres retrieved successfully!" {
		t.Fatalf("list genres: %d %+v", resp.status, resp)
	}
	page := decodeData[struct {
		Total int `json:"total"`
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
	}](t, resp)
	if page.Total != 3 || len(page.Items) != 1 || page.Items[0].Title != "Crime" {
		t.Fatalf("page = %+v, want total 3 and [Crime]", page)
	}

	resp = env.do(t, http.MethodGet, "/genres?page=abc", "", "", nil)
	if resp.status != http.StatusBadRequest || resp.Success {
		t.Fatalf("bad page status = %d", resp.status)
	}
	resp = env.do(t, http.MethodGet, "/movies/missing", "", "", nil)
	if resp.status != http.StatusNotFound || resp.Message != "Movie not found!" || string(resp.Data) != "null" {
		t.Fatalf("missing movie = %d %q %s", resp.status, resp.Message, resp.Data)
	}
}

func TestMultipartActorAndMovie(t *testing.T) {
	env := newTestEnv(t, nil)

	body, ct := multipartBody(t, map[string]string{"firstname": "Al", "lastname": "Pacino"})
	resp := env.do(t, http.MethodPost, "/actors", env.adminToken, ct, body)
	if resp.status != http.StatusBadRequest || resp.Message != "Photo is required!" {
		t.Fatalf("actor without photo = %d %q", resp.status, resp.Message)
	}
	body, ct = multipartBody(t, map[string]string{"firstname": "Al", "lastname": "Pacino", "birthdate": "1940-04-25"}, "photo")
	resp = env.do(t, http.MethodPost, "/actors", env.adminToken, ct, body)
	if resp.status != http.StatusCreated || resp.Message != "Actor created successfully!" {
		t.Fatalf("create actor = %d %q", resp.status, resp.Message)
	}
	actor := decodeData[idOnly](t, resp)

	genre := decodeData[idOnly](t, env.json(t, http.MethodPost, "/genres", env.adminToken, map[string]string{"title": "Crime"}))

	fields := map[string]string{
		"title":        "Heat",
		"cost":         "60000000",
		"release_year": "1995",
		"runtime":      "170",
		"genres":       `["` + genre.ID + `"]`,
		"actors":       `["` + actor.ID + `"]`,
	}
	body, ct = multipartBody(t, fields, "poster")
	resp = env.do(t, http.MethodPost, "/movies", env.adminToken, ct, body)
	if resp.status != http.StatusBadRequest || resp.Message != "No poster and/or backdrop image provided!" {
		t.Fatalf("movie without backdrop = %d %q", resp.status, resp.Message)
	}
	body, ct = multipartBody(t, fields, "poster", "backdrop")
	resp = env.do(t, http.MethodPost, "/movies", env.adminToken, ct, body)
	if resp.status != http.StatusCreated {
		t.Fatalf("create movie = %d %q", resp.status, resp.Message)
	}
	movie := decodeData[struct {
		ID          string `json:"id"`
		ReleaseYear int    `json:"release_year"`
		Actors      []struct {
			ActorID string `json:"actorId"`
			Name    string `json:"name"`
		} `json:"actors"`
	}](t, resp)
	if movie.ReleaseYear != 1995 || len(movie.Actors) != 1 || movie.Actors[0].Name != "Al Pacino" {
		t.Fatalf("movie = %+v", movie)
	}

	resp = env.do(t, http.MethodDelete, "/actors/"+actor.ID, env.adminToken, "", nil)
	if resp.status != http.StatusConflict || resp.Message != "Actor is casted in a movie. Deletion not allowed!" {
		t.Fatalf("delete cast actor = %d %q", resp.status, resp.Message)
	}

	resp = env.do(t, http.MethodGet, "/actors/"+actor.ID+"?includeMovies=true", "", "", nil)
	detail := decodeData[struct {
		Movies []map[string]any `json:"movies"`
	}](t, resp)
	if len(detail.Movies) != 1 {
		t.Fatalf("actor movies = %+v", detail.Movies)
	}
	if _, ok := detail.Movies[0]["actors"]; ok {
		t.Fatalf("actor movies should omit actors: %+v", detail.Movies[0])
	}
}

func TestReviewFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ct := multipartBody(t, map[string]string{"title": "Heat"}, "poster", "backdrop")
	movie := decodeData[idOnly](t, env.do(t, http.MethodPost, "/movies", env.adminToken, ct, body))

	var reviewIDs []string
	for _, rating := range []int{4, 5} {
		resp := env.json(t, http.MethodPost, "/reviews", env.userToken, map[string]any{"movieId": movie.ID, "content": "Solid", "rating": rating})
		if resp.status != http.StatusCreated || resp.Message != "Review Submitted" {
			t.Fatalf("create review = %d %q", resp.status, resp.Message)
		}
		reviewIDs = append(reviewIDs, decodeData[idOnly](t, resp).ID)
	}
	for _, id := range reviewIDs {
		resp := env.json(t, http.MethodPatch, "/reviews/"+id+"/approval", env.adminToken, map[string]bool{"approved": true})
		if resp.status != http.StatusOK || resp.Message != "Review approval updated." {
			t.Fatalf("approve = %d %q", resp.status, resp.Message)
		}
	}
	got := decodeData[struct {
		Rating float64 `json:"rating"`
	}](t, env.do(t, http.MethodGet, "/movies/"+movie.ID, "", "", nil))
	if got.Rating != 4.5 {
		t.Fatalf("rating = %v, want 4.5", got.Rating)
	}

	resp := env.do(t, http.MethodGet, "/movies/"+movie.ID+"/reviews", "", "", nil)
	page := decodeData[struct {
		Total int              `json:"total"`
		Items []map[string]any `json:"items"`
	}](t, resp)
	if page.Total != 2 {
		t.Fatalf("movie reviews total = %d", page.Total)
	}
	if _, ok := page.Items[0]["movie"]; ok {
		t.Fatalf("movie reviews should omit movie: %+v", page.Items[0])
	}
}

func TestFavoritesAccess(t *testing.T) {
	env := newTestEnv(t, nil)
	me := decodeData[idOnly](t, env.do(t, http.MethodGet, "/users/me", env.userToken, "", nil))
	admin := decodeData[idOnly](t, env.do(t, http.MethodGet, "/users/me", env.adminToken, "", nil))
	body, ct := multipartBody(t, map[string]string{"title": "Heat"}, "poster", "backdrop")
	movie := decodeData[idOnly](t, env.do(t, http.MethodPost, "/movies", env.adminToken, ct, body))

	resp := env.json(t, http.MethodPatch, "/users/"+me.ID+"/favorites", env.userToken, map[string]any{"movieId": movie.ID, "favorite": true})
	if resp.status != http.StatusOK || resp.Message != "Favorites updated." {
		t.Fatalf("set favorite = %d %q", resp.status, resp.Message)
	}
	resp = env.do(t, http.MethodGet, "/users/"+me.ID+"/favorites", env.userToken, "", nil)
	page := decodeData[struct {
		Total int `json:"total"`
	}](t, resp)
	if page.Total != 1 {
		t.Fatalf("favorites total = %d, want 1", page.Total)
	}
	resp = env.do(t, http.MethodGet, "/users/"+admin.ID+"/favorites", env.userToken, "", nil)
	if resp.status != http.StatusForbidden {
		t.Fatalf("other user's favorites status = %d, want 403", resp.status)
	}
	resp = env.do(t, http.MethodGet, "/users/"+me.ID+"/favorites", env.adminToken, "", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("admin favorites status = %d", resp.status)
	}
}

func TestRegisterAndLoginFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.json(t, http.MethodPost, "/users/register", "", map[string]string{"fullname": "New Person", "email": "new@example.com", "password": testPassword})
	if resp.status != http.StatusCreated || resp.Message != "Registration successful!" {
		t.Fatalf("register = %d %q", resp.status, resp.Message)
	}
	resp = env.json(t, http.MethodPost, "/users/login", "", map[string]string{"email": "new@example.com", "password": testPassword})
	if resp.status != http.StatusForbidden || resp.Message != "User activation is still pending." {
		t.Fatalf("pending login = %d %q", resp.status, resp.Message)
	}
	resp = env.json(t, http.MethodPost, "/users/login", "", map[string]string{"email": "new@example.com", "password": "Wrong12345"})
	if resp.status != http.StatusUnauthorized || resp.Message != "Invalid email or password." {
		t.Fatalf("wrong password = %d %q", resp.status, resp.Message)
	}
	resp = env.json(t, http.MethodPost, "/validate-email", "", map[string]string{"email": "new@example.com"})
	valid := decodeData[struct {
		Valid bool `json:"valid"`
	}](t, resp)
	if resp.Message != "Email Validated" || valid.Valid {
		t.Fatalf("validate taken email = %q %+v", resp.Message, valid)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodPost, "/users/logout", env.userToken, "", nil)
	if resp.status != http.StatusOK || resp.Message != "Successfully logged out" {
		t.Fatalf("logout = %d %q", resp.status, resp.Message)
	}
	resp = env.do(t, http.MethodGet, "/users/me", env.userToken, "", nil)
	if resp.status != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", resp.status)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, client)

	creds := map[string]string{"email": "user@email.com", "password": testPassword}
	for i := 0; i < 2; i++ {
		resp := env.json(t, http.MethodPost, "/users/login", "", creds)
		if resp.status != http.StatusOK {
			t.Fatalf("login %d status = %d %q", i, resp.status, resp.Message)
		}
		if got, want := resp.header.Get("X-RateLimit-Remaining"), strconv.Itoa(1-i); got != want {
			t.Fatalf("login %d remaining = %q, want %q", i, got, want)
		}
	}
	resp := env.json(t, http.MethodPost, "/users/login", "", creds)
	if resp.status != http.StatusTooManyRequests {
		t.Fatalf("third login status = %d, want 429", resp.status)
	}
	if resp.header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestFormInto(t *testing.T) {
	var in app.MoviePatch
	err := formInto(map[string][]string{
		"title":        {"Heat"},
		"cost":         {"1.5"},
		"release_year": {" 1995 "},
		"runtime":      {""},
		"genres":       {`["g1","g2"]`},
		"actors":       {"a1", "a2"},
	}, &in)
	if err != nil {
		t.Fatalf("formInto: %v", err)
	}
	if in.Title == nil || *in.Title != "Heat" || in.Cost == nil || *in.Cost != 1.5 {
		t.Fatalf("scalars = %+v", in)
	}
	if in.ReleaseYear == nil || *in.ReleaseYear != 1995 || in.Runtime != nil {
		t.Fatalf("ints = %v %v", in.ReleaseYear, in.Runtime)
	}
	if in.Genres == nil || strings.Join(*in.Genres, ",") != "g1,g2" {
		t.Fatalf("genres = %v", in.Genres)
	}
	if in.Actors == nil || strings.Join(*in.Actors, ",") != "a1,a2" {
		t.Fatalf("actors = %v", in.Actors)
	}

	var bad app.MovieInput
	if err := formInto(map[string][]string{"runtime": {"long"}}, &bad); app.KindOf(err) != app.KindValidation {
		t.Fatalf("bad runtime err = %v", err)
	}
}

func TestFormIntoPointerFields(t *testing.T) {
	var in app.UpdateUserInput
	err := formInto(map[string][]string{
		"fullname": {""},
		"role":     {"ADMIN"},
		"enabled":  {"true"},
		"approved": {"  "},
	}, &in)
	if err != nil {
		t.Fatalf("formInto: %v", err)
	}
	if in.Fullname == nil || *in.Fullname != "" {
		t.Fatalf("blank string should still be set, got %v", in.Fullname)
	}
	if in.Role == nil || *in.Role != domain.RoleAdmin {
		t.Fatalf("role = %v", in.Role)
	}
	if in.Enabled == nil || !*in.Enabled {
		t.Fatalf("enabled = %v", in.Enabled)
	}
	if in.Approved != nil || in.Email != nil || in.Password != nil {
		t.Fatalf("blank or missing fields must stay nil: %+v", in)
	}

	if err := formInto(map[string][]string{"enabled": {"maybe"}}, &in); app.KindOf(err) != app.KindValidation || err.Error() != "enabled is invalid" {
		t.Fatalf("bad bool err = %v", err)
	}
}

func TestFormIntoSlices(t *testing.T) {
	tests := []struct {
		name   string
		values map[string][]string
		want   []string
	}{
		{"json array", map[string][]string{"genres": {` ["g1", "g2"] `}}, []string{"g1", "g2"}},
		{"empty json array", map[string][]string{"genres": {"[]"}}, []string{}},
		{"repeated values", map[string][]string{"genres": {"g1", " ", "g2"}}, []string{"g1", "g2"}},
		{"single plain value", map[string][]string{"genres": {"g1"}}, []string{"g1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in app.MovieInput
			if err := formInto(tt.values, &in); err != nil {
				t.Fatalf("formInto: %v", err)
			}
			if in.Genres == nil || strings.Join(in.Genres, ",") != strings.Join(tt.want, ",") || len(in.Genres) != len(tt.want) {
				t.Fatalf("genres = %#v, want %#v", in.Genres, tt.want)
			}

			var patch app.MoviePatch
			if err := formInto(tt.values, &patch); err != nil {
				t.Fatalf("formInto patch: %v", err)
			}
			if patch.Genres == nil || len(*patch.Genres) != len(tt.want) || patch.Actors != nil {
				t.Fatalf("patch genres = %v actors = %v", patch.Genres, patch.Actors)
			}
		})
	}

	var in app.MovieInput
	if err := formInto(map[string][]string{"actors": {`["a1"`}}, &in); app.KindOf(err) != app.KindValidation || err.Error() != "actors is invalid" {
		t.Fatalf("malformed array err = %v", err)
	}
	if err := formInto(map[string][]string{}, in); err == nil || app.KindOf(err) == app.KindValidation {
		t.Fatalf("non-pointer target should be a programming error, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	admin, user := domain.RoleAdmin, domain.RoleUser
	tests := []struct {
		role    domain.UserRole
		allowed []domain.UserRole
		want    bool
	}{
		{user, nil, true},
		{user, []domain.UserRole{admin}, false},
		{admin, []domain.UserRole{admin}, true},
		{user, []domain.UserRole{admin, user}, true},
	}
	for _, tt := range tests {
		if got := authorize(tt.role, tt.allowed...); got != tt.want {
			t.Fatalf("authorize(%s, %v) = %v, want %v", tt.role, tt.allowed, got, tt.want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/nope", "", "", nil)
	if resp.status != http.StatusNotFound || resp.Message != "Route not found" || resp.Success {
		t.Fatalf("unknown route = %d %q", resp.status, resp.Message)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/healthz", "", "", nil)
	if resp.status != http.StatusOK || !resp.Success {
		t.Fatalf("healthz = %d %q", resp.status, resp.Message)
	}
	if got := decodeData[map[string]string](t, resp); got["status"] != "ok" {
		t.Fatalf("healthz data = %v", got)
	}
}
