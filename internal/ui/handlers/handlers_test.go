package handlers_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	apimw "github.com/arturkryukov/topicstore/internal/api/middleware"
	"github.com/arturkryukov/topicstore/internal/auth"
	"github.com/arturkryukov/topicstore/internal/config"
	"github.com/arturkryukov/topicstore/internal/database"
	"github.com/arturkryukov/topicstore/internal/domain/model"
	"github.com/arturkryukov/topicstore/internal/repository"
	"github.com/arturkryukov/topicstore/internal/server"
	"github.com/arturkryukov/topicstore/internal/storage/filestore"
	"github.com/arturkryukov/topicstore/internal/ui/handlers"
)

// testSecret — ключ подписи токенов в тестах.
const testSecret = "test-secret"

// testApp — собранное приложение поверх временной базы и директории
// загрузок, без реального листенера.
type testApp struct {
	router    *chi.Mux
	users     repository.UserRepository
	files     repository.FileRepository
	uploadDir string
}

// newTestApp собирает изолированный экземпляр приложения.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Port:          8080,
		LogFormat:     "json",
		DBPath:        filepath.Join(dir, "test.db"),
		UploadDir:     filepath.Join(dir, "uploads"),
		MaxUploadSize: 10 << 20,
		SecretKey:     testSecret,
		SessionTTL:    time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(cfg.DBPath, logger)
	if err != nil {
		t.Fatalf("ошибка открытия базы: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, logger); err != nil {
		t.Fatalf("ошибка миграций: %v", err)
	}

	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	users := repository.NewUserRepository(db)
	files := repository.NewFileRepository(db)
	codec := auth.NewTokenCodec(cfg.SecretKey)

	h, err := handlers.New(cfg, users, files, store, codec, logger)
	if err != nil {
		t.Fatalf("ошибка создания обработчиков: %v", err)
	}

	session := apimw.NewSessionAuth(codec, users, logger)

	return &testApp{
		router:    server.NewRouter(cfg, logger, h, session),
		users:     users,
		files:     files,
		uploadDir: cfg.UploadDir,
	}
}

// do выполняет запрос через маршрутизатор без следования редиректам.
func (app *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.router.ServeHTTP(rr, req)
	return rr
}

// postForm отправляет application/x-www-form-urlencoded запрос.
func (app *testApp) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return app.do(req)
}

// signup выполняет регистрацию.
func (app *testApp) signup(username, password, password2 string) *httptest.ResponseRecorder {
	return app.postForm("/signup", url.Values{
		"username":  {username},
		"password":  {password},
		"password2": {password2},
	})
}

// login выполняет вход.
func (app *testApp) login(username, password string) *httptest.ResponseRecorder {
	return app.postForm("/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

// uploadFile отправляет multipart-загрузку с cookie сессии.
func (app *testApp) uploadFile(t *testing.T, cookie *http.Cookie, topic, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("topic", topic); err != nil {
		t.Fatalf("ошибка записи поля topic: %v", err)
	}
	fw, err := mw.CreateFormFile("upload_file", filename)
	if err != nil {
		t.Fatalf("ошибка создания части файла: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("ошибка записи содержимого: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("ошибка закрытия multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return app.do(req)
}

// sessionCookie извлекает cookie сессии из ответа или nil.
func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

// userCount возвращает количество пользователей.
func (app *testApp) userCount(t *testing.T) int {
	t.Helper()
	n, err := app.users.Count(context.Background())
	if err != nil {
		t.Fatalf("Count вернул ошибку: %v", err)
	}
	return n
}

// uploadDirEntries возвращает количество файлов в директории загрузок.
func (app *testApp) uploadDirEntries(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(app.uploadDir)
	if err != nil {
		t.Fatalf("ошибка чтения директории загрузок: %v", err)
	}
	return len(entries)
}

// --- Навигация ---

func TestRoot_RedirectsToLogin(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusFound {
		t.Errorf("status = %d, ожидается 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, ожидается /login", loc)
	}
}

func TestLoginPage(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, ожидается 200", rr.Code)
	}
	// Обычный GET не показывает сообщений предыдущих попыток
	if strings.Contains(rr.Body.String(), "Invalid credentials") {
		t.Error("страница входа содержит сообщение об ошибке без попытки входа")
	}
}

func TestPing(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, ожидается 200", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %q, ожидается {\"status\":\"ok\"}", got)
	}
}

// --- Регистрация ---

func TestSignup_Success(t *testing.T) {
	app := newTestApp(t)

	rr := app.signup("alice", "secret1", "secret1")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, ожидается 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/upload" {
		t.Errorf("Location = %q, ожидается /upload", loc)
	}

	// Регистрация аутентифицирует в том же ответе
	cookie := sessionCookie(rr)
	if cookie == nil {
		t.Fatal("cookie сессии не установлен")
	}
	if !cookie.HttpOnly {
		t.Error("cookie сессии не http-only")
	}
	if cookie.MaxAge != int(time.Hour.Seconds()) {
		t.Errorf("MaxAge = %d, ожидается %d", cookie.MaxAge, int(time.Hour.Seconds()))
	}

	// Пользователь создан
	if _, err := app.users.GetByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("пользователь alice не создан: %v", err)
	}

	// Список файлов нового пользователя пуст
	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.AddCookie(cookie)
	rr = app.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /upload: status = %d, ожидается 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No files uploaded yet") {
		t.Error("список файлов нового пользователя не пуст")
	}
}

func TestSignup_ValidationOrder(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name      string
		username  string
		password  string
		password2 string
		wantMsg   string
	}{
		{"пустое имя", "", "secret1", "secret1", "Username is required"},
		{"пробельное имя", "   ", "secret1", "secret1", "Username is required"},
		{"пустой пароль", "alice", "", "", "Password is required"},
		{"несовпадающие пароли", "alice", "secret1", "secret2", "Passwords do not match"},
		{"короткий пароль", "alice", "abc", "abc", "Password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.signup(tt.username, tt.password, tt.password2)
			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, ожидается 200", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.wantMsg) {
				t.Errorf("ответ не содержит %q", tt.wantMsg)
			}
			if sessionCookie(rr) != nil {
				t.Error("cookie сессии установлен при невалидной регистрации")
			}
		})
	}

	// Ни одна невалидная попытка не создала пользователя
	if n := app.userCount(t); n != 0 {
		t.Errorf("userCount = %d, ожидается 0", n)
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	app := newTestApp(t)

	if rr := app.signup("alice", "secret1", "secret1"); rr.Code != http.StatusSeeOther {
		t.Fatalf("первая регистрация: status = %d, ожидается 303", rr.Code)
	}

	rr := app.signup("alice", "другойпароль", "другойпароль")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, ожидается 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Username already exists") {
		t.Error("ответ не содержит сообщения о занятом имени")
	}

	// Количество пользователей не изменилось
	if n := app.userCount(t); n != 1 {
		t.Errorf("userCount = %d, ожидается 1", n)
	}
}

// --- Вход ---

func TestLogin_Success(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice", "secret1", "secret1")

	rr := app.login("alice", "secret1")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, ожидается 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/upload" {
		t.Errorf("Location = %q, ожидается /upload", loc)
	}
	if sessionCookie(rr) == nil {
		t.Error("cookie сессии не установлен")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice", "secret1", "secret1")

	unknownUser := app.login("mallory", "secret1")
	wrongPassword := app.login("alice", "wrongpass")

	for name, rr := range map[string]*httptest.ResponseRecorder{
		"неизвестное имя": unknownUser,
		"неверный пароль": wrongPassword,
	} {
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status = %d, ожидается 200", name, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Invalid credentials") {
			t.Errorf("%s: ответ не содержит generic-сообщения", name)
		}
		if sessionCookie(rr) != nil {
			t.Errorf("%s: cookie сессии установлен", name)
		}
	}

	// Ответы неразличимы: перечисление имён пользователей невозможно
	if unknownUser.Body.String() != wrongPassword.Body.String() {
		t.Error("ответы для неизвестного имени и неверного пароля различаются")
	}
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
	if rr.Code != http.StatusSeeOther {
		t.Errorf("status = %d, ожидается 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, ожидается /login", loc)
	}

	cookie := sessionCookie(rr)
	if cookie == nil {
		t.Fatal("logout не перезаписал cookie сессии")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Error("cookie сессии не очищен")
	}
}

// --- Защищённые маршруты ---

func TestUploadPage_Anonymous(t *testing.T) {
	app := newTestApp(t)

	// Без cookie
	rr := app.do(httptest.NewRequest(http.MethodGet, "/upload", nil))
	if rr.Code != http.StatusFound {
		t.Errorf("без cookie: status = %d, ожидается 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, ожидается /login", loc)
	}

	// С мусорным токеном
	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "garbage"})
	rr = app.do(req)
	if rr.Code != http.StatusFound {
		t.Errorf("мусорный токен: status = %d, ожидается 302", rr.Code)
	}
}

func TestUploadPage_ExpiredToken(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice", "secret1", "secret1")

	// Истёкший токен, подписанный тем же ключом
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	token, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString вернул ошибку: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	rr := app.do(req)
	if rr.Code != http.StatusFound {
		t.Errorf("истёкший токен: status = %d, ожидается 302", rr.Code)
	}
}

// --- Загрузка файлов ---

func TestUpload_Success(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(app.signup("alice", "secret1", "secret1"))

	content := []byte("%PDF-1.4 test content")
	rr := app.uploadFile(t, cookie, "math", "notes.pdf", content)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, ожидается 303; body: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/upload" {
		t.Errorf("Location = %q, ожидается /upload", loc)
	}

	// Список содержит одну запись с исходными метаданными
	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.AddCookie(cookie)
	rr = app.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /upload: status = %d, ожидается 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"notes.pdf", "math", "pdf"} {
		if !strings.Contains(body, want) {
			t.Errorf("список не содержит %q", want)
		}
	}

	// Метаданные ссылаются на существующий файл с тем же содержимым
	alice, err := app.users.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ошибка получения пользователя: %v", err)
	}
	list, err := app.files.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser вернул ошибку: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, ожидается 1", len(list))
	}
	meta := list[0]
	if meta.OriginalFilename != "notes.pdf" || meta.Topic != "math" || meta.FileType != model.FileTypePDF {
		t.Errorf("метаданные не совпадают: %+v", meta)
	}
	if meta.Filename == "notes.pdf" {
		t.Error("клиентское имя файла использовано как имя на диске")
	}

	data, err := os.ReadFile(filepath.Join(app.uploadDir, meta.Filename))
	if err != nil {
		t.Fatalf("файл на диске отсутствует: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла на диске не совпадает с загруженным")
	}

	// Файл доступен по /uploads/{name}
	rr = app.do(httptest.NewRequest(http.MethodGet, "/uploads/"+meta.Filename, nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET /uploads/%s: status = %d, ожидается 200", meta.Filename, rr.Code)
	}
}

func TestUpload_InvalidExtension(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(app.signup("alice", "secret1", "secret1"))

	rr := app.uploadFile(t, cookie, "math", "malware.exe", []byte("MZ"))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, ожидается 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid file type") {
		t.Error("ответ не содержит сообщения о недопустимом типе")
	}

	// Ни файла на диске, ни записи метаданных
	if n := app.uploadDirEntries(t); n != 0 {
		t.Errorf("в директории загрузок %d файлов, ожидается 0", n)
	}
	alice, _ := app.users.GetByUsername(context.Background(), "alice")
	list, err := app.files.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser вернул ошибку: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(list) = %d, ожидается 0", len(list))
	}
}

func TestUpload_BlankTopic(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(app.signup("alice", "secret1", "secret1"))

	rr := app.uploadFile(t, cookie, "   ", "notes.pdf", []byte("%PDF-1.4"))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, ожидается 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Topic cannot be empty") {
		t.Error("ответ не содержит сообщения о пустой теме")
	}

	alice, _ := app.users.GetByUsername(context.Background(), "alice")
	list, err := app.files.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser вернул ошибку: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(list) = %d, ожидается 0: файл с пустой темой принят", len(list))
	}
}

func TestUpload_Anonymous(t *testing.T) {
	app := newTestApp(t)

	rr := app.uploadFile(t, nil, "math", "notes.pdf", []byte("%PDF-1.4"))
	if rr.Code != http.StatusFound {
		t.Errorf("status = %d, ожидается 302", rr.Code)
	}
	if n := app.uploadDirEntries(t); n != 0 {
		t.Errorf("анонимная загрузка записала %d файлов", n)
	}
}

func TestUpload_TopicTrimmed(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(app.signup("alice", "secret1", "secret1"))

	rr := app.uploadFile(t, cookie, "  math  ", "notes.pdf", []byte("%PDF-1.4"))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, ожидается 303", rr.Code)
	}

	alice, _ := app.users.GetByUsername(context.Background(), "alice")
	list, err := app.files.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser вернул ошибку: %v", err)
	}
	if len(list) != 1 || list[0].Topic != "math" {
		t.Errorf("topic = %q, ожидается math (после trim)", list[0].Topic)
	}
}

func TestUpload_SameFilenameTwice(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(app.signup("alice", "secret1", "secret1"))

	content := []byte("одинаковое содержимое")
	for i := 0; i < 2; i++ {
		rr := app.uploadFile(t, cookie, "math", "notes.pdf", content)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("загрузка #%d: status = %d, ожидается 303", i, rr.Code)
		}
	}

	alice, _ := app.users.GetByUsername(context.Background(), "alice")
	list, err := app.files.ListByUser(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByUser вернул ошибку: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, ожидается 2", len(list))
	}
	if list[0].Filename == list[1].Filename {
		t.Error("две загрузки получили одно имя хранения")
	}

	// Оба файла независимо доступны
	for _, meta := range list {
		if _, err := os.Stat(filepath.Join(app.uploadDir, meta.Filename)); err != nil {
			t.Errorf("файл %s отсутствует на диске: %v", meta.Filename, err)
		}
	}
}

func TestUpload_CaseInsensitiveExtension(t *testing.T) {
	app := newTestApp(t)
	cookie := sessionCookie(app.signup("alice", "secret1", "secret1"))

	rr := app.uploadFile(t, cookie, "video", "Lecture.MP4", []byte("ftyp"))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, ожидается 303", rr.Code)
	}

	alice, _ := app.users.GetByUsername(context.Background(), "alice")
	list, _ := app.files.ListByUser(context.Background(), alice.ID)
	if len(list) != 1 || list[0].FileType != model.FileTypeMP4 {
		t.Fatalf("файл с расширением .MP4 не принят как mp4")
	}
	if !strings.HasSuffix(list[0].Filename, ".mp4") {
		t.Errorf("имя хранения %q не нормализовано к .mp4", list[0].Filename)
	}
}

func TestUpload_OwnerIsolation(t *testing.T) {
	app := newTestApp(t)
	aliceCookie := sessionCookie(app.signup("alice", "secret1", "secret1"))
	bobCookie := sessionCookie(app.signup("bob", "secret2", "secret2"))

	if rr := app.uploadFile(t, aliceCookie, "math", "notes.pdf", []byte("%PDF")); rr.Code != http.StatusSeeOther {
		t.Fatalf("загрузка alice: status = %d", rr.Code)
	}

	// Список bob не содержит файла alice
	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	req.AddCookie(bobCookie)
	rr := app.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /upload для bob: status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "notes.pdf") {
		t.Error("список bob содержит файл alice")
	}
}
