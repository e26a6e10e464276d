package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/Cherif0104/EcosystIA-sub000/apps/api/echo"
	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
	"github.com/Cherif0104/EcosystIA-sub000/core/dashboard"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
	emailsvc "github.com/Cherif0104/EcosystIA-sub000/services/email"
	inmemdb "github.com/Cherif0104/EcosystIA-sub000/storage/database/inmem"
	"github.com/Cherif0104/EcosystIA-sub000/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleServiceMock

	projects project.Service
	courses  course.Service
	timelogs timelog.Service
	meetings meeting.Service
}

func setup(t *testing.T) *testApp {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(t)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	mailSvc := testutil.NewMailService(t, conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	projects := project.NewService(inmemdb.NewProjectRepository(db), usrSvc, mailSvc)
	courses := course.NewService(inmemdb.NewCourseRepository(db))
	timelogs := timelog.NewService(inmemdb.NewTimeLogRepository(db), timelog.NewEntityResolver(projects, courses), usrSvc)
	meetings := meeting.NewService(inmemdb.NewMeetingRepository(db), usrSvc, mailSvc)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// set up server
	server := echoapi.NewServer(&echoapi.Options{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      usrSvc,
		ProjectSvc:   projects,
		CourseSvc:    courses,
		TimeLogSvc:   timelogs,
		MeetingSvc:   meetings,
		DashboardSvc: dashboard.NewService(usrSvc, projects, courses, timelogs, meetings),
	})

	return &testApp{
		Server:   server,
		conf:     conf,
		usrRepo:  usrRepo,
		mailSvc:  mailSvc,
		projects: projects,
		courses:  courses,
		timelogs: timelogs,
		meetings: meetings,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

type httpTests []httpTest

// with sets the method & path of every test.
func (tests httpTests) with(method, path string) []httpTest {
	for i := range tests {
		tests[i].method = method
		tests[i].path = path
	}
	return tests
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request & returns the recorded response.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(app.conf, usr)
	token, err := echoapi.GenerateToken(app.conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(): %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
