package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/webprobe/api/schemas"
	"github.com/xkilldash9x/webprobe/internal/capability"
	"github.com/xkilldash9x/webprobe/internal/config"
	"github.com/xkilldash9x/webprobe/internal/engine"
	"github.com/xkilldash9x/webprobe/internal/locator"
)

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Connect(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockSession) Disconnect(ctx context.Context, reset bool) error {
	return m.Called(ctx, reset).Error(0)
}
func (m *mockSession) SessionID() string { return m.Called().String(0) }
func (m *mockSession) Capabilities() []capability.Status {
	return m.Called().Get(0).([]capability.Status)
}
func (m *mockSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}
func (m *mockSession) Snapshot(ctx context.Context) (*schemas.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*schemas.Snapshot)
	return snap, args.Error(1)
}
func (m *mockSession) Find(ctx context.Context, loc schemas.Locator) (*schemas.ElementHandle, error) {
	args := m.Called(ctx, loc)
	h, _ := args.Get(0).(*schemas.ElementHandle)
	return h, args.Error(1)
}
func (m *mockSession) Count(ctx context.Context, loc schemas.Locator) (int, error) {
	args := m.Called(ctx, loc)
	return args.Int(0), args.Error(1)
}
func (m *mockSession) WaitFor(ctx context.Context, loc schemas.Locator, opts engine.WaitOptions) (*schemas.ElementHandle, error) {
	args := m.Called(ctx, loc, opts)
	h, _ := args.Get(0).(*schemas.ElementHandle)
	return h, args.Error(1)
}
func (m *mockSession) Perform(ctx context.Context, action schemas.ActionKind, loc schemas.Locator, params schemas.ActionParams) schemas.ActionResult {
	return m.Called(ctx, action, loc, params).Get(0).(schemas.ActionResult)
}
func (m *mockSession) Screenshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockSession) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	args := m.Called(ctx, script)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}
func (m *mockSession) CostSummary() schemas.CostSummary {
	return m.Called().Get(0).(schemas.CostSummary)
}

// connected returns a session mock that expects one connect/disconnect cycle.
func connected() *mockSession {
	s := new(mockSession)
	s.On("Connect", mock.Anything).Return(nil).Once()
	s.On("Disconnect", mock.Anything, false).Return(nil).Once()
	return s
}

// useSession makes every command in the test run against s.
func useSession(t *testing.T, s Session) {
	t.Helper()
	prev := newSession
	newSession = func(context.Context, config.Interface, *zap.Logger) (Session, func(), error) {
		return s, func() {}, nil
	}
	t.Cleanup(func() { newSession = prev })
}

// run executes the command tree with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, metricsAddr = "", ""
	t.Setenv("WEBPROBE_VISION_PROVIDER", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--provider", "agent"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "webprobe "+Version+"\n", out)
}

func TestConfigCmd_PrintsEffectiveConfig(t *testing.T) {
	t.Setenv("WEBPROBE_VISION_API_KEY", "sk-secret")
	out, err := run(t, "--mode", "deterministic", "--endpoint", "http://127.0.0.1:9333", "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret", "secrets are never printed")

	var got struct {
		Engine struct {
			Mode        string `yaml:"mode"`
			WaitTimeout string `yaml:"wait_timeout"`
		} `yaml:"engine"`
		Browser struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"browser"`
		Vision struct {
			Provider string `yaml:"provider"`
		} `yaml:"vision"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "deterministic", got.Engine.Mode)
	assert.Equal(t, "10s", got.Engine.WaitTimeout)
	assert.Equal(t, "http://127.0.0.1:9333", got.Browser.Endpoint)
	assert.Equal(t, config.ProviderAgent, got.Vision.Provider)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	_, err := run(t, "--mode", "psychic", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.mode")
}

func TestClickCmd_PerformsAction(t *testing.T) {
	s := connected()
	loc := locator.Normalize("text=Save")
	params := schemas.ActionParams{Button: schemas.ButtonRight, ClickCount: 2}
	s.On("Perform", mock.Anything, schemas.ActionClick, loc, params).
		Return(schemas.ActionResult{Action: schemas.ActionClick, Status: schemas.StatusSuccess, Backend: schemas.BackendNative}).Once()
	useSession(t, s)

	out, err := run(t, "click", "text=Save", "--button", "right", "--count", "2")
	require.NoError(t, err)

	var res schemas.ActionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, schemas.StatusSuccess, res.Status)
	assert.Equal(t, schemas.BackendNative, res.Backend)
	s.AssertExpectations(t)
}

func TestClickCmd_FailedResultIsAnError(t *testing.T) {
	s := connected()
	s.On("Perform", mock.Anything, schemas.ActionClick, mock.Anything, mock.Anything).
		Return(schemas.ActionResult{Action: schemas.ActionClick, Status: schemas.StatusNotFound, Error: "css=#nope: element not found"}).Once()
	useSession(t, s)

	out, err := run(t, "click", "#nope")
	require.Error(t, err)
	assert.Contains(t, out, `"not_found"`, "the result is printed even on failure")
	assert.Contains(t, err.Error(), "element not found")
	s.AssertExpectations(t)
}

func TestTypeCmd_SubmitAndWait(t *testing.T) {
	s := connected()
	loc := locator.Normalize("[data-testid=search]")
	s.On("Navigate", mock.Anything, "app://index.html").Return(nil).Once()
	s.On("WaitFor", mock.Anything, loc, mock.MatchedBy(func(o engine.WaitOptions) bool {
		return o.Timeout.Seconds() == 2
	})).Return(&schemas.ElementHandle{ID: "n4"}, nil).Once()
	s.On("Perform", mock.Anything, schemas.ActionTypeSubmit, loc, schemas.ActionParams{Text: "hello"}).
		Return(schemas.ActionResult{Status: schemas.StatusSuccess}).Once()
	useSession(t, s)

	_, err := run(t, "type", "[data-testid=search]", "hello", "--submit", "--wait", "2s", "--navigate", "app://index.html")
	require.NoError(t, err)
	s.AssertExpectations(t)
}

func TestFillPressScroll(t *testing.T) {
	tests := []struct {
		args   []string
		action schemas.ActionKind
		params schemas.ActionParams
	}{
		{[]string{"fill", "#name", "Ada"}, schemas.ActionFill, schemas.ActionParams{Text: "Ada"}},
		{[]string{"press", "#name", "Control+a"}, schemas.ActionPress, schemas.ActionParams{Key: "Control+a"}},
		{[]string{"scroll", "#list", "--dy", "-120"}, schemas.ActionScroll, schemas.ActionParams{DeltaY: -120}},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			s := connected()
			s.On("Perform", mock.Anything, tt.action, locator.Normalize(tt.args[1]), tt.params).
				Return(schemas.ActionResult{Status: schemas.StatusSuccess}).Once()
			useSession(t, s)

			_, err := run(t, tt.args...)
			require.NoError(t, err)
			s.AssertExpectations(t)
		})
	}
}

func TestFindCmd(t *testing.T) {
	t.Run("visual locator", func(t *testing.T) {
		s := connected()
		loc := locator.Visual("the blue save button")
		s.On("Find", mock.Anything, loc).Return(&schemas.ElementHandle{ID: "vlm-1", Source: schemas.SourceVLM}, nil).Once()
		useSession(t, s)

		out, err := run(t, "find", "--visual", "the blue save button")
		require.NoError(t, err)
		assert.Contains(t, out, `"vlm"`)
		s.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		s := connected()
		s.On("Find", mock.Anything, mock.Anything).Return(nil, nil).Once()
		useSession(t, s)

		_, err := run(t, "find", "ref=e9")
		assert.ErrorIs(t, err, schemas.ErrNotFound)
	})

	t.Run("count", func(t *testing.T) {
		s := connected()
		s.On("Count", mock.Anything, locator.Normalize("li")).Return(3, nil).Once()
		useSession(t, s)

		out, err := run(t, "find", "li", "--count")
		require.NoError(t, err)
		assert.Contains(t, out, `"count": 3`)
	})
}

func TestConnectFailure(t *testing.T) {
	s := new(mockSession)
	s.On("Connect", mock.Anything).Return(schemas.Unavailable(schemas.BackendStructural, "connection refused")).Once()
	useSession(t, s)

	_, err := run(t, "click", "#ok")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrBackendUnavailable)
	s.AssertNotCalled(t, "Disconnect", mock.Anything, mock.Anything)
}

func testSnapshot() *schemas.Snapshot {
	return &schemas.Snapshot{
		URL: "app://index.html",
		Refs: map[string]schemas.ElementHandle{
			"e0": {ID: "n1", Role: "form", Name: "Login"},
			"e1": {ID: "n2", Role: "textbox", Name: "User", BoundingBox: &schemas.BoundingBox{X: 10, Y: 20, Width: 100, Height: 24.5}},
			"e2": {ID: "n3", Role: "button", Name: `Say "hi"`},
			"e3": {ID: "n4", Role: "link"},
		},
		Order:      []string{"e0", "e1", "e2", "e3"},
		Depths:     map[string]int{"e0": 0, "e1": 1, "e2": 1, "e3": 0},
		Screenshot: "iVBORw0KGgo=",
	}
}

func TestRenderSnapshotText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderSnapshotText(&buf, testSnapshot()))
	want := strings.Join([]string{
		"# app://index.html",
		`- form "Login" [ref=e0]`,
		`  - textbox "User" [ref=e1]`,
		`  - button "Say \"hi\"" [ref=e2]`,
		`- link [ref=e3]`,
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestSnapshotCmd_XMLNestsByDepth(t *testing.T) {
	s := connected()
	s.On("Snapshot", mock.Anything).Return(testSnapshot(), nil).Once()
	useSession(t, s)

	out, err := run(t, "snapshot", "--format", "xml")
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(out))
	root := doc.SelectElement("snapshot")
	require.NotNil(t, root)
	assert.Equal(t, "app://index.html", root.SelectAttrValue("url", ""))

	top := root.SelectElements("element")
	require.Len(t, top, 2)
	assert.Equal(t, "e0", top[0].SelectAttrValue("ref", ""))
	assert.Equal(t, "e3", top[1].SelectAttrValue("ref", ""))

	children := top[0].SelectElements("element")
	require.Len(t, children, 2)
	assert.Equal(t, "24.5", children[0].SelectAttrValue("height", ""))
	assert.Equal(t, `Say "hi"`, children[1].SelectAttrValue("name", ""))
}

func TestSnapshotCmd_JSONDropsScreenshot(t *testing.T) {
	s := connected()
	snap := testSnapshot()
	s.On("Snapshot", mock.Anything).Return(snap, nil).Once()
	useSession(t, s)

	out, err := run(t, "snapshot", "-f", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "iVBORw0KGgo=")
	assert.Equal(t, "iVBORw0KGgo=", snap.Screenshot, "the session's snapshot is not modified")
}

func TestSnapshotCmd_UnknownFormat(t *testing.T) {
	_, err := run(t, "snapshot", "-f", "yaml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestEvalCmd(t *testing.T) {
	s := connected()
	s.On("Evaluate", mock.Anything, "document.title").Return(json.RawMessage(`"Login"`), nil).Once()
	useSession(t, s)

	out, err := run(t, "eval", "document.title")
	require.NoError(t, err)
	assert.Equal(t, "\"Login\"\n", out)
}

func TestCheckCmd_ReportsEveryEndpoint(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	prev := newSession
	newSession = func(_ context.Context, cfg config.Interface, _ *zap.Logger) (Session, func(), error) {
		endpoint := cfg.Browser().Endpoint
		mu.Lock()
		seen[endpoint] = true
		mu.Unlock()

		s := new(mockSession)
		s.On("SessionID").Return("sess-" + endpoint[len(endpoint)-4:])
		if strings.HasSuffix(endpoint, "9333") {
			s.On("Connect", mock.Anything).Return(errors.New("connection refused"))
			return s, func() {}, nil
		}
		s.On("Connect", mock.Anything).Return(nil)
		s.On("Disconnect", mock.Anything, false).Return(nil)
		s.On("Capabilities").Return([]capability.Status{
			{Kind: schemas.BackendStructural, Configured: true, Available: true},
			{Kind: schemas.BackendOSBridge},
			{Kind: schemas.BackendNative, Configured: true, Available: true},
		})
		return s, func() {}, nil
	}
	t.Cleanup(func() { newSession = prev })

	out, err := run(t, "check", "--endpoints", "http://127.0.0.1:9222,http://127.0.0.1:9333")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 endpoints failed")
	assert.True(t, seen["http://127.0.0.1:9222"])
	assert.True(t, seen["http://127.0.0.1:9333"])

	var reports []capabilityReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, map[schemas.BackendKind]bool{schemas.BackendStructural: true, schemas.BackendNative: true}, reports[0].Backends)
	assert.Empty(t, reports[0].Error)
	assert.Contains(t, reports[1].Error, "connection refused")
}

type fakeLedger struct {
	session string
	totals  map[string]schemas.CostBucket
}

func (f *fakeLedger) Totals(_ context.Context, sessionID string) (map[string]schemas.CostBucket, error) {
	f.session = sessionID
	return f.totals, nil
}

func TestCostsCmd(t *testing.T) {
	t.Run("requires a database", func(t *testing.T) {
		t.Setenv("WEBPROBE_DATABASE_URL", "")
		_, err := run(t, "costs")
		assert.ErrorContains(t, err, "database.url is not set")
	})

	t.Run("sums the ledger", func(t *testing.T) {
		t.Setenv("WEBPROBE_DATABASE_URL", "postgres://localhost/webprobe")
		ledger := &fakeLedger{totals: map[string]schemas.CostBucket{
			"anthropic": {Cost: 0.25, Calls: 5},
			"openai":    {Cost: 0.5, Calls: 2},
		}}
		closed := false
		prev := openLedger
		openLedger = func(_ context.Context, url string, _ *zap.Logger) (costReader, func(), error) {
			assert.Equal(t, "postgres://localhost/webprobe", url)
			return ledger, func() { closed = true }, nil
		}
		t.Cleanup(func() { openLedger = prev })

		out, err := run(t, "costs", "--session", "abc")
		require.NoError(t, err)
		assert.True(t, closed)
		assert.Equal(t, "abc", ledger.session)

		var summary schemas.CostSummary
		require.NoError(t, json.Unmarshal([]byte(out), &summary))
		assert.InDelta(t, 0.75, summary.TotalCost, 1e-9)
		assert.Equal(t, 7, summary.TotalCalls)
	})
}
