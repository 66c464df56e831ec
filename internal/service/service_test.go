package service

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"ai-research-be/internal/clients"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/pkg/broker"
	"ai-research-be/pkg/llm"
	"ai-research-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// scriptedProvider answers by role: the system prompt decides whether the
// caller wants questions, a plan or prose.
type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.Result, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.fail {
		return nil, context.DeadlineExceeded
	}

	system := ""
	if len(history) > 0 {
		system = history[0].Content
	}

	var content string
	switch {
	case strings.Contains(system, "clarifying questions"):
		content = `{"questions": ["What forecast horizon matters most?", "Which benchmark datasets should be covered?"]}`
	case strings.Contains(system, "research planner"):
		content = `{"topic": "transformer forecasting", "objectives": ["survey architectures", "compare benchmarks"], "timeline": "2 weeks", "keyPapers": ["Attention Is All You Need"], "queries": ["transformer time series forecasting"]}`
	default:
		content = "The literature converges on attention-based encoders with learned positional signals."
	}

	return &llm.Result{Content: content, Model: "test-model", Done: true}, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, fn llm.StreamFunc, options ...llm.Option) (*llm.Result, error) {
	res, err := p.Chat(ctx, history, options...)
	if err != nil {
		return nil, err
	}
	fn(res.Content)
	return res, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{Name: "test-model"}}, nil
}

func (p *scriptedProvider) PullModel(ctx context.Context, name string) error { return nil }

func (p *scriptedProvider) ShowModel(ctx context.Context, name string) (map[string]interface{}, error) {
	return map[string]interface{}{"name": name}, nil
}

func (p *scriptedProvider) Model() string { return "test-model" }

// mapStore is an in-process DurableStore for tests.
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	s.data[key] = buf
	return nil
}

func (s *mapStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *mapStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type fakeCrawler struct {
	failSource string
}

func (c *fakeCrawler) CrawlSource(ctx context.Context, source string, queries []string, maxResults int) ([]clients.Paper, error) {
	if source == c.failSource {
		return nil, &clients.DownstreamError{Service: "crawler", Err: context.DeadlineExceeded}
	}
	return []clients.Paper{
		{Title: "Paper from " + source, Source: source, Year: 2024, Abstract: "An abstract."},
	}, nil
}

func (c *fakeCrawler) CrawlAll(ctx context.Context, queries []string, maxResults int) (map[string][]clients.Paper, error) {
	return map[string][]clients.Paper{}, nil
}

type fakeDeveloper struct {
	mu           sync.Mutex
	failingRuns  int
	testRunCalls int
}

func (d *fakeDeveloper) CreateProject(ctx context.Context, name, language string) (*clients.ProjectInfo, error) {
	return &clients.ProjectInfo{ID: "proj-1", Name: name, Language: language}, nil
}

func (d *fakeDeveloper) GenerateCode(ctx context.Context, projectID string, findings map[string]interface{}) (*clients.CodeGenResult, error) {
	return &clients.CodeGenResult{ProjectID: projectID, FilesGenerated: 4}, nil
}

func (d *fakeDeveloper) RunTests(ctx context.Context, projectID string) (*clients.TestRunResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.testRunCalls++
	if d.testRunCalls <= d.failingRuns {
		return &clients.TestRunResult{ProjectID: projectID, Passed: 7, Failed: 2}, nil
	}
	return &clients.TestRunResult{ProjectID: projectID, Passed: 9, Failed: 0}, nil
}

func (d *fakeDeveloper) ProjectStatus(ctx context.Context, projectID string) (*clients.ProjectInfo, error) {
	return &clients.ProjectInfo{ID: projectID}, nil
}

type fakeDocgen struct {
	mu    sync.Mutex
	calls []string
}

func (g *fakeDocgen) record(kind string) {
	g.mu.Lock()
	g.calls = append(g.calls, kind)
	g.mu.Unlock()
}

func (g *fakeDocgen) GenerateReport(ctx context.Context, sessionID string, researchData map[string]interface{}, format string) (*clients.Document, error) {
	g.record("report:" + format)
	return &clients.Document{Type: "report", Format: format, Path: "/docs/report." + format, Size: 2048}, nil
}

func (g *fakeDocgen) GeneratePaper(ctx context.Context, sessionID string, researchData map[string]interface{}, template string) (*clients.Document, error) {
	g.record("paper:" + template)
	return &clients.Document{Type: "paper", Format: "latex", Path: "/docs/paper.tex", Size: 4096}, nil
}

func (g *fakeDocgen) GeneratePresentation(ctx context.Context, sessionID string, researchData map[string]interface{}, style string) (*clients.Document, error) {
	g.record("presentation:" + style)
	return &clients.Document{Type: "presentation", Format: "pptx", Path: "/docs/slides.pptx", Size: 8192}, nil
}

// fixture wires the full service stack on in-process fakes.
type fixture struct {
	provider  *scriptedProvider
	store     *mapStore
	crawler   *fakeCrawler
	developer *fakeDeveloper
	docgen    *fakeDocgen
	registry  *memory.SessionRegistry
	wf        *workflow.Manager
	tasks     *TaskRegistry

	sessions      ISessionService
	research      IResearchService
	development   IDevelopmentService
	documentation IDocumentationService
	workflows     IWorkflowService
	dispatcher    IEnvelopeDispatcher
}

func newFixture() *fixture {
	log := logger.NewNopLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	f := &fixture{
		provider:  &scriptedProvider{},
		store:     newMapStore(),
		crawler:   &fakeCrawler{},
		developer: &fakeDeveloper{},
		docgen:    &fakeDocgen{},
		tasks:     NewTaskRegistry(),
	}

	brk := broker.New(f.provider, log, broker.Config{})
	f.wf = workflow.NewManager(f.store, pubSub, log)
	f.registry = memory.NewSessionRegistry(f.store, log)

	f.sessions = NewSessionService(f.registry)
	f.research = NewResearchService(f.registry, f.wf, brk, f.crawler, f.store, f.tasks, nil, log, nil)
	f.development = NewDevelopmentService(f.wf, f.research, f.developer, f.store, log)
	f.documentation = NewDocumentationService(f.wf, f.research, f.docgen, log)
	f.workflows = NewWorkflowService(f.wf)
	f.dispatcher = NewEnvelopeDispatcher(f.sessions, f.research, f.development, f.documentation, f.workflows, log)

	return f
}

// newSession creates a session and returns its id.
func (f *fixture) newSession(topic string) string {
	session, err := f.sessions.Create(context.Background(), topic)
	if err != nil {
		panic(err)
	}
	return session.ID
}

// runToResearch drives a session through clarification until background
// research has durable results.
func (f *fixture) runToResearch(sessionID string) error {
	ctx := context.Background()
	if _, err := f.research.Start(ctx, sessionID, ""); err != nil {
		return err
	}
	if _, err := f.research.Clarify(ctx, sessionID, []string{"Long-horizon forecasting."}); err != nil {
		return err
	}
	if _, err := f.research.Clarify(ctx, sessionID, []string{"Practitioner audience."}); err != nil {
		return err
	}

	task, ok := f.tasks.Get(sessionID)
	if !ok {
		panic("no background research task registered")
	}
	return task.Wait()
}
