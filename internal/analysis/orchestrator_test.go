package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"linklens/internal/ledger"
	"linklens/internal/models"
	"linklens/internal/parser"
	"linklens/internal/storage/stubs"
)

type fakeScraper struct {
	profile *parser.Profile
	err     error
	calls   int
}

func (f *fakeScraper) Scrape(ctx context.Context, profileURL string) (*parser.Profile, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeAnalyzer struct {
	text  string
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, profile *parser.Profile) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func testProfile() *parser.Profile {
	return &parser.Profile{
		Success: true,
		Posts: map[string]parser.Post{
			"post1": {Text: "пост о путешествиях", Date: 1700000000},
		},
		Subscriptions: []string{"Клуб путешественников"},
	}
}

const testURL = "https://vk.com/id7064629"

func setup(t *testing.T, balance int64, scraper *fakeScraper, analyzer *fakeAnalyzer) (*Orchestrator, *ledger.Service) {
	t.Helper()
	db := stubs.NewMockDB()
	svc := ledger.NewService(db, zap.NewNop())

	ctx := context.Background()
	if _, err := svc.Register(ctx, 1, "hr", "HR User", models.PlanIndividual); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if balance > 0 {
		if err := svc.Credit(ctx, 1, balance); err != nil {
			t.Fatalf("Failed to credit: %v", err)
		}
	}

	return NewOrchestrator(svc, scraper, analyzer, zap.NewNop()), svc
}

func TestAnalyze_ChargesOnSuccess(t *testing.T) {
	scraper := &fakeScraper{profile: testProfile()}
	analyzer := &fakeAnalyzer{text: "личные качества: открытый человек"}
	orch, svc := setup(t, 5, scraper, analyzer)

	result, err := orch.Analyze(context.Background(), 1, testURL)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.Charged {
		t.Error("Expected the analysis to be charged")
	}
	if result.Text != analyzer.text {
		t.Errorf("Expected analysis text %q, got %q", analyzer.text, result.Text)
	}

	balance, _ := svc.Balance(context.Background(), 1)
	if balance.Amount != 4 {
		t.Errorf("Expected balance 4 after one charged analysis, got %d", balance.Amount)
	}
}

func TestAnalyze_NoChargeOnInsufficientData(t *testing.T) {
	scraper := &fakeScraper{profile: testProfile()}
	analyzer := &fakeAnalyzer{text: InsufficientDataMarker}
	orch, svc := setup(t, 5, scraper, analyzer)

	result, err := orch.Analyze(context.Background(), 1, testURL)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !result.InsufficientData {
		t.Error("Expected the insufficient-data outcome")
	}
	if result.Charged {
		t.Error("Expected no charge for the insufficient-data outcome")
	}

	balance, _ := svc.Balance(context.Background(), 1)
	if balance.Amount != 5 {
		t.Errorf("Expected balance to stay at 5, got %d", balance.Amount)
	}
}

func TestAnalyze_EligibilityGateSkipsRemoteCalls(t *testing.T) {
	scraper := &fakeScraper{profile: testProfile()}
	analyzer := &fakeAnalyzer{text: "анализ"}
	orch, svc := setup(t, 0, scraper, analyzer)

	_, err := orch.Analyze(context.Background(), 1, testURL)
	if !errors.Is(err, ErrNoBalance) {
		t.Fatalf("Expected ErrNoBalance, got %v", err)
	}
	if scraper.calls != 0 {
		t.Errorf("Expected no scraper calls, got %d", scraper.calls)
	}
	if analyzer.calls != 0 {
		t.Errorf("Expected no analyzer calls, got %d", analyzer.calls)
	}

	balance, _ := svc.Balance(context.Background(), 1)
	if balance.Amount != 0 {
		t.Errorf("Expected balance to stay at 0, got %d", balance.Amount)
	}
}

func TestAnalyze_SubscriptionIsNotMetered(t *testing.T) {
	scraper := &fakeScraper{profile: testProfile()}
	analyzer := &fakeAnalyzer{text: "анализ"}
	orch, svc := setup(t, 2, scraper, analyzer)

	ctx := context.Background()
	if _, err := svc.Subscribe(ctx, 1, 1, ledger.UnitMonth); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	result, err := orch.Analyze(ctx, 1, testURL)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Charged {
		t.Error("Expected a subscription-funded analysis not to be charged")
	}

	balance, _ := svc.Balance(ctx, 1)
	if balance.Amount != 2 {
		t.Errorf("Expected token balance to stay at 2, got %d", balance.Amount)
	}
}

func TestAnalyze_NoChargeOnScrapeFailure(t *testing.T) {
	scraper := &fakeScraper{err: fmt.Errorf("parser unreachable")}
	analyzer := &fakeAnalyzer{text: "анализ"}
	orch, svc := setup(t, 5, scraper, analyzer)

	_, err := orch.Analyze(context.Background(), 1, testURL)
	if err == nil {
		t.Fatal("Expected an error when the scraper fails")
	}
	if analyzer.calls != 0 {
		t.Errorf("Expected no analyzer calls after a scrape failure, got %d", analyzer.calls)
	}

	balance, _ := svc.Balance(context.Background(), 1)
	if balance.Amount != 5 {
		t.Errorf("Expected balance to stay at 5, got %d", balance.Amount)
	}
}

func TestAnalyze_NoChargeOnInferenceFailure(t *testing.T) {
	scraper := &fakeScraper{profile: testProfile()}
	analyzer := &fakeAnalyzer{err: fmt.Errorf("model unavailable")}
	orch, svc := setup(t, 5, scraper, analyzer)

	_, err := orch.Analyze(context.Background(), 1, testURL)
	if err == nil {
		t.Fatal("Expected an error when inference fails")
	}

	balance, _ := svc.Balance(context.Background(), 1)
	if balance.Amount != 5 {
		t.Errorf("Expected balance to stay at 5, got %d", balance.Amount)
	}
}

func TestAnalyze_RejectsBadURLWithoutRemoteCalls(t *testing.T) {
	scraper := &fakeScraper{profile: testProfile()}
	analyzer := &fakeAnalyzer{text: "анализ"}
	orch, _ := setup(t, 5, scraper, analyzer)

	_, err := orch.Analyze(context.Background(), 1, "https://example.com/profile")
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("Expected ErrInvalidURL, got %v", err)
	}
	if scraper.calls != 0 {
		t.Errorf("Expected no scraper calls, got %d", scraper.calls)
	}
}
