package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

func TestTestLoggerTrainerFields(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	runLogger := testLogger.With(ExperimentKey, "california_housing")

	runLogger.Info("stage transition", "from", "FIT", StageKey, "EVALUATED")
	runLogger.Info("evaluated model",
		PhaseKey, PhaseValidation,
		MSEKey, 0.25,
		R2ScoreKey, 0.81,
	)
	runLogger.Error("training run failed", ErrAttr(errors.New("disk full")), StageKey, "EVALUATED")

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("GetLogEntries() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry[ExperimentKey] != "california_housing" {
			t.Errorf("entry %d lost the run context: %v", i, entry)
		}
	}

	want := []map[string]interface{}{
		{"message": "stage transition", "from": "FIT", StageKey: "EVALUATED", "level": "INFO"},
		{PhaseKey: PhaseValidation, MSEKey: 0.25, R2ScoreKey: 0.81},
		{ErrAttrKey: "disk full", StageKey: "EVALUATED", "level": "ERROR"},
	}
	for i, fields := range want {
		for key, value := range fields {
			if entries[i][key] != value {
				t.Errorf("entry %d: %s = %v, want %v", i, key, entries[i][key], value)
			}
		}
	}
}

func TestTestLoggerLevels(t *testing.T) {
	tests := []struct {
		level   Level
		enabled map[Level]bool
	}{
		{LevelDebug, map[Level]bool{LevelDebug: true, LevelInfo: true, LevelWarn: true, LevelError: true}},
		{LevelInfo, map[Level]bool{LevelDebug: false, LevelInfo: true, LevelWarn: true, LevelError: true}},
		{LevelError, map[Level]bool{LevelDebug: false, LevelInfo: false, LevelWarn: false, LevelError: true}},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			testLogger, _ := NewTestLogger(tt.level)
			for level, want := range tt.enabled {
				if got := testLogger.Enabled(context.Background(), level); got != want {
					t.Errorf("Enabled(%v) = %v, want %v", level, got, want)
				}
			}

			testLogger.Debug("request served")
			testLogger.Warn("failed to discard version dir")
			if got := testLogger.ContainsMessage("request served"); got != tt.enabled[LevelDebug] {
				t.Errorf("debug record written = %v", got)
			}
			if got := testLogger.ContainsMessage("failed to discard version dir"); got != tt.enabled[LevelWarn] {
				t.Errorf("warn record written = %v", got)
			}
		})
	}
}

func TestNormalizeFields(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		fields []any
		want   []any
	}{
		{name: "empty", fields: nil, want: nil},
		{name: "pairs", fields: []any{SamplesKey, 10}, want: []any{SamplesKey, 10}},
		{name: "leading error", fields: []any{boom, StageKey, "FIT"}, want: []any{ErrAttrKey, boom, StageKey, "FIT"}},
		{name: "attr", fields: []any{ErrAttr(boom), RunIDKey, "r1"}, want: []any{ErrAttrKey, boom, RunIDKey, "r1"}},
		{name: "error as value", fields: []any{"cause", boom}, want: []any{"cause", boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeFields(tt.fields)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeFields() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("normalizeFields()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNamedLoggersShareProvider(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLoggerWithName("trainer").Info("fitted model", TreesKey, 100)
	provider.GetLoggerWithName("modelstore").Info("latest model updated", ArtifactPathKey, "models/model_20240101_000000")

	if !provider.Logger().ContainsField(ComponentKey, "trainer") ||
		!provider.Logger().ContainsField(ComponentKey, "modelstore") {
		t.Errorf("component tags missing: %s", buffer.String())
	}
	if !provider.Logger().ContainsField(TreesKey, 100.0) {
		t.Errorf("trees field missing: %s", buffer.String())
	}
}

func TestSetProvider(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelInfo)
	SetProvider(provider)
	defer SetProvider(NewSlogProvider())

	GetLoggerWithName("server").Info("listening", AddressKey, "0.0.0.0:5000")

	if !provider.Logger().ContainsField(AddressKey, "0.0.0.0:5000") {
		t.Error("Global logger did not write through the installed provider")
	}
	if !provider.Logger().ContainsField(ComponentKey, "server") {
		t.Error("GetLoggerWithName did not tag the component")
	}

	SetLevel(LevelError)
	GetLogger().Info("dropped")
	if provider.Logger().ContainsMessage("dropped") {
		t.Error("SetLevel was not applied to the installed provider")
	}
}

func TestErrFmtHandlerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Error("fit failed", ErrAttr(errors.New("boom")))

	if !strings.Contains(buf.String(), `"`+StacktraceAttrKey+`"`) {
		t.Errorf("Expected stacktrace attribute, got %s", buf.String())
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.With(ComponentKey, "datasets").Info("downloaded", SamplesKey, 20640)
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, `"ml.component":"datasets"`) {
		t.Errorf("Missing component field: %s", out)
	}
	if !strings.Contains(out, `"data.samples":20640`) {
		t.Errorf("Missing samples field: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("Debug record should be filtered at info level")
	}
	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("Enabled(Debug) should be false at info level")
	}
}

func TestWarningSink(t *testing.T) {
	var buf bytes.Buffer
	InstallWarningSink(zerolog.New(&buf))
	defer scigoErrors.SetZerologWarnFunc(nil)

	scigoErrors.Warn(scigoErrors.NewUndefinedMetricWarning("r2_score", "constant y_true", 0))

	out := buf.String()
	if !strings.Contains(out, `"metric":"r2_score"`) {
		t.Errorf("Warning fields not embedded: %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("Warning not logged at warn level: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentWorkerLogging(t *testing.T) {
	// Forest workers log through loggers derived from one parent.
	testLogger, _ := NewTestLogger(LevelInfo)
	parent := testLogger.With(ModelNameKey, "RandomForestRegressor")

	const trees = 16
	var wg sync.WaitGroup
	for i := 0; i < trees; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			parent.With("tree", i).Info("tree fitted", SamplesKey, 100+i)
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("GetLogEntries() error = %v", err)
	}
	if len(entries) != trees {
		t.Fatalf("got %d entries, want %d", len(entries), trees)
	}
	seen := make(map[float64]bool)
	for _, entry := range entries {
		if entry[ModelNameKey] != "RandomForestRegressor" {
			t.Errorf("entry lost parent fields: %v", entry)
		}
		tree, _ := entry["tree"].(float64)
		if entry[SamplesKey] != 100+tree {
			t.Errorf("fields of tree %v mixed with another worker: %v", tree, entry)
		}
		seen[tree] = true
	}
	if len(seen) != trees {
		t.Errorf("saw %d distinct trees, want %d", len(seen), trees)
	}
}

func TestSetupLoggerRotatingFile(t *testing.T) {
	prev := slog.Default()
	defer func() {
		slog.SetDefault(prev)
		SetProvider(NewSlogProvider())
		levelVar.Set(slog.LevelInfo)
		scigoErrors.SetZerologWarnFunc(nil)
	}()

	tests := []struct {
		format string
		want   []string
	}{
		{format: "json", want: []string{`"message":"stage transition"`, `"ml.component":"trainer"`, `"pipeline.stage":"FIT"`, `"severity":"INFO"`}},
		{format: "console", want: []string{"stage transition", "FIT"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "logs")
			if err := SetupLogger(Options{Level: "debug", Format: tt.format, Name: "train", Dir: dir, MaxSize: 1}); err != nil {
				t.Fatalf("SetupLogger() error = %v", err)
			}

			GetLoggerWithName("trainer").Info("stage transition", StageKey, "FIT")

			data, err := os.ReadFile(filepath.Join(dir, "train.log"))
			if err != nil {
				t.Fatalf("log file not written: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(data), w) {
					t.Errorf("log file missing %s:\n%s", w, data)
				}
			}
		})
	}

	if err := SetupLogger(Options{Level: "verbose"}); err == nil {
		t.Error("SetupLogger() with an unknown level should fail")
	}
}

func TestZerologLoggerExpandsAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Error("training run failed", ErrAttr(errors.New("disk full")), StageKey, "FIT")

	out := buf.String()
	if !strings.Contains(out, `"error":"disk full"`) {
		t.Errorf("Missing error field: %s", out)
	}
	if !strings.Contains(out, `"pipeline.stage":"FIT"`) {
		t.Errorf("Missing stage field: %s", out)
	}
}
