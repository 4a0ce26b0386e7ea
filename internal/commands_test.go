package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/store"
	"github.com/starford/careerlink/internal/testutil"
)

func auditConfig(t *testing.T) (*Config, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "careerlink.db")
	s, err := store.OpenSQLite(dsn)
	if err != nil {
		t.Fatal(err)
	}
	testutil.Resume(t, s, "r1", "gone")
	testutil.Job(t, s, "j1", "", "")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Store.DSN = dsn
	return cfg, dsn
}

func runAudit(t *testing.T, cfg *Config, dryRun bool) linker.SweepReport {
	t.Helper()
	var out bytes.Buffer
	if err := RunAudit(context.Background(), &out, dryRun, WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("audit: %v", err)
	}
	var rep linker.SweepReport
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	return rep
}

func TestRunAudit(t *testing.T) {
	cfg, dsn := auditConfig(t)

	rep := runAudit(t, cfg, true)
	if rep.Audited != 2 || len(rep.Found) != 1 || rep.Applied != 0 {
		t.Fatalf("dry run report = %+v", rep)
	}
	if rep.Found[0].Category != linker.ResumeJobDangling {
		t.Errorf("category = %v", rep.Found[0].Category)
	}

	rep = runAudit(t, cfg, false)
	if rep.Applied != 1 {
		t.Fatalf("repair report = %+v", rep)
	}

	s, err := store.OpenSQLite(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got := testutil.Field(t, s, store.Resumes, "r1", store.FieldJobApplicationID); got != "" {
		t.Errorf("resume job after audit = %q", got)
	}

	if rep = runAudit(t, cfg, true); len(rep.Found) != 0 {
		t.Errorf("store still inconsistent: %+v", rep.Found)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}
