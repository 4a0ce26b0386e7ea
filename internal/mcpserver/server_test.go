package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/store"
	"github.com/starford/careerlink/internal/testutil"
)

func testServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s := testutil.TestStore(t)
	return New(linker.NewRegistry(s), linker.NewAuditor(s, nil)), s
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper; call the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_links":
		result, err = srv.getLinks(ctx, req)
	case "link_job":
		result, err = srv.linkJob(ctx, req)
	case "unlink_job":
		result, err = srv.unlinkJob(ctx, req)
	case "link_resume":
		result, err = srv.linkResume(ctx, req)
	case "unlink_resume":
		result, err = srv.unlinkResume(ctx, req)
	case "link_cover_letter":
		result, err = srv.linkCoverLetter(ctx, req)
	case "unlink_cover_letter":
		result, err = srv.unlinkCoverLetter(ctx, req)
	case "audit_entity":
		result, err = srv.auditEntity(ctx, req)
	case "get_link_contract":
		result, err = srv.getLinkContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestLinkJobAndGetLinks(t *testing.T) {
	srv, s := testServer(t)
	testutil.Resume(t, s, "r1", "")
	testutil.Job(t, s, "j1", "", "")

	r := callTool(t, srv, "link_job", map[string]any{"kind": "resume", "id": "r1", "job_id": "j1"})
	if r.IsError {
		t.Fatalf("link_job failed: %s", resultText(r))
	}

	r = callTool(t, srv, "get_links", map[string]any{"kind": "jobApplication", "id": "j1"})
	var st linker.State
	if err := json.Unmarshal([]byte(resultText(r)), &st); err != nil {
		t.Fatal(err)
	}
	if st.LinkedResume == nil || st.LinkedResume.ID != "r1" {
		t.Errorf("linked resume = %+v", st.LinkedResume)
	}
}

func TestUnlinkResumeFromCoverLetter(t *testing.T) {
	srv, s := testServer(t)
	testutil.Resume(t, s, "r1", "j1")
	testutil.Job(t, s, "j1", "r1", "c1")
	testutil.CoverLetter(t, s, "c1", "r1", "j1")

	r := callTool(t, srv, "unlink_resume", map[string]any{"kind": "coverLetter", "id": "c1"})
	if r.IsError {
		t.Fatalf("unlink_resume failed: %s", resultText(r))
	}
	if got := testutil.Field(t, s, store.JobApplications, "j1", store.FieldCoverLetterID); got != "" {
		t.Errorf("job cover_letter_id = %q", got)
	}
}

func TestLinkCoverLetterTools(t *testing.T) {
	srv, s := testServer(t)
	testutil.Job(t, s, "j1", "", "")
	testutil.CoverLetter(t, s, "c1", "", "")

	r := callTool(t, srv, "link_cover_letter", map[string]any{"kind": "jobApplication", "id": "j1", "cover_letter_id": "c1"})
	if r.IsError {
		t.Fatalf("link_cover_letter failed: %s", resultText(r))
	}
	if got := testutil.Field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID); got != "j1" {
		t.Errorf("cover letter job = %q", got)
	}

	r = callTool(t, srv, "unlink_cover_letter", map[string]any{"kind": "jobApplication", "id": "j1", "cover_letter_id": "c1"})
	if r.IsError {
		t.Fatalf("unlink_cover_letter failed: %s", resultText(r))
	}
	if got := testutil.Field(t, s, store.CoverLetters, "c1", store.FieldJobApplicationID); got != "" {
		t.Errorf("cover letter job after unlink = %q", got)
	}
}

func TestLinkMissingTarget(t *testing.T) {
	srv, s := testServer(t)
	testutil.CoverLetter(t, s, "c1", "", "")

	r := callTool(t, srv, "link_resume", map[string]any{"kind": "coverLetter", "id": "c1", "resume_id": "nope"})
	if !r.IsError {
		t.Fatal("expected error for missing resume")
	}
	if !strings.HasPrefix(resultText(r), linker.MsgLinkResumeFailed) {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestMissingEntityCachesNoManager(t *testing.T) {
	s := testutil.TestStore(t)
	links := linker.NewRegistry(s)
	srv := New(links, linker.NewAuditor(s, nil))
	testutil.Job(t, s, "j1", "", "")

	for i := range 100 {
		id := fmt.Sprintf("ghost-%d", i)
		if r := callTool(t, srv, "link_job", map[string]any{"kind": "resume", "id": id, "job_id": "j1"}); !r.IsError {
			t.Fatalf("link_job on %s succeeded", id)
		}
		if r := callTool(t, srv, "unlink_resume", map[string]any{"kind": "coverLetter", "id": id}); !r.IsError {
			t.Fatalf("unlink_resume on %s succeeded", id)
		}
	}
	if n := links.Len(); n != 0 {
		t.Errorf("cached managers = %d, want 0", n)
	}

	testutil.Resume(t, s, "r1", "")
	if r := callTool(t, srv, "get_links", map[string]any{"kind": "resume", "id": "r1"}); r.IsError {
		t.Fatalf("get_links failed: %s", resultText(r))
	}
	if err := s.Delete(context.Background(), store.Resumes, "r1"); err != nil {
		t.Fatal(err)
	}
	if r := callTool(t, srv, "unlink_job", map[string]any{"kind": "resume", "id": "r1"}); !r.IsError {
		t.Fatal("unlink_job on deleted resume succeeded")
	}
	if n := links.Len(); n != 0 {
		t.Errorf("cached managers after delete = %d, want 0", n)
	}
}

func TestBadArguments(t *testing.T) {
	srv, _ := testServer(t)

	if r := callTool(t, srv, "get_links", map[string]any{"kind": "folder", "id": "x"}); !r.IsError {
		t.Error("expected error for unknown kind")
	}
	if r := callTool(t, srv, "unlink_job", map[string]any{"kind": "resume"}); !r.IsError {
		t.Error("expected error for missing id")
	}
	if r := callTool(t, srv, "link_job", map[string]any{"kind": "resume", "id": "r1"}); !r.IsError {
		t.Error("expected error for missing job_id")
	}
}

func TestAuditEntity(t *testing.T) {
	srv, s := testServer(t)
	testutil.Job(t, s, "j1", "gone", "")

	r := callTool(t, srv, "audit_entity", map[string]any{"kind": "jobApplication", "id": "j1"})
	if !strings.Contains(resultText(r), `"category": "D4"`) {
		t.Fatalf("audit = %s", resultText(r))
	}
	if got := testutil.Field(t, s, store.JobApplications, "j1", store.FieldResumeID); got != "gone" {
		t.Fatalf("dry audit changed resume_id to %q", got)
	}

	r = callTool(t, srv, "audit_entity", map[string]any{"kind": "jobApplication", "id": "j1", "repair": true})
	if !strings.Contains(resultText(r), `"applied": 1`) {
		t.Fatalf("repair = %s", resultText(r))
	}
	if got := testutil.Field(t, s, store.JobApplications, "j1", store.FieldResumeID); got != "" {
		t.Errorf("resume_id after repair = %q", got)
	}
}

func TestLinkContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_link_contract", nil)
	if !strings.Contains(resultText(r), "Symmetry") {
		t.Error("contract missing symmetry rule")
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
