// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes careerlink link tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/careerlink/internal/apperr"
	"github.com/starford/careerlink/internal/linker"
	"github.com/starford/careerlink/internal/models"
)

// ContractURI is the resource URI of the link contract.
const ContractURI = "careerlink://link-contract"

// Server wraps the MCP server with careerlink tools.
type Server struct {
	mcp     *server.MCPServer
	links   *linker.Registry
	auditor *linker.Auditor
}

var kindDesc = mcp.Description("Entity kind: resume, coverLetter or jobApplication")

// New creates a new MCP server with all link tools registered.
func New(links *linker.Registry, auditor *linker.Auditor) *Server {
	s := &Server{links: links, auditor: auditor}

	s.mcp = server.NewMCPServer(
		"careerlink",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("Audit an entity, repair broken links around it and return its linked records."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("link_job",
		mcp.WithDescription("Link a job application to a resume or cover letter. "+
			"The job's previous partner is detached. Read the link contract first."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Resume or cover letter id")),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job application to link")),
	), s.linkJob)

	s.mcp.AddTool(mcp.NewTool("unlink_job",
		mcp.WithDescription("Detach a resume or cover letter from its job application."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Resume or cover letter id")),
	), s.unlinkJob)

	s.mcp.AddTool(mcp.NewTool("link_resume",
		mcp.WithDescription("Link a resume to a cover letter or job application."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Cover letter or job application id")),
		mcp.WithString("resume_id", mcp.Required(), mcp.Description("Resume to link")),
	), s.linkResume)

	s.mcp.AddTool(mcp.NewTool("unlink_resume",
		mcp.WithDescription("Detach a cover letter or job application from its resume. "+
			"A cover letter also loses the job it inherited from the resume."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Cover letter or job application id")),
	), s.unlinkResume)

	s.mcp.AddTool(mcp.NewTool("link_cover_letter",
		mcp.WithDescription("Link a cover letter to a resume or job application."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Resume or job application id")),
		mcp.WithString("cover_letter_id", mcp.Required(), mcp.Description("Cover letter to link")),
	), s.linkCoverLetter)

	s.mcp.AddTool(mcp.NewTool("unlink_cover_letter",
		mcp.WithDescription("Detach a cover letter from a resume or job application."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Resume or job application id")),
		mcp.WithString("cover_letter_id", mcp.Required(), mcp.Description("Cover letter to detach")),
	), s.unlinkCoverLetter)

	s.mcp.AddTool(mcp.NewTool("audit_entity",
		mcp.WithDescription("List link inconsistencies around an entity without changing anything, "+
			"or repair them when repair is true."),
		mcp.WithString("kind", mcp.Required(), kindDesc),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entity id")),
		mcp.WithBoolean("repair", mcp.Description("Apply the proposed repairs")),
	), s.auditEntity)

	s.mcp.AddTool(mcp.NewTool("get_link_contract",
		mcp.WithDescription("Returns the rules that keep resume, cover letter and job links consistent."),
	), s.getLinkContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Link Contract",
			mcp.WithResourceDescription("Link invariants and repair rules between resumes, cover letters and jobs."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// manager resolves the kind and id arguments to an existing entity's manager.
func (s *Server) manager(ctx context.Context, req mcp.CallToolRequest) (*linker.Manager, error) {
	raw, err := req.RequireString("kind")
	if err != nil {
		return nil, err
	}
	kind, err := models.ParseKind(raw)
	if err != nil {
		return nil, err
	}
	id, err := req.RequireString("id")
	if err != nil {
		return nil, err
	}
	return s.links.Lookup(ctx, kind, id)
}

func (s *Server) stateResult(ctx context.Context, m *linker.Manager, st linker.State) *mcp.CallToolResult {
	if st.Error != "" {
		if errors.Is(st.Cause(), apperr.ErrNotFound) {
			s.links.ForgetMissing(ctx, m.Kind(), m.ID())
		}
		msg := st.Error
		if st.Cause() != nil {
			msg = fmt.Sprintf("%s: %v", st.Error, st.Cause())
		}
		return mcp.NewToolResultError(msg)
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(out))
}

// withTarget runs op on the entity's manager with the string argument arg.
func (s *Server) withTarget(ctx context.Context, req mcp.CallToolRequest, arg string, op func(*linker.Manager, string) linker.State) *mcp.CallToolResult {
	m, err := s.manager(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	target, err := req.RequireString(arg)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return s.stateResult(ctx, m, op(m, target))
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.manager(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.stateResult(ctx, m, m.Refresh(ctx)), nil
}

func (s *Server) linkJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withTarget(ctx, req, "job_id", func(m *linker.Manager, id string) linker.State {
		return m.LinkJob(ctx, id)
	}), nil
}

func (s *Server) unlinkJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.manager(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.stateResult(ctx, m, m.UnlinkJob(ctx)), nil
}

func (s *Server) linkResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withTarget(ctx, req, "resume_id", func(m *linker.Manager, id string) linker.State {
		return m.LinkResume(ctx, id)
	}), nil
}

func (s *Server) unlinkResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.manager(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.stateResult(ctx, m, m.UnlinkResume(ctx)), nil
}

func (s *Server) linkCoverLetter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withTarget(ctx, req, "cover_letter_id", func(m *linker.Manager, id string) linker.State {
		return m.LinkCoverLetter(ctx, id)
	}), nil
}

func (s *Server) unlinkCoverLetter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withTarget(ctx, req, "cover_letter_id", func(m *linker.Manager, id string) linker.State {
		return m.UnlinkCoverLetter(ctx, id)
	}), nil
}

func (s *Server) auditEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m, err := s.manager(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var rep linker.Report
	if req.GetBool("repair", false) {
		rep, err = s.auditor.Check(ctx, m.Kind(), m.ID())
	} else {
		rep.Found, err = s.auditor.Audit(ctx, m.Kind(), m.ID())
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rep.Found == nil {
		rep.Found = []linker.Inconsistency{}
	}
	out, _ := json.MarshalIndent(rep, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getLinkContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     LinkContract,
		},
	}, nil
}
