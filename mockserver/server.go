// Package mockserver implements fi-mcp, the mock Fi Money data provider. It
// serves canned per-phone JSON files over MCP tools, a plain JSON stream
// endpoint and a small login flow.
package mockserver

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Sanidhya49/Invested/fimcp"
	"github.com/Sanidhya49/Invested/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

const instructions = `A financial portfolio management MCP server that provides secure access to users' financial data through Fi Money, a financial hub for all things money. This MCP server enables users to:
- Access comprehensive net worth analysis with asset/liability breakdowns
- Retrieve detailed transaction histories for mutual funds and Employee Provident Fund accounts
- View credit reports with scores, loan details, and account histories, this also contains user's date of birth that can be used for calculating their age

IMPORTANT LIMITATIONS:
- This MCP server retrieves only actual user data via Net worth tracker and based on consent provided by the user and does not generate hypothetical or estimated financial information
- In this version of the MCP server, user's historical bank transactions, historical stocks transaction data, salary (unless categorically declared) is not present. Don't assume these data points for any kind of analysis.

CRITICAL INSTRUCTIONS FOR FINANCIAL DATA:
1. DATA BOUNDARIES: Only provide information that exists in the user's Fi Money Net worth tracker. Never estimate, extrapolate, or generate hypothetical financial data.
2. MISSING DATA HANDLING: If requested data is not available, clearly state what data is missing and never fill gaps with estimated or generic information.
`

// missingText is returned by read tools when the user has no file.
var missingText = map[string]string{
	fimcp.ToolGetBankTransactions:  "No bank transactions found for this user.",
	fimcp.ToolGetNetWorth:          "No net worth data found for this user.",
	fimcp.ToolGetMFTransactions:    "No mutual fund transactions found for this user.",
	fimcp.ToolGetStockTransactions: "No stock transactions found for this user.",
	fimcp.ToolGetEPFDetails:        "No EPF details found for this user.",
	fimcp.ToolGetCreditReport:      "No credit report found for this user.",
	fimcp.ToolGetGoals:             "[]",
}

var errGoalNotFound = errors.New("Goal not found")

// Server is the fi-mcp mock provider.
type Server struct {
	dataDir string

	mcp      *server.MCPServer
	sessions *Sessions
	pages    *template.Template

	// goalsMu serializes read-modify-write cycles on goals.json.
	goalsMu sync.Mutex
}

// New creates a provider serving files under dataDir/{phone}/.
func New(dataDir string) (*Server, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		dataDir:  dataDir,
		sessions: NewSessions(),
		pages:    pages,
	}
	s.mcp = server.NewMCPServer(
		"Hackathon MCP",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)
	s.registerTools()
	return s, nil
}

// MCP exposes the underlying MCP server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Sessions exposes the session -> phone bindings made through /login.
func (s *Server) Sessions() *Sessions { return s.sessions }

func (s *Server) registerTools() {
	phoneParam := mcp.WithString("phoneNumber", mcp.Required(), mcp.Description("The user's registered mobile number"))
	for _, t := range fimcp.Tools {
		var opts []mcp.ToolOption
		opts = append(opts, mcp.WithDescription(t.Description), phoneParam)

		var handler server.ToolHandlerFunc
		switch t.Name {
		case fimcp.ToolAddGoal:
			opts = append(opts, mcp.WithObject("goal", mcp.Required(), mcp.Description("The goal to add")))
			handler = s.addGoal
		case fimcp.ToolUpdateGoal:
			opts = append(opts,
				mcp.WithString("goal_id", mcp.Required()),
				mcp.WithObject("goal_update", mcp.Required(), mcp.Description("Fields to merge into the goal")))
			handler = s.updateGoal
		case fimcp.ToolDeleteGoal:
			opts = append(opts, mcp.WithString("goal_id", mcp.Required()))
			handler = s.deleteGoal
		default:
			handler = s.readTool(t.Name, t.File)
		}
		s.mcp.AddTool(mcp.NewTool(t.Name, opts...), handler)
	}
}

func (s *Server) userFile(phone, file string) (string, error) {
	if phone == "" || filepath.Base(phone) != phone || filepath.Base(file) != file {
		return "", fmt.Errorf("invalid user path %q/%q", phone, file)
	}
	return filepath.Join(s.dataDir, phone, file), nil
}

func (s *Server) readTool(name, file string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		phone, err := req.RequireString("phoneNumber")
		if err != nil {
			return nil, fmt.Errorf("missing or invalid 'phoneNumber' in %s request inputs: %w", name, err)
		}
		path, err := s.userFile(phone, file)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debugf("%s: no file for %s", name, phone)
			return mcp.NewToolResultText(missingText[name]), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

type goalList = []map[string]any

// mutateGoals loads goals.json, applies fn and writes the result back indented.
func (s *Server) mutateGoals(phone string, fn func(goalList) (goalList, error)) (*mcp.CallToolResult, error) {
	path, err := s.userFile(phone, fimcp.Goals.FileName())
	if err != nil {
		return nil, err
	}

	s.goalsMu.Lock()
	defer s.goalsMu.Unlock()

	var goals goalList
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &goals)
	}
	goals, err = fn(goals)
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = goalList{}
	}

	out, err := json.MarshalIndent(goals, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal updated goals: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to write updated goals: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write updated goals: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phone, err := req.RequireString("phoneNumber")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'phoneNumber' in AddGoal request inputs: %w", err)
	}
	goal, ok := req.GetArguments()["goal"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'goal' in AddGoal request inputs")
	}
	return s.mutateGoals(phone, func(goals goalList) (goalList, error) {
		return append(goals, goal), nil
	})
}

func (s *Server) updateGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phone, err := req.RequireString("phoneNumber")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'phoneNumber' in UpdateGoal request inputs: %w", err)
	}
	args := req.GetArguments()
	id, ok := args["goal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'goal_id' in UpdateGoal request inputs")
	}
	update, ok := args["goal_update"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'goal_update' in UpdateGoal request inputs")
	}
	return s.mutateGoals(phone, func(goals goalList) (goalList, error) {
		for _, g := range goals {
			if gid, _ := g["goal_id"].(string); gid == id {
				for k, v := range update {
					g[k] = v
				}
				return goals, nil
			}
		}
		return nil, errGoalNotFound
	})
}

func (s *Server) deleteGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phone, err := req.RequireString("phoneNumber")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'phoneNumber' in DeleteGoal request inputs: %w", err)
	}
	id, ok := req.GetArguments()["goal_id"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'goal_id' in DeleteGoal request inputs")
	}
	return s.mutateGoals(phone, func(goals goalList) (goalList, error) {
		kept := make(goalList, 0, len(goals))
		found := false
		for _, g := range goals {
			if gid, _ := g["goal_id"].(string); gid == id {
				found = true
				continue
			}
			kept = append(kept, g)
		}
		if !found {
			return nil, errGoalNotFound
		}
		return kept, nil
	})
}

// Handler returns the HTTP surface: MCP, the stream shortcut, the login pages
// and raw user files.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/stream", s.handleStream)
	mux.Handle("/mcp/", server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	))
	mux.HandleFunc("/mockWebPage", s.handleLoginPage)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/user/", s.handleUserFile)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("[CatchAll] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	return mux
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToolName    string `json:"tool_name"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Could not decode request body", http.StatusBadRequest)
		return
	}

	phone := DefaultPhone
	if bound, ok := s.sessions.Phone(r.Header.Get("X-Session-ID")); ok {
		phone = bound
	}
	if body.PhoneNumber != "" {
		phone = body.PhoneNumber
	}
	if !IsAllowed(phone) {
		http.Error(w, "Phone number is not allowed", http.StatusForbidden)
		return
	}

	path, err := s.userFile(phone, body.ToolName+".json")
	var data []byte
	if err == nil {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		logger.Warnf("stream: cannot read %s for %s: %v", body.ToolName, phone, err)
		http.Error(w, "Could not read tool data", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}
	s.render(w, "login.html", map[string]any{
		"SessionID":            sessionID,
		"AllowedMobileNumbers": AllowedNumbers(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.FormValue("sessionId")
	phone := r.FormValue("phoneNumber")
	if sessionID == "" || phone == "" {
		http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
		return
	}

	s.sessions.Bind(sessionID, phone)
	logger.Infof("login: session %s bound to %s", sessionID, phone)
	s.render(w, "login_successful.html", map[string]any{
		"SessionID":   sessionID,
		"PhoneNumber": phone,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleUserFile(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 4 || parts[1] != "user" || parts[2] == "" || parts[3] == "" {
		http.Error(w, "Invalid user data path", http.StatusBadRequest)
		return
	}
	path, err := s.userFile(parts[2], parts[3])
	if err != nil {
		http.Error(w, "Invalid user data path", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, path)
}
