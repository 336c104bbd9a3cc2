// Package lspserver exposes analysis over the Language Server Protocol: a
// stdio JSON-RPC loop for editor integration, and a websocket channel that
// pushes the same diagnostics to any number of live subscribers (a browser
// preview, a second editor pane) without them polling stdio.
package lspserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cqasm/internal/analyzecache"
	"cqasm/internal/dialect"
	"cqasm/internal/serialize"
	"cqasm/internal/version"
)

const jsonRPCVersion = "2.0"

// Document is one open text document tracked by the server.
type Document struct {
	URI     string
	Content string
	Version int
}

// Server is the stdio JSON-RPC front end. Every open document is analyzed
// through a shared Cache so repeated didChange notifications on unrelated
// documents never re-walk each other's trees.
type Server struct {
	in      *bufio.Reader
	out     io.Writer
	mu      sync.Mutex
	docs    map[string]*Document
	running bool

	dialect    dialect.Dialect
	maxVersion version.Version
	cache      *analyzecache.Cache

	sessionID string
	hub       *Hub // nil if no websocket push is attached
}

// New constructs a Server that analyzes documents under d, rejecting any
// version header exceeding maxVersion. Pass a non-nil hub to additionally
// push diagnostics to websocket subscribers.
func New(in io.Reader, out io.Writer, d dialect.Dialect, maxVersion version.Version, hub *Hub) *Server {
	return &Server{
		in:         bufio.NewReader(in),
		out:        out,
		docs:       make(map[string]*Document),
		dialect:    d,
		maxVersion: maxVersion,
		cache:      analyzecache.New(),
		sessionID:  uuid.NewString(),
		hub:        hub,
	}
}

// SessionID identifies this server instance across the diagnostics
// pipeline, shared with any attached Hub.
func (s *Server) SessionID() string { return s.sessionID }

// message is a JSON-RPC request, response, or notification.
type message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
}

// Start runs the JSON-RPC loop until the client sends `exit`, the context
// is cancelled, or the input stream closes.
func (s *Server) Start(ctx context.Context) error {
	s.running = true
	for s.running {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.handleMessage(); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

func (s *Server) handleMessage() error {
	contentLength := 0
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:")))
			if err != nil {
				return fmt.Errorf("lspserver: invalid Content-Length: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength == 0 {
		return nil
	}
	content := make([]byte, contentLength)
	if _, err := io.ReadFull(s.in, content); err != nil {
		return err
	}
	var msg message
	if err := json.Unmarshal(content, &msg); err != nil {
		return fmt.Errorf("lspserver: malformed message: %w", err)
	}
	return s.dispatch(&msg)
}

func (s *Server) dispatch(msg *message) error {
	switch msg.Method {
	case "initialize":
		return s.sendResponse(msg.ID, initializeResult{
			Capabilities: serverCapabilities{TextDocumentSync: 1, DiagnosticProvider: true},
		})
	case "initialized":
		return nil
	case "shutdown":
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.running = false
		return nil
	case "textDocument/didOpen":
		var p didOpenParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return err
		}
		s.mu.Lock()
		s.docs[p.TextDocument.URI] = &Document{URI: p.TextDocument.URI, Content: p.TextDocument.Text, Version: p.TextDocument.Version}
		s.mu.Unlock()
		return s.publishDiagnostics(p.TextDocument.URI)
	case "textDocument/didChange":
		var p didChangeParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return err
		}
		if len(p.ContentChanges) == 0 {
			return nil
		}
		s.mu.Lock()
		s.docs[p.TextDocument.URI] = &Document{URI: p.TextDocument.URI, Content: p.ContentChanges[len(p.ContentChanges)-1].Text, Version: p.TextDocument.Version}
		s.mu.Unlock()
		return s.publishDiagnostics(p.TextDocument.URI)
	case "textDocument/didClose":
		var p didCloseParams
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return err
		}
		s.mu.Lock()
		delete(s.docs, p.TextDocument.URI)
		s.mu.Unlock()
		return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{URI: p.TextDocument.URI, Diagnostics: []serialize.Diagnostic{}})
	default:
		if msg.ID != nil {
			return s.sendError(msg.ID, -32601, fmt.Sprintf("method not found: %s", msg.Method))
		}
		return nil
	}
}

func (s *Server) publishDiagnostics(uri string) error {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	result := s.cache.Analyze(s.dialect, s.maxVersion, doc.Content, uriToPath(uri))
	diags := serialize.Diagnostics(result.Errors)
	if diags == nil {
		diags = []serialize.Diagnostic{}
	}

	if s.hub != nil {
		s.hub.Broadcast(Update{SessionID: s.sessionID, URI: uri, Diagnostics: diags})
	}
	return s.sendNotification("textDocument/publishDiagnostics", publishDiagnosticsParams{URI: uri, Diagnostics: diags})
}

func (s *Server) sendResponse(id *json.RawMessage, result interface{}) error {
	return s.writeMessage(map[string]interface{}{"jsonrpc": jsonRPCVersion, "id": id, "result": result})
}

func (s *Server) sendError(id *json.RawMessage, code int, msg string) error {
	return s.writeMessage(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      id,
		"error":   map[string]interface{}{"code": code, "message": msg},
	})
}

func (s *Server) sendNotification(method string, params interface{}) error {
	return s.writeMessage(map[string]interface{}{"jsonrpc": jsonRPCVersion, "method": method, "params": params})
}

func (s *Server) writeMessage(msg interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n", len(content)); err != nil {
		return err
	}
	_, err = s.out.Write(content)
	return err
}

func uriToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return strings.TrimPrefix(uri, prefix)
	}
	return uri
}

// ---- JSON-RPC payload shapes ----

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
}

type serverCapabilities struct {
	TextDocumentSync   int  `json:"textDocumentSync"`
	DiagnosticProvider bool `json:"diagnosticProvider"`
}

type textDocumentItem struct {
	URI     string `json:"uri"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type contentChange struct {
	Text string `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                 `json:"contentChanges"`
}

type didCloseParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type publishDiagnosticsParams struct {
	URI         string                 `json:"uri"`
	Diagnostics []serialize.Diagnostic `json:"diagnostics"`
}
